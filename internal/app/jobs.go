package app

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/metrics"
	"go.uber.org/zap"
)

const (
	oprLogRetention  = 365 * 24 * time.Hour
	monitorSpec      = "@every 30s"
	retentionSpec    = "@daily"
	lowStockMailSpec = "0 0 7 * * *"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// safeJob keeps a panicking job from taking the scheduler down
func safeJob(name string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("scheduled job panicked", zap.String("job", name), zap.Any("panic", r))
			}
		}()
		fn()
	}
}

func (a *Application) initJob() {
	loc := time.Local
	if l, err := time.LoadLocation(a.appConfig.System.Location); err == nil {
		loc = l
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	jobs := map[string]struct {
		spec string
		fn   func()
	}{
		"system_monitor":  {monitorSpec, a.SchedSystemMonitorTask},
		"process_monitor": {monitorSpec, a.SchedProcessMonitorTask},
		"oprlog_cleanup":  {retentionSpec, a.SchedClearExpireData},
		"low_stock_mail":  {lowStockMailSpec, a.SchedLowStockDigest},
	}
	for name, j := range jobs {
		if _, err := a.sched.AddFunc(j.spec, safeJob(name, j.fn)); err != nil {
			zap.L().Error("add scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	}
	a.sched.Start()
}

// SchedSystemMonitorTask records host cpu (percent x100) and used memory (MB)
func (a *Application) SchedSystemMonitorTask() {
	if usage, err := cpu.Percent(0, false); err == nil && len(usage) > 0 {
		metrics.SetGauge(metrics.MetricsSystemCpuUse, int64(usage[0]*100))
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		metrics.SetGauge(metrics.MetricsSystemMemUse, int64(vm.Used/1024/1024))
	}
}

// SchedProcessMonitorTask records the cpu and rss of this process
func (a *Application) SchedProcessMonitorTask() {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}
	if usage, err := p.CPUPercent(); err == nil {
		metrics.SetGauge(metrics.MetricsProcessCpuUse, int64(usage*100))
	}
	if info, err := p.MemoryInfo(); err == nil {
		metrics.SetGauge(metrics.MetricsProcessMemUse, int64(info.RSS/1024/1024))
	}
}

// SchedClearExpireData drops operation log entries older than a year
func (a *Application) SchedClearExpireData() {
	res := a.gormDB.Where("opt_time < ?", time.Now().Add(-oprLogRetention)).Delete(&domain.SysOprLog{})
	if res.Error != nil {
		zap.L().Error("operation log cleanup failed", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		zap.L().Info("operation log cleaned", zap.Int64("deleted", res.RowsAffected))
	}
}

// SchedLowStockDigest mails the morning low-stock digest
func (a *Application) SchedLowStockDigest() {
	if a.mailer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := a.mailer.LowStockDigest(ctx); err != nil {
		zap.L().Error("low stock digest failed", zap.String("namespace", "notify"), zap.Error(err))
	}
}
