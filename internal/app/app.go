package app

import (
	"context"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/toughpos/config"
	"github.com/talkincode/toughpos/internal/activation"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/exports"
	"github.com/talkincode/toughpos/internal/labels"
	"github.com/talkincode/toughpos/internal/notify"
	"github.com/talkincode/toughpos/internal/reports"
	"github.com/talkincode/toughpos/internal/sales"
	"github.com/talkincode/toughpos/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

type Application struct {
	appConfig  *config.AppConfig
	gormDB     *gorm.DB
	sched      *cron.Cron
	bus        EventBus.Bus
	redis      *redis.Client
	labelCache *labels.BoltCache
	subscribed bool

	salesSvc      *sales.Service
	activationSvc *activation.Service
	reportSvc     *reports.Service
	labelSvc      *labels.Service
	exportSvc     *exports.Service
	mailer        *notify.Mailer
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ EventBusProvider  = (*Application)(nil)
	_ RedisProvider     = (*Application)(nil)
	_ ServiceProvider   = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig, bus: EventBus.New()}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

func (a *Application) Redis() *redis.Client {
	return a.redis
}

func (a *Application) Sales() *sales.Service {
	return a.salesSvc
}

func (a *Application) Activation() *activation.Service {
	return a.activationSvc
}

func (a *Application) Reports() *reports.Service {
	return a.reportSvc
}

func (a *Application) Labels() *labels.Service {
	return a.labelSvc
}

func (a *Application) Exports() *exports.Service {
	return a.exportSvc
}

func (a *Application) Mailer() *notify.Mailer {
	return a.mailer
}

// initLogger console output always; with file logging enabled a JSON copy
// goes to a rotated file under the log dir
func initLogger(cfg *config.AppConfig) *zap.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.System.Debug && cfg.Logger.Mode != "production" {
		level.SetLevel(zapcore.DebugLevel)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	var console zapcore.Encoder = zapcore.NewConsoleEncoder(consoleCfg)
	if cfg.Logger.Mode == "production" {
		console = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	cores := []zapcore.Core{zapcore.NewCore(console, zapcore.Lock(os.Stdout), level)}

	if cfg.Logger.FileEnable {
		filename := cfg.Logger.Filename
		if filename == "" {
			filename = filepath.Join(cfg.GetLogDir(), "toughpos.log")
		}
		rotator := &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups,
			MaxAge:     cfg.Logger.MaxAgeDays,
			Compress:   cfg.Logger.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			level,
		))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func (a *Application) Init(cfg *config.AppConfig) {
	zap.ReplaceGlobals(initLogger(cfg))
	if loc, err := time.LoadLocation(cfg.System.Location); err != nil {
		zap.L().Error("invalid location, keeping the system timezone", zap.String("location", cfg.System.Location))
	} else {
		time.Local = loc
	}

	if err := cfg.InitDirs(); err != nil {
		zap.S().Warn("Failed to create working directories:", err)
	}
	if cfg.SecretGenerated {
		zap.L().Warn("no secret configured, using a random one; sessions will not survive a restart")
	}

	if err := metrics.InitMetrics(cfg.System.Workdir); err != nil {
		zap.L().Warn("metrics disabled", zap.Error(err))
	}

	db, err := getDatabase(cfg.Database, cfg)
	if err != nil {
		zap.L().Fatal("database connection failed", zap.String("type", cfg.Database.Type), zap.Error(err))
	}
	a.gormDB = db
	zap.L().Info("database connected", zap.String("type", cfg.Database.Type))

	if err := a.MigrateDB(false); err != nil {
		zap.L().Error("database migration failed", zap.Error(err))
	}

	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			zap.L().Warn("redis unavailable, login rate limiting disabled", zap.Error(err))
			_ = a.redis.Close()
			a.redis = nil
		}
		cancel()
	}

	if cache, err := labels.OpenBoltCache(cfg.GetCacheFile()); err != nil {
		zap.L().Warn("label cache disabled", zap.Error(err))
	} else {
		a.labelCache = cache
	}

	a.InitServices()
	a.Seed()
	a.initJob()
}

// Seed creates the admin account, the default features and, when enabled,
// the demo business. Existing rows are left alone.
func (a *Application) Seed() {
	a.checkSuper()
	a.checkFeatures()
	if a.appConfig.System.DemoData {
		a.checkDemoData()
	}
}

// InitServices builds the domain services on the current database and
// subscribes the event handlers.
func (a *Application) InitServices() {
	a.salesSvc = sales.NewService(a.gormDB, a.bus)
	a.activationSvc = activation.NewService(a.gormDB, a.bus)
	a.reportSvc = reports.NewService(a.gormDB)
	a.exportSvc = exports.NewService(a.gormDB)

	renderer := &labels.Renderer{FontPath: a.appConfig.Label.FontPath, FontSize: a.appConfig.Label.FontSize}
	var cache labels.Cache
	if a.labelCache != nil {
		cache = a.labelCache
	}
	a.labelSvc = labels.NewService(a.gormDB, renderer, cache, a.appConfig.Label.Workers)
	a.mailer = notify.NewMailer(a.gormDB, a.appConfig.Smtp)
	if !a.subscribed {
		a.subscribeEvents()
		a.subscribed = true
	}
}

// MigrateDB applies the schema; gorm migrator panics are returned as errors
func (a *Application) MigrateDB(track bool) (err error) {
	defer recoverAsError("migrate", &err)
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

func recoverAsError(op string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if os.Getenv("TOUGHPOS_TRACE") != "" {
		debug.PrintStack()
	}
	if e, ok := r.(error); ok {
		*err = pkgerrors.Wrap(e, op)
	} else {
		*err = pkgerrors.Errorf("%s: %v", op, r)
	}
	zap.L().Error("recovered panic", zap.String("op", op), zap.Error(*err))
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable("activation_key_feature")
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

// InitDb drops and recreates every table
func (a *Application) InitDb() {
	a.DropAll()
	if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
		zap.S().Error(err)
	}
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.bus != nil {
		a.bus.WaitAsync()
	}
	if a.labelCache != nil {
		_ = a.labelCache.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}
