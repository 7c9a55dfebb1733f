package app

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/talkincode/toughpos/internal/activation"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/sales"
	"github.com/talkincode/toughpos/pkg/common"
	"github.com/talkincode/toughpos/pkg/metrics"
	"go.uber.org/zap"
)

func (a *Application) subscribeEvents() {
	handlers := map[string]interface{}{
		sales.TopicTransactionCreated:    a.onTransactionCreated,
		activation.TopicKeyGenerated:     a.onKeyGenerated,
		activation.TopicFeatureActivated: a.onFeatureActivated,
		auth.TopicUserLogin:              a.onUserLogin,
	}
	for topic, fn := range handlers {
		if err := a.bus.SubscribeAsync(topic, fn, false); err != nil {
			zap.L().Error("subscribe event failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// RecordOperation appends an entry to the operation log
func (a *Application) RecordOperation(businessID int64, operator, ip, action, desc string) {
	if a.gormDB == nil {
		return
	}
	err := a.gormDB.Create(&domain.SysOprLog{
		ID:         common.UUIDint64(),
		BusinessID: businessID,
		OprName:    operator,
		OprIp:      ip,
		OptAction:  action,
		OptDesc:    desc,
		OptTime:    time.Now(),
	}).Error
	if err != nil {
		zap.L().Warn("write operation log failed", zap.String("action", action), zap.Error(err))
	}
}

func (a *Application) onTransactionCreated(txn *domain.Transaction) {
	metrics.Incr(metrics.MetricsSalesCount, 1)
	metrics.Incr(metrics.MetricsSalesAmountCents, int64(math.Round(txn.TotalAmount*100)))
}

func (a *Application) onKeyGenerated(ev activation.KeyEvent) {
	metrics.Incr(metrics.MetricsKeyGenerated, 1)
	a.RecordOperation(ev.BusinessID, "admin", "", "key_generated",
		fmt.Sprintf("activation key %d for %s", ev.KeyID, strings.Join(ev.Features, ", ")))
}

func (a *Application) onFeatureActivated(ev activation.KeyEvent) {
	metrics.Incr(metrics.MetricsFeatureActivated, int64(len(ev.Features)))
	a.RecordOperation(ev.BusinessID, "", "", "feature_activated",
		fmt.Sprintf("activated %s with key %d", strings.Join(ev.Features, ", "), ev.KeyID))
}

func (a *Application) onUserLogin(ev auth.LoginEvent) {
	metrics.Incr(metrics.MetricsLoginSuccess, 1)
	a.RecordOperation(ev.BusinessID, ev.Username, ev.IP, "login", "user login")
}
