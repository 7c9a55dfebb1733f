package app

import (
	"github.com/asaskevich/EventBus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/toughpos/config"
	"github.com/talkincode/toughpos/internal/activation"
	"github.com/talkincode/toughpos/internal/exports"
	"github.com/talkincode/toughpos/internal/labels"
	"github.com/talkincode/toughpos/internal/notify"
	"github.com/talkincode/toughpos/internal/reports"
	"github.com/talkincode/toughpos/internal/sales"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// EventBusProvider provides the domain event bus
type EventBusProvider interface {
	Bus() EventBus.Bus
}

// RedisProvider provides the optional redis client, nil when disabled
type RedisProvider interface {
	Redis() *redis.Client
}

// ServiceProvider provides the domain services
type ServiceProvider interface {
	Sales() *sales.Service
	Activation() *activation.Service
	Reports() *reports.Service
	Labels() *labels.Service
	Exports() *exports.Service
	Mailer() *notify.Mailer
}

// AppContext combines all provider interfaces for full application context
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	EventBusProvider
	RedisProvider
	ServiceProvider

	MigrateDB(track bool) error
	InitDb()
	DropAll()
	// RecordOperation appends an entry to the operation log
	RecordOperation(businessID int64, operator, ip, action, desc string)
}
