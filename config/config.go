package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system configuration
type SysConfig struct {
	Appid         string `yaml:"appid"`
	Location      string `yaml:"location"`
	Workdir       string `yaml:"workdir"`
	Environment   string `yaml:"environment"` // local | production
	Debug         bool   `yaml:"debug"`
	AdminPassword string `yaml:"admin_password"`
	DemoData      bool   `yaml:"demo_data"`
}

// WebConfig web server configuration
type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Secret        string `yaml:"secret"`
	SessionMaxAge int    `yaml:"session_max_age"` // seconds
	UploadDir     string `yaml:"upload_dir"`
}

// DBConfig database configuration
type DBConfig struct {
	Type     string `yaml:"type"` // postgres | sqlite
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// LogConfig logging configuration
type LogConfig struct {
	Mode       string `yaml:"mode"` // development | production
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"` // empty: <workdir>/logs/toughpos.log
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// RedisConfig optional redis, used by the login rate limiter
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	LoginLimit int    `yaml:"login_limit"` // attempts per minute per client ip
}

// SmtpConfig outgoing mail, an empty host disables mail
type SmtpConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// LabelConfig barcode label rendering
type LabelConfig struct {
	FontPath string  `yaml:"font_path"`
	FontSize float64 `yaml:"font_size"`
	Workers  int     `yaml:"workers"`
}

type AppConfig struct {
	System   SysConfig   `yaml:"system"`
	Web      WebConfig   `yaml:"web"`
	Database DBConfig    `yaml:"database"`
	Logger   LogConfig   `yaml:"logger"`
	Redis    RedisConfig `yaml:"redis"`
	Smtp     SmtpConfig  `yaml:"smtp"`
	Label    LabelConfig `yaml:"label"`

	// SecretGenerated is set when no secret was configured and a random one is in use
	SecretGenerated bool `yaml:"-"`
}

func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.System.Environment, "production")
}

func (c *AppConfig) GetUploadDir() string {
	if c.Web.UploadDir != "" {
		return c.Web.UploadDir
	}
	return path.Join(c.System.Workdir, "uploads")
}

func (c *AppConfig) GetSessionDir() string {
	return path.Join(c.System.Workdir, "sessions")
}

func (c *AppConfig) GetCacheFile() string {
	return path.Join(c.System.Workdir, "data", "labels.db")
}

func (c *AppConfig) GetMetricsDir() string {
	return path.Join(c.System.Workdir, "data", "metrics")
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetSqliteFile() string {
	return path.Join(c.System.Workdir, "data", "pos_system.db")
}

// InitDirs creates the working directories
func (c *AppConfig) InitDirs() error {
	for _, dir := range []string{
		c.GetUploadDir(),
		c.GetSessionDir(),
		c.GetLogDir(),
		path.Join(c.System.Workdir, "data"),
		c.GetMetricsDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create dir %s", dir)
		}
	}
	return nil
}

// DefaultAppConfig local development defaults
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:         "ToughPOS",
			Location:      "UTC",
			Workdir:       "/var/toughpos",
			Environment:   "local",
			Debug:         false,
			AdminPassword: "password",
			DemoData:      true,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          5000,
			SessionMaxAge: 86400,
		},
		Database: DBConfig{
			Type:     "sqlite",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "toughpos",
			User:     "postgres",
			MaxConn:  50,
			IdleConn: 10,
		},
		Logger: LogConfig{
			Mode:       "development",
			MaxSizeMB:  64,
			MaxBackups: 7,
			MaxAgeDays: 7,
		},
		Redis: RedisConfig{
			Addr:       "127.0.0.1:6379",
			LoginLimit: 5,
		},
		Smtp: SmtpConfig{
			Port: 587,
		},
		Label: LabelConfig{
			FontSize: 18,
			Workers:  4,
		},
	}
}

// LoadConfig builds the configuration: defaults, then the yaml file (if any),
// then .env, then environment variables.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if cfile != "" {
		data, err := os.ReadFile(cfile)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}
	// a missing .env is normal
	_ = godotenv.Load()
	applyEnv(cfg)
	if err := ensureSecret(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setEnvString(name string, val *string) {
	if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
		*val = strings.TrimSpace(v)
	}
}

func setEnvInt(name string, val *int) {
	if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
		if i, err := cast.ToIntE(strings.TrimSpace(v)); err == nil {
			*val = i
		}
	}
}

func setEnvBool(name string, val *bool) {
	if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
		if b, err := cast.ToBoolE(strings.TrimSpace(v)); err == nil {
			*val = b
		}
	}
}

func applyEnv(cfg *AppConfig) {
	setEnvString("TOUGHPOS_WORKDIR", &cfg.System.Workdir)
	setEnvString("TOUGHPOS_LOCATION", &cfg.System.Location)
	setEnvString("TOUGHPOS_ADMIN_PASSWORD", &cfg.System.AdminPassword)
	setEnvBool("TOUGHPOS_DEMO_DATA", &cfg.System.DemoData)
	setEnvBool("TOUGHPOS_DEBUG", &cfg.System.Debug)
	setEnvString("APP_ENV", &cfg.System.Environment)
	setEnvString("RAILWAY_ENVIRONMENT", &cfg.System.Environment)

	setEnvString("SECRET_KEY", &cfg.Web.Secret)
	setEnvInt("PORT", &cfg.Web.Port)
	setEnvString("TOUGHPOS_UPLOAD_DIR", &cfg.Web.UploadDir)

	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		if strings.HasPrefix(url, "postgres://") {
			url = "postgresql://" + strings.TrimPrefix(url, "postgres://")
		}
		cfg.Database.URL = url
		cfg.Database.Type = "postgres"
	}
	setEnvBool("TOUGHPOS_DB_DEBUG", &cfg.Database.Debug)

	setEnvString("TOUGHPOS_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvBool("TOUGHPOS_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)

	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	setEnvString("REDIS_PASSWORD", &cfg.Redis.Password)

	setEnvString("SMTP_HOST", &cfg.Smtp.Host)
	setEnvInt("SMTP_PORT", &cfg.Smtp.Port)
	setEnvString("SMTP_USER", &cfg.Smtp.User)
	setEnvString("SMTP_PASSWORD", &cfg.Smtp.Password)
	setEnvString("SMTP_FROM", &cfg.Smtp.From)

	if cfg.IsProduction() {
		cfg.System.Debug = false
		cfg.Logger.Mode = "production"
	}
}

func ensureSecret(cfg *AppConfig) error {
	if cfg.Web.Secret != "" {
		return nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return errors.Wrap(err, "generate secret")
	}
	cfg.Web.Secret = hex.EncodeToString(buf)
	cfg.SecretGenerated = true
	return nil
}
