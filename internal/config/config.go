package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Exam     ExamConfig
	Sandbox  SandboxConfig
	Log      LogConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Для 'single' используется первый адрес.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single'.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// JWTConfig содержит настройки проверки bearer-токенов.
// Токены выпускает внешний сервис аутентификации.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// ExamConfig содержит настройки жизненного цикла попыток
type ExamConfig struct {
	GracePeriodSec         int `mapstructure:"grace_period_sec"`
	ExpirySweepIntervalSec int `mapstructure:"expiry_sweep_interval_sec"`
	SweepLockTTLSec        int `mapstructure:"sweep_lock_ttl_sec"`
	ResultCacheTTLSec      int `mapstructure:"result_cache_ttl_sec"`
	AnswerRateLimit        int `mapstructure:"answer_rate_limit"`
}

// SandboxConfig содержит настройки песочницы для SQL-запросов
type SandboxConfig struct {
	// Driver: "postgres" или "sqlite"
	Driver string `mapstructure:"driver"`
	// DSN: строка подключения. Пустая строка для postgres означает основную БД.
	DSN                string   `mapstructure:"dsn"`
	TimeoutMs          int      `mapstructure:"timeout_ms"`
	MaxConcurrent      int      `mapstructure:"max_concurrent"`
	MaxRows            int      `mapstructure:"max_rows"`
	ForbiddenTables    []string `mapstructure:"forbidden_tables"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute"`
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultForbiddenTables перечисляет собственные таблицы системы,
// к которым запрос песочницы не должен обращаться.
var DefaultForbiddenTables = []string{
	"exams",
	"questions",
	"question_options",
	"exam_questions",
	"exam_attempts",
	"student_answers",
	"exam_results",
	"schema_migrations",
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// GracePeriod возвращает льготный период после окончания времени попытки
func (e ExamConfig) GracePeriod() time.Duration {
	return time.Duration(e.GracePeriodSec) * time.Second
}

// SweepInterval возвращает период фоновой проверки просроченных попыток
func (e ExamConfig) SweepInterval() time.Duration {
	return time.Duration(e.ExpirySweepIntervalSec) * time.Second
}

// ResultCacheTTL возвращает время жизни кеша результатов
func (e ExamConfig) ResultCacheTTL() time.Duration {
	return time.Duration(e.ResultCacheTTLSec) * time.Second
}

// Timeout возвращает лимит выполнения одного запроса в песочнице
func (s SandboxConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.mode", "debug")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 30)
	vip.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "file://migrations")

	vip.SetDefault("redis.mode", "single")

	vip.SetDefault("jwt.issuer", "exam-portal")

	vip.SetDefault("exam.grace_period_sec", 120)
	vip.SetDefault("exam.expiry_sweep_interval_sec", 30)
	vip.SetDefault("exam.sweep_lock_ttl_sec", 25)
	vip.SetDefault("exam.result_cache_ttl_sec", 600)
	vip.SetDefault("exam.answer_rate_limit", 120)

	vip.SetDefault("sandbox.driver", "postgres")
	vip.SetDefault("sandbox.timeout_ms", 3000)
	vip.SetDefault("sandbox.max_concurrent", 8)
	vip.SetDefault("sandbox.max_rows", 1000)
	vip.SetDefault("sandbox.forbidden_tables", DefaultForbiddenTables)
	vip.SetDefault("sandbox.rate_limit_per_minute", 30)

	vip.SetDefault("log.level", "info")
	vip.SetDefault("log.file", "logs/app.log")
	vip.SetDefault("log.max_size_mb", 100)
	vip.SetDefault("log.max_backups", 5)
	vip.SetDefault("log.max_age_days", 30)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Значения по умолчанию
	setDefaults(vip)

	// 2. Привязываем переменные окружения ЯВНО
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.issuer", "JWT_ISSUER")

	vip.BindEnv("sandbox.driver", "SANDBOX_DRIVER")
	vip.BindEnv("sandbox.dsn", "SANDBOX_DSN")
	vip.BindEnv("sandbox.timeout_ms", "SANDBOX_TIMEOUT_MS")

	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.mode", "GIN_MODE")
	vip.BindEnv("log.level", "LOG_LEVEL")

	// 3. Файл конфигурации необязателен, т.к. есть BindEnv
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// REDIS_ADDRS приходит одной строкой через запятую
	if len(cfg.Redis.Addrs) == 1 && strings.Contains(cfg.Redis.Addrs[0], ",") {
		cfg.Redis.Addrs = strings.Split(cfg.Redis.Addrs[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required in config (check JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Server.Mode == "release" && c.Database.Password == "" {
		return fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
	}
	switch c.Sandbox.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported sandbox driver: %q", c.Sandbox.Driver)
	}
	if c.Sandbox.Driver == "sqlite" && c.Sandbox.DSN == "" {
		c.Sandbox.DSN = ":memory:"
	}
	if c.Sandbox.MaxConcurrent <= 0 {
		return fmt.Errorf("sandbox.max_concurrent must be positive")
	}
	if c.Exam.ExpirySweepIntervalSec <= 0 {
		return fmt.Errorf("exam.expiry_sweep_interval_sec must be positive")
	}
	return nil
}
