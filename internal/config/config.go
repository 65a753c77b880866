package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Режимы хранения и кэша
const (
	ModeDatabase = "database"
	ModeFile     = "file"
	ModeMemory   = "memory"
	CacheRedis   = "redis"
	CacheMemory  = "memory"
)

var (
	ErrInvalidTTL         = errors.New("TTL must be positive")
	ErrInvalidCodeLength  = errors.New("code length must be within [4,32]")
	ErrInvalidWorkers     = errors.New("click workers and queue size must be positive")
	ErrInvalidThreshold   = errors.New("collision threshold must be positive")
	ErrInvalidSubnet      = errors.New("trusted subnet must be in CIDR format")
	ErrEmptyServerAddress = errors.New("server address must not be empty")
	ErrWeakJWTSecret      = errors.New("JWT secret must be at least 16 bytes")
)

// MinJWTSecretLength минимальная длина секрета подписи токенов
const MinJWTSecretLength = 16

// Config содержит настройки приложения
type Config struct {
	RunAddr            string
	GRPCAddr           string
	BaseURL            string
	FileStoragePath    string
	DatabaseDSN        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	NATSURL            string
	JWTSecret          string
	TrustedSubnet      string
	LogLevel           string
	ResolutionTTL      time.Duration
	AnalyticsTTL       time.Duration
	CodeLength         int
	CollisionThreshold int
	ClickWorkers       int
	ClickQueueSize     int
	MaxCachedClicks    int
	GeoLookupURL       string
	CascadeClicks      bool
	Mode               string
	CacheMode          string
}

var defaults = map[string]any{
	"SERVER_ADDRESS":      ":8080",
	"GRPC_ADDRESS":        ":3200",
	"BASE_URL":            "http://localhost:8080",
	"FILE_STORAGE_PATH":   "",
	"DATABASE_DSN":        "",
	"REDIS_ADDR":          "",
	"REDIS_PASSWORD":      "",
	"REDIS_DB":            0,
	"NATS_URL":            "",
	"JWT_SECRET":          "",
	"TRUSTED_SUBNET":      "",
	"LOG_LEVEL":           "info",
	"RESOLUTION_TTL":      "24h",
	"ANALYTICS_TTL":       "5m",
	"CODE_LENGTH":         7,
	"COLLISION_THRESHOLD": 5,
	"CLICK_WORKERS":       4,
	"CLICK_QUEUE_SIZE":    1024,
	"MAX_CACHED_CLICKS":   500,
	"GEO_LOOKUP_URL":      "https://ipwho.is",
	"CASCADE_CLICKS":      false,
}

// флаг командной строки -> ключ конфигурации
var flagKeys = map[string]string{
	"a": "SERVER_ADDRESS",
	"g": "GRPC_ADDRESS",
	"b": "BASE_URL",
	"f": "FILE_STORAGE_PATH",
	"d": "DATABASE_DSN",
	"r": "REDIS_ADDR",
	"n": "NATS_URL",
	"j": "JWT_SECRET",
	"t": "TRUSTED_SUBNET",
	"l": "LOG_LEVEL",
}

// NewConfig загружает конфигурацию из аргументов процесса и окружения
func NewConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load собирает конфигурацию: значения по умолчанию, файл конфигурации,
// флаги, переменные окружения. Каждый следующий источник перекрывает предыдущий.
func Load(args []string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	fs := flag.NewFlagSet("shortener", flag.ContinueOnError)
	fs.String("a", "", "address and port to run HTTP server")
	fs.String("g", "", "address and port to run gRPC server")
	fs.String("b", "", "base URL for shortened links")
	fs.String("f", "", "path to file for storing links")
	fs.String("d", "", "database DSN for PostgreSQL")
	fs.String("r", "", "redis address")
	fs.String("n", "", "NATS URL for click events")
	fs.String("j", "", "JWT secret key")
	fs.String("t", "", "trusted subnet in CIDR format")
	fs.String("l", "", "log level")
	configPath := fs.String("c", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath == "" {
		*configPath = os.Getenv("CONFIG")
	}
	if *configPath != "" {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", *configPath, err)
		}
	}

	// Флаги перекрывают файл
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && f.Value.String() != "" {
			v.Set(key, f.Value.String())
		}
	})

	// Переменные окружения имеют высший приоритет
	for key := range defaults {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			v.Set(key, val)
		}
	}

	cfg := &Config{
		RunAddr:            validateAddress(v.GetString("SERVER_ADDRESS")),
		GRPCAddr:           v.GetString("GRPC_ADDRESS"),
		BaseURL:            validateBaseURL(v.GetString("BASE_URL")),
		FileStoragePath:    v.GetString("FILE_STORAGE_PATH"),
		DatabaseDSN:        v.GetString("DATABASE_DSN"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		NATSURL:            v.GetString("NATS_URL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		TrustedSubnet:      v.GetString("TRUSTED_SUBNET"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		ResolutionTTL:      v.GetDuration("RESOLUTION_TTL"),
		AnalyticsTTL:       v.GetDuration("ANALYTICS_TTL"),
		CodeLength:         v.GetInt("CODE_LENGTH"),
		CollisionThreshold: v.GetInt("COLLISION_THRESHOLD"),
		ClickWorkers:       v.GetInt("CLICK_WORKERS"),
		ClickQueueSize:     v.GetInt("CLICK_QUEUE_SIZE"),
		MaxCachedClicks:    v.GetInt("MAX_CACHED_CLICKS"),
		GeoLookupURL:       v.GetString("GEO_LOOKUP_URL"),
		CascadeClicks:      v.GetBool("CASCADE_CLICKS"),
	}
	if cfg.GRPCAddr != "" {
		cfg.GRPCAddr = validateAddress(cfg.GRPCAddr)
	}

	// Определяем режим работы
	switch {
	case cfg.DatabaseDSN != "":
		cfg.Mode = ModeDatabase
	case cfg.FileStoragePath != "":
		cfg.Mode = ModeFile
	default:
		cfg.Mode = ModeMemory
	}
	if cfg.RedisAddr != "" {
		cfg.CacheMode = CacheRedis
	} else {
		cfg.CacheMode = CacheMemory
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Mode == ModeFile {
		// Создаём директорию для файла, если она не существует
		dir := filepath.Dir(cfg.FileStoragePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (cfg *Config) Validate() error {
	if cfg.RunAddr == "" || cfg.RunAddr == ":" {
		return ErrEmptyServerAddress
	}
	if cfg.ResolutionTTL <= 0 || cfg.AnalyticsTTL <= 0 {
		return ErrInvalidTTL
	}
	if cfg.CodeLength < 4 || cfg.CodeLength > 32 {
		return ErrInvalidCodeLength
	}
	if cfg.CollisionThreshold <= 0 {
		return ErrInvalidThreshold
	}
	if cfg.ClickWorkers <= 0 || cfg.ClickQueueSize <= 0 {
		return ErrInvalidWorkers
	}
	if cfg.TrustedSubnet != "" && !strings.Contains(cfg.TrustedSubnet, "/") {
		return ErrInvalidSubnet
	}
	// пустой секрет отключает проверку токенов владельца
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < MinJWTSecretLength {
		return ErrWeakJWTSecret
	}
	return nil
}

func validateAddress(addr string) string {
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

func validateBaseURL(url string) string {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}
