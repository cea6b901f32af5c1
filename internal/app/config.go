package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/mdr-library-backend/internal/data/db"
	"github.com/yungbote/mdr-library-backend/internal/observability"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
	"github.com/yungbote/mdr-library-backend/internal/platform/neo4jdb"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendNeo4j    = "neo4j"
)

type Config struct {
	LogMode  string
	HTTPAddr string

	StoreBackend string
	Postgres     db.PostgresConfig
	SQLitePath   string
	Neo4j        neo4jdb.Config

	RedisAddr    string
	RedisChannel string

	LibraryPolicyFile     string
	ReadCacheTTL          time.Duration
	ConflictRetryAttempts int
	CORSOrigins           []string

	Otel    observability.OtelConfig
	Metrics observability.MetricsConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_mode", "development")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("store_backend", BackendMemory)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "postgres")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_name", "mdr")
	v.SetDefault("postgres_sslmode", "disable")
	v.SetDefault("postgres_max_open_conns", 20)
	v.SetDefault("sqlite_path", "mdr.db")

	v.SetDefault("neo4j_uri", "")
	v.SetDefault("neo4j_user", "neo4j")
	v.SetDefault("neo4j_password", "")
	v.SetDefault("neo4j_database", "neo4j")
	v.SetDefault("neo4j_timeout", 10*time.Second)
	v.SetDefault("neo4j_max_pool_size", 50)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_channel", "mdr.lifecycle")

	v.SetDefault("library_policy_file", "")
	v.SetDefault("read_cache_ttl", 30*time.Second)
	v.SetDefault("conflict_retry_attempts", 3)
	v.SetDefault("cors_origins", "")

	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_service_name", "mdr-library")
	v.SetDefault("otel_environment", "development")
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("otel_headers", "")
	v.SetDefault("otel_insecure", false)
	v.SetDefault("otel_sample_ratio", 1.0)
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("metrics_addr", "")
}

// LoadConfig reads MDR_* environment variables, optionally layered over a
// config file. Environment wins over the file.
func LoadConfig(log *logger.Logger, file string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MDR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file = strings.TrimSpace(file); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
		if log != nil {
			log.Info("config file loaded", "path", v.ConfigFileUsed())
		}
	}

	cfg := Config{
		LogMode:      v.GetString("log_mode"),
		HTTPAddr:     v.GetString("http_addr"),
		StoreBackend: strings.ToLower(strings.TrimSpace(v.GetString("store_backend"))),
		Postgres: db.PostgresConfig{
			Host:         v.GetString("postgres_host"),
			Port:         v.GetString("postgres_port"),
			User:         v.GetString("postgres_user"),
			Password:     v.GetString("postgres_password"),
			Name:         v.GetString("postgres_name"),
			SSLMode:      v.GetString("postgres_sslmode"),
			MaxOpenConns: v.GetInt("postgres_max_open_conns"),
		},
		SQLitePath: v.GetString("sqlite_path"),
		Neo4j: neo4jdb.Config{
			URI:         v.GetString("neo4j_uri"),
			User:        v.GetString("neo4j_user"),
			Password:    v.GetString("neo4j_password"),
			Database:    v.GetString("neo4j_database"),
			Timeout:     v.GetDuration("neo4j_timeout"),
			MaxPoolSize: v.GetInt("neo4j_max_pool_size"),
		},
		RedisAddr:             v.GetString("redis_addr"),
		RedisChannel:          v.GetString("redis_channel"),
		LibraryPolicyFile:     v.GetString("library_policy_file"),
		ReadCacheTTL:          v.GetDuration("read_cache_ttl"),
		ConflictRetryAttempts: v.GetInt("conflict_retry_attempts"),
		CORSOrigins:           splitList(v.GetString("cors_origins")),
		Otel: observability.OtelConfig{
			Enabled:     v.GetBool("otel_enabled"),
			ServiceName: v.GetString("otel_service_name"),
			Environment: v.GetString("otel_environment"),
			Endpoint:    v.GetString("otel_endpoint"),
			Headers:     observability.ParseHeaders(v.GetString("otel_headers")),
			Insecure:    v.GetBool("otel_insecure"),
			SampleRatio: v.GetFloat64("otel_sample_ratio"),
		},
		Metrics: observability.MetricsConfig{
			Enabled: v.GetBool("metrics_enabled"),
			Prefix:  "mdr",
			Addr:    strings.TrimSpace(v.GetString("metrics_addr")),
		},
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres, BackendSQLite:
	case BackendNeo4j:
		if strings.TrimSpace(c.Neo4j.URI) == "" {
			return fmt.Errorf("store backend neo4j requires MDR_NEO4J_URI")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.ConflictRetryAttempts < 1 {
		return fmt.Errorf("conflict retry attempts must be >= 1, got %d", c.ConflictRetryAttempts)
	}
	if c.ReadCacheTTL < 0 {
		return fmt.Errorf("read cache ttl must not be negative")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
