package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Session  SessionConfig  `mapstructure:"session"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	SchemaFile      string        `mapstructure:"schema_file"`
}

// URL assembles the postgres:// connection string consumed by the
// migration runner and the gorm driver. The password is URL-escaped so
// credentials with special characters survive the round trip.
func (c PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		c.User,
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Database,
	)
}

type ChainConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	TradeProgramID string        `mapstructure:"trade_program_id"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	TradeTTL   time.Duration `mapstructure:"trade_ttl"`
	BalanceTTL time.Duration `mapstructure:"balance_ttl"`
	ExpireCron string        `mapstructure:"expire_cron"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", "0.0.0.0:3000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.database", "tradewithme")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", "30m")
	v.SetDefault("postgres.conn_max_idle_time", "5m")
	v.SetDefault("postgres.migrations_dir", "migrations")
	v.SetDefault("postgres.schema_file", "db/schema.sql")
	v.SetDefault("chain.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("chain.trade_program_id", "")
	v.SetDefault("chain.timeout", "15s")
	v.SetDefault("session.trade_ttl", "24h")
	v.SetDefault("session.balance_ttl", "10m")
	v.SetDefault("session.expire_cron", "@every 1m")
	v.SetDefault("session.send_buffer", 32)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
