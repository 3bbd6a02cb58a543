package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
	RequestTimeout  int   // 单请求超时（秒）
	MaxBodyBytes    int64 // 请求体上限
	RateLimit       float64
	RateBurst       int
	MaxInFlight     int64
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type Log struct {
	Level      string
	JSON       bool
	File       string // 为空则只输出到 stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
	LeewaySec         int
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// Serial 发号配置：scope=day|day_type，counter=db|redis
type Serial struct {
	Scope   string
	Counter string
}

type MQ struct {
	Enabled bool
	URL     string
	Queue   string
	Durable bool
}

type Config struct {
	App    App
	Log    Log
	JWT    JWT
	DB     DB
	Redis  Redis `mapstructure:"redis"`
	Serial Serial
	MQ     MQ `mapstructure:"mq"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "donor-registry")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readtimeoutsec", 5)
	v.SetDefault("app.http.writetimeoutsec", 10)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.http.requesttimeout", 10)
	v.SetDefault("app.http.maxbodybytes", 1<<20)
	v.SetDefault("app.http.ratelimit", 200)
	v.SetDefault("app.http.rateburst", 400)
	v.SetDefault("app.http.maxinflight", 300)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.compress", false)
	v.SetDefault("log.maxsizemb", 100)
	v.SetDefault("log.maxbackups", 7)
	v.SetDefault("log.maxagedays", 30)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "donor-registry")
	v.SetDefault("jwt.accesstokenttlmin", 30)
	v.SetDefault("jwt.leewaysec", 60)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:donors.db")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.maxopenconns", 20)
	v.SetDefault("db.maxidleconns", 5)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("db.automigrate", true)
	v.SetDefault("db.loglevel", "warn")

	v.SetDefault("serial.scope", "day")
	v.SetDefault("serial.counter", "db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mq.enabled", false)
	v.SetDefault("mq.url", "")
	v.SetDefault("mq.queue", "donor.created")
	v.SetDefault("mq.durable", true)
}

// Load 读取 YAML（路径为空时取 CONFIG_PATH，再退回默认路径），APP_ 前缀环境变量覆盖。
// 默认路径不存在时只用默认值 + 环境变量；显式指定的文件读不到则报错。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := true
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
			explicit = false
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// MustLoad 启动入口使用，失败直接退出
func MustLoad(path string) *Config {
	c, err := Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return c
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	switch c.Serial.Scope {
	case "day", "day_type":
	default:
		return fmt.Errorf("config: serial.scope must be day or day_type, got %q", c.Serial.Scope)
	}
	switch c.Serial.Counter {
	case "db":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: serial.counter=redis requires redis.addr")
		}
	default:
		return fmt.Errorf("config: serial.counter must be db or redis, got %q", c.Serial.Counter)
	}
	if c.MQ.Enabled && c.MQ.URL == "" {
		return fmt.Errorf("config: mq.enabled requires mq.url")
	}
	return nil
}
