package database

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
)

var ErrUnsupportedDriver = errors.New("database: unsupported driver")

type Opts struct {
	Driver             string // postgres | mysql | sqlite
	DSN                string
	Username           string // 仅 mysql URL 形式 DSN 生效
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	LogLevel           string // silent | error | warn | info
	SlowThreshold      time.Duration
	Logger             *zap.Logger // 为空时 SQL 日志丢弃
}

func NewGorm(o Opts) (*gorm.DB, error) {
	zl := o.Logger
	if zl == nil {
		zl = zap.NewNop()
	}

	dial, err := dialector(o, zl)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger:         newGormLogger(zl, o.LogLevel, o.SlowThreshold),
		TranslateError: true, // 唯一冲突 → gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if o.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	}
	if o.ConnMaxLifetimeMin > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	}
	return db.Session(&gorm.Session{
		PrepareStmt:            o.Driver != "sqlite",
		SkipDefaultTransaction: true, // 发号走显式事务，其余单语句不需要
	}), nil
}

func dialector(o Opts, zl *zap.Logger) (gorm.Dialector, error) {
	switch o.Driver {
	case "postgres":
		return postgres.Open(o.DSN), nil
	case "mysql":
		dsn := normalizeMySQLDSN(o.DSN, o.Username, o.Password)
		zl.Info("mysql dsn", zap.String("dsn", maskDSN(dsn)))
		return mysql.Open(dsn), nil
	case "sqlite":
		// 本地开发 / 测试用，DSN 例如 file:donors.db 或 :memory:
		return sqlite.Open(o.DSN), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, o.Driver)
	}
}

// Migrate 自动建表
func Migrate(db *gorm.DB, models ...any) error {
	if len(models) == 0 {
		return nil
	}
	return db.AutoMigrate(models...)
}

// zapPrinter 让 gorm 的 logger 写进 zap
type zapPrinter struct{ s *zap.SugaredLogger }

func (p zapPrinter) Printf(format string, args ...any) { p.s.Infof(format, args...) }

func newGormLogger(zl *zap.Logger, level string, slow time.Duration) logger.Interface {
	lvl := logger.Warn
	switch level {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	return logger.New(zapPrinter{zl.Named("gorm").WithOptions(zap.AddCallerSkip(3)).Sugar()}, logger.Config{
		SlowThreshold:             slow,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true, // 查不到是业务结果，不是错误
		ParameterizedQueries:      true, // 日志里不带参数值（身份证号、手机号）
	})
}

// maskDSN user:pass@... → user:****@...
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at <= 0 {
		return dsn
	}
	colon := strings.Index(dsn[:at], ":")
	if colon <= 0 {
		return dsn
	}
	return dsn[:colon+1] + "****" + dsn[at:]
}

// JDBC/Navicat 风格参数 → go-sql-driver 参数
var jdbcRenames = map[string]string{
	"characterEncoding": "charset",
	"serverTimezone":    "loc",
}

// JDBC 专用、驱动不识别的参数
var jdbcDrops = []string{"useUnicode", "zeroDateTimeBehavior"}

// normalizeMySQLDSN 接受 go-sql-driver 原生 DSN（原样返回）、mysql:// URL 与 jdbc:mysql:// URL。
// URL 形式会被改写为 user:pass@tcp(host)/db?...，userOverride/passOverride 优先。
func normalizeMySQLDSN(input, userOverride, passOverride string) string {
	in := strings.TrimPrefix(strings.TrimSpace(input), "jdbc:")
	if !strings.HasPrefix(in, "mysql://") {
		return in
	}
	u, err := url.Parse(in)
	if err != nil {
		return in // 交给驱动报错
	}

	q := u.Query()
	user, pass := urlCredentials(u, q, userOverride, passOverride)

	for from, to := range jdbcRenames {
		if v := q.Get(from); v != "" && q.Get(to) == "" {
			q.Set(to, v)
		}
		q.Del(from)
	}
	for _, k := range jdbcDrops {
		q.Del(k)
	}
	if v := strings.ToLower(q.Get("useSSL")); v != "" {
		q.Set("tls", sslToTLS(v))
		q.Del("useSSL")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "true")
	}
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}

	var sb strings.Builder
	if user != "" || pass != "" {
		sb.WriteString(user)
		if pass != "" {
			sb.WriteString(":" + pass)
		}
		sb.WriteString("@")
	}
	fmt.Fprintf(&sb, "tcp(%s)/%s", u.Host, strings.TrimPrefix(u.Path, "/"))
	if enc := q.Encode(); enc != "" {
		sb.WriteString("?" + enc)
	}
	return sb.String()
}

// urlCredentials URL userinfo < query 里的 user/password < override
func urlCredentials(u *url.URL, q url.Values, userOverride, passOverride string) (string, string) {
	var user, pass string
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	if v := q.Get("user"); v != "" {
		user = v
	}
	if v := q.Get("password"); v != "" {
		pass = v
	}
	q.Del("user")
	q.Del("password")
	if userOverride != "" {
		user = userOverride
	}
	if passOverride != "" {
		pass = passOverride
	}
	return user, pass
}

func sslToTLS(v string) string {
	switch v {
	case "true", "1":
		return "true"
	case "skip-verify", "preferred":
		return v
	default:
		return "false"
	}
}
