// Package bootstrap 两个入口（api / admin）共用的装配逻辑
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"donor-registry/internal/core/auth"
	"donor-registry/internal/core/config"
	"donor-registry/internal/core/counter"
	"donor-registry/internal/core/database"
	"donor-registry/internal/core/logger"
	"donor-registry/internal/core/mq"
	"donor-registry/internal/core/server"
	"donor-registry/internal/domain"
	"donor-registry/internal/feature/donor"
	"donor-registry/internal/feature/user"
	"donor-registry/internal/repo"
	"donor-registry/internal/transport/http/router"
)

type Deps struct {
	Cfg   *config.Config
	Log   *zap.Logger
	DB    *gorm.DB
	JWT   *auth.JWTer
	Users *user.Service

	closers []func()
}

// New 日志 → 数据库（可选迁移）→ JWT → 用户服务
func New(cfg *config.Config) (*Deps, error) {
	log, cleanup := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		JSON:       cfg.Log.JSON,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		App:        cfg.App.Name,
	})
	d := &Deps{Cfg: cfg, Log: log}
	d.closers = append(d.closers, cleanup, logger.RedirectStdLog(log, zapcore.InfoLevel))

	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logger.ToWriter(log, zapcore.DebugLevel)
	gin.DefaultErrorWriter = logger.ToWriter(log, zapcore.ErrorLevel)

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             log,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("db open: %w", err)
	}
	d.DB = db
	d.closers = append(d.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db, repo.Models()...); err != nil {
			d.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		log.Info("automigrate done")
	}

	d.JWT = &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
		Leeway: time.Duration(cfg.JWT.LeewaySec) * time.Second,
	}
	d.Users = user.NewService(repo.NewUserRepo(db), d.JWT, log)
	return d, nil
}

// Donors 按配置选择发号方式（db / redis）与事件发布（rabbitmq / 无）
func (d *Deps) Donors(ctx context.Context) (*donor.Service, error) {
	cfg := d.Cfg
	o := donor.Options{
		Scope:  domain.SerialScope(cfg.Serial.Scope),
		Logger: d.Log,
	}

	if cfg.Serial.Counter == "redis" {
		rc := counter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		d.closers = append(d.closers, func() { _ = rc.Close() })
		o.Sequencer = rc
		d.Log.Info("serial counter: redis", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.MQ.Enabled {
		pub, err := mq.NewRabbit(mq.RabbitOpts{URL: cfg.MQ.URL, Durable: cfg.MQ.Durable})
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		d.closers = append(d.closers, func() { _ = pub.Close() })
		o.Publisher = pub
		o.Queue = cfg.MQ.Queue
		d.Log.Info("donor events enabled", zap.String("queue", cfg.MQ.Queue))
	}

	return donor.NewService(repo.NewDonorRepo(d.DB), o), nil
}

// Limits 传输层保护参数
func (d *Deps) Limits() router.Limits {
	h := d.Cfg.App.HTTP
	return router.Limits{
		RequestTimeout: time.Duration(h.RequestTimeout) * time.Second,
		MaxBodyBytes:   h.MaxBodyBytes,
		RateLimit:      h.RateLimit,
		RateBurst:      h.RateBurst,
		MaxInFlight:    h.MaxInFlight,
	}
}

// Close 逆序释放
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// Run 启动 HTTP 并阻塞到 SIGINT/SIGTERM，10s 内优雅关闭
func (d *Deps) Run(name, host string, port int, h http.Handler) error {
	hc := d.Cfg.App.HTTP
	addr := server.Addr(host, port)
	srv := server.BuildServer(addr, h,
		time.Duration(hc.ReadTimeoutSec)*time.Second,
		time.Duration(hc.WriteTimeoutSec)*time.Second,
		time.Duration(hc.IdleTimeoutSec)*time.Second,
	)
	if el, err := logger.ToStdLogger(d.Log, zapcore.WarnLevel); err == nil {
		srv.ErrorLog = el
	}

	// 启动前打印可点击地址
	host4human := host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := fmt.Sprintf("http://%s:%d", host4human, port)
	d.Log.Info(name+" starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("metrics", baseURL+"/metrics"),
	)

	errc := make(chan error, 1)
	go func() { errc <- server.StartHTTP(srv, d.Log) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.Log.Error(name+" start FAILED", zap.Error(err))
			return err
		}
		return nil
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		d.Log.Warn(name+" shutdown", zap.Error(err))
		return err
	}
	d.Log.Info(name + " stopped gracefully")
	return nil
}
