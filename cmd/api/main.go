package main

import (
	"context"
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"donor-registry/internal/bootstrap"
	"donor-registry/internal/core/config"
	"donor-registry/internal/transport/http/handler"
	"donor-registry/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad(os.Getenv("CONFIG_PATH"))

	d, err := bootstrap.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer d.Close()

	donors, err := d.Donors(context.Background())
	if err != nil {
		d.Log.Error("donor service", zap.Error(err))
		d.Close()
		os.Exit(1)
	}

	// 路由（用户端）
	r := router.NewAPIEngine(d.Log, d.Users, d.Limits(),
		handler.NewAuthHandler(d.Users, d.Log),
		handler.NewDonorHandler(donors, d.Log),
	)

	if err := d.Run("user api", cfg.App.HTTP.Host, cfg.App.HTTP.Port, r); err != nil {
		d.Close()
		os.Exit(1)
	}
}
