package main

import (
	"log"
	"strconv"

	"github.com/aihub/paperqa-go/app/bootstrap"
	"github.com/aihub/paperqa-go/app/router"
	"github.com/aihub/paperqa-go/internal/config"
	"github.com/aihub/paperqa-go/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init()

	web.BConfig.AppName = "PaperQA"
	web.BConfig.CopyRequestBody = true
	web.BConfig.MaxMemory = 64 << 20

	if port, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	logger.Info("starting PaperQA service", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
