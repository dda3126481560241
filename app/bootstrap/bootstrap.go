package bootstrap

import (
	"log"

	"github.com/aihub/paperqa-go/internal/cache"
	"github.com/aihub/paperqa-go/internal/config"
	"github.com/aihub/paperqa-go/internal/di"
	"github.com/aihub/paperqa-go/internal/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error
}

// Init bootstraps configuration, logger and the dependency container
// required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	app := &App{}
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		logger.Sync()
		return nil
	})

	// Build the dependency container.
	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}

	// Warm up shared infrastructure so misconfiguration fails at startup.
	if err := di.Invoke(func(indexCache *cache.IndexCache) {
		if indexCache != nil {
			app.cleanupTasks = append(app.cleanupTasks, indexCache.Close)
		}
	}); err != nil {
		return nil, err
	}

	logger.Info("application bootstrapped",
		zap.String("env", config.AppConfig.Server.Env),
		zap.String("paperstore", config.AppConfig.PaperStore.Provider),
		zap.String("storage", config.AppConfig.Knowledge.Storage.Provider),
		zap.String("vector_store", config.AppConfig.Knowledge.VectorStore.Provider))
	return app, nil
}

// Shutdown runs all registered cleanup tasks in reverse order.
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Error("cleanup task failed", zap.Error(err))
		}
	}
}
