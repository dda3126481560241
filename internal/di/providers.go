package di

import (
	"fmt"

	"github.com/aihub/paperqa-go/internal/cache"
	"github.com/aihub/paperqa-go/internal/config"
	"github.com/aihub/paperqa-go/internal/metrics"
	"github.com/aihub/paperqa-go/internal/paperstore"
	"github.com/aihub/paperqa-go/internal/rag"
	"github.com/aihub/paperqa-go/internal/services"
	"github.com/aihub/paperqa-go/internal/storage"
	"go.uber.org/dig"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	// 注册配置
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.GetAppConfig()
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		return cfg, nil
	}); err != nil {
		return err
	}

	// 注册论文元数据存储
	if err := container.Provide(paperstore.NewStore); err != nil {
		return err
	}

	// 注册对象存储
	if err := container.Provide(storage.NewObjectStore); err != nil {
		return err
	}

	// 注册索引缓存（未启用时为nil）
	if err := container.Provide(cache.NewIndexCache); err != nil {
		return err
	}

	// 注册嵌入器
	if err := container.Provide(func(cfg *config.Config) rag.Embedder {
		return rag.NewOpenAIEmbedder(cfg.Knowledge.Embedding.APIKey, cfg.Knowledge.Embedding.Model)
	}); err != nil {
		return err
	}

	// 注册向量索引存储
	if err := container.Provide(rag.NewIndexStore); err != nil {
		return err
	}

	// 注册检索器
	if err := container.Provide(func(cfg *config.Config, embedder rag.Embedder, indexStore rag.IndexStore) *rag.Retriever {
		return rag.NewRetriever(embedder, indexStore, cfg.Knowledge.MinPerPaper, cfg.Knowledge.MaxParallel)
	}); err != nil {
		return err
	}

	// 注册生成器与问答器
	if err := container.Provide(func(cfg *config.Config) rag.Generator {
		return rag.NewOpenAIGenerator(cfg.AI)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(cfg *config.Config, generator rag.Generator) *rag.GroundedAnswerer {
		return rag.NewGroundedAnswerer(generator, cfg.AI)
	}); err != nil {
		return err
	}

	// 注册指标收集器
	if err := container.Provide(func(cfg *config.Config) *metrics.Collector {
		if !cfg.Prometheus.Enabled {
			return nil
		}
		return metrics.NewCollector()
	}); err != nil {
		return err
	}

	// 注册服务
	if err := container.Provide(services.NewPaperService); err != nil {
		return err
	}
	if err := container.Provide(services.NewChatService); err != nil {
		return err
	}

	return nil
}
