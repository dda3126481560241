package paperstore

import (
	"fmt"

	"github.com/aihub/paperqa-go/internal/config"
	"github.com/aihub/paperqa-go/internal/models"
)

// Store 论文元数据存储
// 摄取管线是唯一的写入方；List/Get供查询链路筛选indexed论文。
// Get对不存在的ID返回 (nil, nil)，error只表示存储本身不可用。
type Store interface {
	List() ([]models.Paper, error)
	Get(paperID string) (*models.Paper, error)
	Upsert(paper models.Paper) error
}

// NewStore 根据配置选择存储实现
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.PaperStore.Provider {
	case "", "file":
		return NewFileStore(cfg.PaperStore.File.Path)
	case "postgres":
		return NewDBStore(cfg.PaperStore.Database.URL)
	default:
		return nil, fmt.Errorf("unknown paperstore provider: %s", cfg.PaperStore.Provider)
	}
}
