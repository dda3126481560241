package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aihub/paperqa-go/internal/config"
)

// ObjectStore 上传文件的对象存储抽象
// 摄取管线只需要按key读取一段字节流，上传端只需要按key写入。
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewObjectStore 根据配置选择存储实现
func NewObjectStore(cfg *config.Config) (ObjectStore, error) {
	sc := cfg.Knowledge.Storage
	switch sc.Provider {
	case "", "local":
		return NewLocalStore(sc.BasePath)
	case "minio", "s3":
		return NewMinIOStore(sc)
	default:
		return nil, fmt.Errorf("unknown object storage provider: %s", sc.Provider)
	}
}
