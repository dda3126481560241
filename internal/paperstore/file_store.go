package paperstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aihub/paperqa-go/internal/models"
)

// FileStore 基于JSON文件的论文存储
// 整文件读-改-写由互斥锁串行化，写入先落临时文件再rename，
// 避免并发摄取时的丢失更新和损坏的半成品文件。
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore 创建文件存储
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("paper store file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create paper store dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// List 返回全部论文记录（新纪录在前）
func (s *FileStore) List() ([]models.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get 按ID查找论文，不存在时返回 (nil, nil)
func (s *FileStore) Get(paperID string) (*models.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	papers, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range papers {
		if papers[i].PaperID == paperID {
			return &papers[i], nil
		}
	}
	return nil, nil
}

// Upsert 插入或替换论文记录，新记录排在最前
func (s *FileStore) Upsert(paper models.Paper) error {
	if err := models.ValidStatus(paper.Status); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	papers, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range papers {
		if papers[i].PaperID == paper.PaperID {
			papers[i] = paper
			replaced = true
			break
		}
	}
	if !replaced {
		papers = append([]models.Paper{paper}, papers...)
	}

	return s.save(papers)
}

func (s *FileStore) load() ([]models.Paper, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read paper store: %w", err)
	}
	var papers []models.Paper
	if err := json.Unmarshal(data, &papers); err != nil {
		return nil, fmt.Errorf("failed to decode paper store: %w", err)
	}
	return papers, nil
}

func (s *FileStore) save(papers []models.Paper) error {
	data, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode paper store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write paper store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace paper store: %w", err)
	}
	return nil
}
