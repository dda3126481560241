package paperstore

import (
	"errors"
	"fmt"

	"github.com/aihub/paperqa-go/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DBStore 基于Postgres的论文存储
// 单键upsert由数据库保证原子性，消除文件存储的整文件重写竞态。
type DBStore struct {
	db *gorm.DB
}

// NewDBStore 创建数据库存储并自动迁移表结构
func NewDBStore(databaseURL string) (*DBStore, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := db.AutoMigrate(&models.Paper{}); err != nil {
		return nil, fmt.Errorf("failed to migrate papers table: %w", err)
	}
	return &DBStore{db: db}, nil
}

// NewDBStoreWithDB 使用已有连接创建存储（测试用）
func NewDBStoreWithDB(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// List 返回全部论文记录，按创建时间倒序
func (s *DBStore) List() ([]models.Paper, error) {
	var papers []models.Paper
	if err := s.db.Order("created_at DESC").Find(&papers).Error; err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	return papers, nil
}

// Get 按ID查找论文
func (s *DBStore) Get(paperID string) (*models.Paper, error) {
	var paper models.Paper
	if err := s.db.First(&paper, "paper_id = ?", paperID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return &paper, nil
}

// Upsert 插入或按主键更新论文记录
func (s *DBStore) Upsert(paper models.Paper) error {
	if err := models.ValidStatus(paper.Status); err != nil {
		return err
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "paper_id"}},
		UpdateAll: true,
	}).Create(&paper).Error
	if err != nil {
		return fmt.Errorf("failed to upsert paper: %w", err)
	}
	return nil
}
