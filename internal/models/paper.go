package models

import (
	"fmt"
	"time"
)

// Paper生命周期状态
const (
	PaperStatusProcessing = "processing"
	PaperStatusIndexed    = "indexed"
	PaperStatusFailed     = "failed"
)

// Paper 论文记录
type Paper struct {
	PaperID    string    `json:"paper_id" gorm:"primaryKey;size:64"`
	Title      string    `json:"title" gorm:"size:512"`
	Status     string    `json:"status" gorm:"size:16;index"`
	FileKey    string    `json:"file_key,omitempty" gorm:"size:512"`
	ChunkCount int       `json:"chunk_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Paper) TableName() string {
	return "papers"
}

// 合法的状态流转：processing → indexed | failed；failed/indexed → processing（重新摄取）
var paperTransitions = map[string][]string{
	PaperStatusProcessing: {PaperStatusIndexed, PaperStatusFailed},
	PaperStatusIndexed:    {PaperStatusProcessing},
	PaperStatusFailed:     {PaperStatusProcessing},
}

// CanTransition 校验状态流转是否合法
func CanTransition(from, to string) bool {
	if from == "" {
		return to == PaperStatusProcessing
	}
	for _, next := range paperTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus 校验状态值
func ValidStatus(status string) error {
	switch status {
	case PaperStatusProcessing, PaperStatusIndexed, PaperStatusFailed:
		return nil
	}
	return fmt.Errorf("invalid paper status: %s", status)
}
