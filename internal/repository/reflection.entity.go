package repository

import (
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
)

type ReflectionEntity struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	DateKey   string    `gorm:"column:date_key;not null;uniqueIndex:idx_reflections_date_language"`
	Language  string    `gorm:"column:language;not null;uniqueIndex:idx_reflections_date_language"`
	Content   string    `gorm:"column:content;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ReflectionEntity) TableName() string {
	return "reflections"
}

func toReflectionModel(e *ReflectionEntity) *model.ReflectionArtifact {
	if e == nil {
		return nil
	}
	return &model.ReflectionArtifact{
		DateKey:   e.DateKey,
		Language:  model.Language(e.Language),
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
	}
}
