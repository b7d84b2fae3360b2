package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrReflectionNotFound = errors.New("reflection not found")

type ReflectionRepository struct {
	*pg.DB
}

func NewReflectionRepository(db *pg.DB) *ReflectionRepository {
	return &ReflectionRepository{
		db,
	}
}

func (r *ReflectionRepository) Find(ctx context.Context, dateKey string, language model.Language) (*model.ReflectionArtifact, error) {
	var entity ReflectionEntity
	err := r.Read(ctx).
		Where("date_key = ? AND language = ?", dateKey, string(language)).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReflectionNotFound
		}
		return nil, err
	}
	return toReflectionModel(&entity), nil
}

// CreateIfAbsent inserts the artifact unless one already exists for the
// same (date, language). It reports whether this call created the row; a
// lost race is not an error.
func (r *ReflectionRepository) CreateIfAbsent(ctx context.Context, dateKey string, language model.Language, content string) (bool, error) {
	entity := &ReflectionEntity{
		DateKey:  dateKey,
		Language: string(language),
		Content:  content,
	}
	res := r.Write(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date_key"}, {Name: "language"}},
			DoNothing: true,
		}).
		Create(entity)
	if res.Error != nil {
		return false, fmt.Errorf("create reflection %s/%s: %w", dateKey, language, res.Error)
	}
	return res.RowsAffected > 0, nil
}
