package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/00anuyh/souvenir/models"
)

// Gorm is a KeyValueStore backed by the kv_entries table
// (STORE_BACKEND=mysql, the production default). Set is an upsert;
// SetIfAbsent is a plain INSERT so the primary key constraint decides the
// winner when two requests race.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.KVEntry
	err := s.db.WithContext(ctx).Where("k = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.V, true, nil
}

func (s *Gorm) Set(ctx context.Context, key string, value []byte) error {
	entry := models.KVEntry{K: key, V: value}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "k"}},
			DoUpdates: clause.AssignmentColumns([]string{"v"}),
		}).
		Create(&entry).Error
}

func (s *Gorm) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("k = ?", key).Delete(&models.KVEntry{}).Error
}

func (s *Gorm) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	entry := models.KVEntry{K: key, V: value}
	err := s.db.WithContext(ctx).Create(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
