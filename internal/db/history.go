package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"shufflecast/internal/models"
)

// ErrNotFound indicates the requested record does not exist
var ErrNotFound = errors.New("record not found")

// HistoryRepository handles database operations for the playback history ledger
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create inserts a new play record
func (r *HistoryRepository) Create(ctx context.Context, record *models.PlayRecord) error {
	result := r.db.WithContext(ctx).Create(record)
	if result.Error != nil {
		return fmt.Errorf("failed to create play record: %w", result.Error)
	}
	return nil
}

// Update persists changes to an existing play record (outcome, end time)
func (r *HistoryRepository) Update(ctx context.Context, record *models.PlayRecord) error {
	result := r.db.WithContext(ctx).Save(record)
	if result.Error != nil {
		return fmt.Errorf("failed to update play record: %w", result.Error)
	}
	return nil
}

// Recent returns the most recent play records, newest first
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]*models.PlayRecord, error) {
	var records []*models.PlayRecord
	query := r.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list play records: %w", result.Error)
	}
	return records, nil
}

// CountByOutcome returns the number of records with the given outcome
func (r *HistoryRepository) CountByOutcome(ctx context.Context, outcome string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.PlayRecord{}).
		Where("outcome = ?", outcome).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count play records: %w", result.Error)
	}
	return count, nil
}

// LastByPath returns the most recent record for a file path
func (r *HistoryRepository) LastByPath(ctx context.Context, path string) (*models.PlayRecord, error) {
	var record models.PlayRecord
	result := r.db.WithContext(ctx).
		Where("file_path = ?", path).
		Order("started_at DESC").
		First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch play record: %w", result.Error)
	}
	return &record, nil
}
