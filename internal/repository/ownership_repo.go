package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/memehub/internal/domain"
)

// OwnershipRepository is the ledger of which owner uploaded which item.
type OwnershipRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewOwnershipRepository creates a new OwnershipRepository.
func NewOwnershipRepository(db *gorm.DB) *OwnershipRepository {
	return &OwnershipRepository{db: db, now: time.Now}
}

// Add records (owner, itemURL). It returns nil, nil when the pair already
// exists; the existing uploadedAt is kept.
func (r *OwnershipRepository) Add(ctx context.Context, owner, itemURL string) (*domain.OwnershipRecord, error) {
	rec := &domain.OwnershipRecord{
		UserEmail:  owner,
		ItemURL:    itemURL,
		UploadedAt: r.now().UTC(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to add ownership: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return rec, nil
}

// Remove deletes (owner, itemURL) and returns the removed row, or nil, nil
// when nothing matched.
func (r *OwnershipRepository) Remove(ctx context.Context, owner, itemURL string) (*domain.OwnershipRecord, error) {
	var removed *domain.OwnershipRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec domain.OwnershipRecord
		err := tx.Where("user_email = ? AND item_url = ?", owner, itemURL).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res := tx.Where("user_email = ? AND item_url = ?", owner, itemURL).Delete(&domain.OwnershipRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			removed = &rec
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove ownership: %w", err)
	}
	return removed, nil
}

// Get returns the record for (owner, itemURL), or nil, nil.
func (r *OwnershipRepository) Get(ctx context.Context, owner, itemURL string) (*domain.OwnershipRecord, error) {
	var rec domain.OwnershipRecord
	err := r.db.WithContext(ctx).
		Where("user_email = ? AND item_url = ?", owner, itemURL).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ownership: %w", err)
	}
	return &rec, nil
}

// ListByOwner returns the owner's records, newest first. limit <= 0 returns all.
func (r *OwnershipRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]domain.OwnershipRecord, error) {
	var recs []domain.OwnershipRecord
	q := r.db.WithContext(ctx).
		Where("user_email = ?", owner).
		Order("uploaded_at DESC").
		Order("item_url ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list ownership: %w", err)
	}
	return recs, nil
}

// Ping checks the database connection.
func (r *OwnershipRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
