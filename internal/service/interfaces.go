package service

import (
	"context"

	"github.com/timmy/memehub/internal/domain"
)

// Describer generates a text description of an image.
type Describer interface {
	Describe(ctx context.Context, req DescribeRequest) (string, error)
}

// OwnershipLedger records which owner uploaded which item.
// *repository.OwnershipRepository implements it.
type OwnershipLedger interface {
	Add(ctx context.Context, owner, itemURL string) (*domain.OwnershipRecord, error)
	Remove(ctx context.Context, owner, itemURL string) (*domain.OwnershipRecord, error)
	Get(ctx context.Context, owner, itemURL string) (*domain.OwnershipRecord, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]domain.OwnershipRecord, error)
}
