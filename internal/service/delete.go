package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/logger"
	"github.com/timmy/memehub/internal/storage"
)

// DeleteService tears an uploaded item down across the blob store, the
// vector index and the ownership ledger.
type DeleteService struct {
	store  storage.BlobStore
	space  *DomainSpace
	ledger OwnershipLedger
}

// NewDeleteService creates a new delete service.
func NewDeleteService(store storage.BlobStore, space *DomainSpace, ledger OwnershipLedger) *DeleteService {
	return &DeleteService{store: store, space: space, ledger: ledger}
}

// StepOutcome is the result of one teardown step.
type StepOutcome struct {
	Step    string `json:"step"` // blob, vector, ledger
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DeleteResult reports every step, in execution order.
type DeleteResult struct {
	ImageURL string        `json:"imageUrl"`
	Steps    []StepOutcome `json:"steps"`
}

// Delete removes imageURL for owner. imageURL may be the public URL, a path
// under the route prefix or a bare key. It is resolved to a storage key and
// back to the public URL before anything is touched, so invalid or
// traversing URLs fail with a validation error and no side effect. The steps then run best effort:
// every step runs even when an earlier one failed, and any failure makes
// the call return ErrPartialDelete alongside the full result. Blobs are
// only removed when the ledger shows owner owns the item.
func (s *DeleteService) Delete(ctx context.Context, owner, imageURL string) (*DeleteResult, error) {
	owner = domain.NormalizeOwner(owner)
	imageURL = strings.TrimSpace(imageURL)
	if owner == "" {
		return nil, fmt.Errorf("%w: missing user email", domain.ErrValidation)
	}
	if imageURL == "" {
		return nil, fmt.Errorf("%w: image url is required", domain.ErrValidation)
	}
	key, err := s.store.KeyFromURL(imageURL)
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			err = fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		return nil, err
	}
	// Index and ledger rows are keyed by the URL Save returned.
	imageURL = s.store.URL(key)

	ctx = logger.SetOwner(ctx, owner)
	res := &DeleteResult{ImageURL: imageURL}
	var errs []error
	record := func(step string, err error, skipped bool) {
		out := StepOutcome{Step: step, OK: err == nil, Skipped: skipped}
		if err != nil {
			out.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", step, err))
			logger.FromContext(ctx).WithFields(logger.Fields{
				logger.FieldItemURL: imageURL,
				"step":              step,
			}).WithError(err).Warn("Delete step failed")
		}
		res.Steps = append(res.Steps, out)
	}

	owned, err := s.ledger.Get(ctx, owner, imageURL)
	switch {
	case err != nil:
		record("blob", fmt.Errorf("ownership lookup: %w", err), false)
	case owned == nil:
		record("blob", nil, true)
	default:
		record("blob", s.store.Delete(ctx, key), false)
	}

	record("vector", s.space.Index.Delete(ctx, owner, imageURL), false)

	_, err = s.ledger.Remove(ctx, owner, imageURL)
	record("ledger", err, false)

	if len(errs) > 0 {
		return res, fmt.Errorf("%w: %w", domain.ErrPartialDelete, errors.Join(errs...))
	}
	logger.FromContext(ctx).WithField(logger.FieldItemURL, imageURL).Info("Item deleted")
	return res, nil
}
