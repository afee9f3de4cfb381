package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	_ "golang.org/x/image/webp"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/logger"
	"github.com/timmy/memehub/internal/repository"
	"github.com/timmy/memehub/internal/storage"
)

// IngestService runs the upload pipeline: blob store, description,
// embedding, vector index, ownership ledger. Each item advances through its
// stages independently; a failed stage stops that item only and nothing
// already written is rolled back.
type IngestService struct {
	store            storage.BlobStore
	vlm              Describer
	space            *DomainSpace
	ledger           OwnershipLedger
	workers          int
	maxFiles         int
	maxFileSize      int64
	maxContextLength int
	now              func() time.Time
}

// IngestConfig holds configuration for the ingest service
type IngestConfig struct {
	Workers          int
	MaxFiles         int
	MaxFileSize      int64
	MaxContextLength int
}

// NewIngestService creates a new ingest service
func NewIngestService(
	store storage.BlobStore,
	vlm Describer,
	space *DomainSpace,
	ledger OwnershipLedger,
	cfg *IngestConfig,
) *IngestService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	maxContext := cfg.MaxContextLength
	if maxContext <= 0 {
		maxContext = domain.DefaultMaxContextLength
	}
	return &IngestService{
		store:            store,
		vlm:              vlm,
		space:            space,
		ledger:           ledger,
		workers:          workers,
		maxFiles:         cfg.MaxFiles,
		maxFileSize:      cfg.MaxFileSize,
		maxContextLength: maxContext,
		now:              time.Now,
	}
}

// UploadItem is one file with its own hints.
type UploadItem struct {
	Filename string
	MIMEType string
	Data     []byte
	Context  domain.MemeContext
}

// ItemResult reports how far one item got.
type ItemResult struct {
	Index       int              `json:"index"`
	Filename    string           `json:"filename"`
	Status      string           `json:"status"` // ok, failed
	Stage       domain.ItemStage `json:"stage"`
	FailedStage domain.ItemStage `json:"failedStage,omitempty"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Description string           `json:"description,omitempty"`
	Error       string           `json:"error,omitempty"`
	Err         error            `json:"-"`
}

// UploadResult holds per-item results in input order.
type UploadResult struct {
	Items     []ItemResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// Upload processes items concurrently and returns one result per item in
// input order. The error is non-nil only when the request itself is
// rejected (validation or limits), in which case nothing was written.
func (s *IngestService) Upload(ctx context.Context, owner string, items []UploadItem) (*UploadResult, error) {
	owner = domain.NormalizeOwner(owner)
	if err := s.validate(owner, items); err != nil {
		return nil, err
	}

	ctx = logger.SetBatchID(logger.SetOwner(ctx, owner), uuid.NewString())
	start := time.Now()

	results := make([]ItemResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range items {
		g.Go(func() error {
			results[i] = s.processItem(gctx, owner, i, items[i])
			return nil
		})
	}
	_ = g.Wait()

	out := &UploadResult{Items: results}
	for _, r := range results {
		if r.Err == nil {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}

	logger.With(logger.Fields{
		logger.FieldCount:      len(items),
		"succeeded":            out.Succeeded,
		"failed":               out.Failed,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Upload batch finished")

	return out, nil
}

func (s *IngestService) validate(owner string, items []UploadItem) error {
	if owner == "" {
		return fmt.Errorf("%w: missing user email", domain.ErrValidation)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: no file uploaded", domain.ErrValidation)
	}
	if s.maxFiles > 0 && len(items) > s.maxFiles {
		return fmt.Errorf("%w: %d files, at most %d allowed", domain.ErrLimitExceeded, len(items), s.maxFiles)
	}
	for i, it := range items {
		if len(it.Data) == 0 {
			return fmt.Errorf("%w: file %d is empty", domain.ErrValidation, i)
		}
		if s.maxFileSize > 0 && int64(len(it.Data)) > s.maxFileSize {
			return fmt.Errorf("%w: file %q exceeds %d bytes", domain.ErrLimitExceeded, it.Filename, s.maxFileSize)
		}
	}
	return nil
}

// processItem advances one item through its stages. It never returns early
// without recording the failing stage.
func (s *IngestService) processItem(ctx context.Context, owner string, index int, item UploadItem) ItemResult {
	res := ItemResult{Index: index, Filename: item.Filename, Stage: domain.ItemStagePending}
	fail := func(stage domain.ItemStage, err error) ItemResult {
		res.FailedStage = stage
		res.Stage = domain.ItemStageFailed
		res.Status = "failed"
		res.Err = err
		res.Error = err.Error()
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldStage:   string(stage),
			logger.FieldItemURL: res.ImageURL,
			"index":             index,
		}).WithError(err).Warn("Upload item failed")
		return res
	}

	mimeType := item.MIMEType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(item.Data)
	}
	hints := item.Context.Sanitize(s.maxContextLength)

	// stored
	key := storage.GenerateKey(s.now(), storage.PickExt(item.Filename, mimeType))
	saved, err := s.store.Save(ctx, key, bytes.NewReader(item.Data), mimeType)
	if err != nil {
		return fail(domain.ItemStageStored, err)
	}
	res.ImageURL = saved.URL
	res.Stage = domain.ItemStageStored

	// described
	description, err := s.vlm.Describe(ctx, DescribeRequest{
		ImageData: item.Data,
		MIMEType:  mimeType,
		Context:   hints,
	})
	if err != nil {
		return fail(domain.ItemStageDescribed, err)
	}
	res.Description = description
	res.Stage = domain.ItemStageDescribed

	// embedded
	vec, err := s.space.Embedder.Embed(ctx, description)
	if err != nil {
		return fail(domain.ItemStageEmbedded, err)
	}
	res.Stage = domain.ItemStageEmbedded

	// indexed
	md := map[string]interface{}{
		"description": description,
		"imageUrl":    saved.URL,
		"userEmail":   owner,
		"popCulture":  hints.PopCulture,
		"characters":  hints.Characters,
		"notes":       hints.Notes,
		"mimeType":    mimeType,
		"sha256":      saved.SHA256,
		"size":        saved.Size,
		"date":        s.now().UTC().Format(time.RFC3339),
	}
	if w, h, err := imageDimensions(item.Data); err == nil {
		md["width"], md["height"] = w, h
	}
	if err := s.space.Index.Upsert(ctx, owner, repository.VectorEntry{ID: saved.URL, Vector: vec, Metadata: md}); err != nil {
		if !errors.Is(err, domain.ErrUpstream) {
			err = fmt.Errorf("%w: vector upsert: %v", domain.ErrUpstream, err)
		}
		return fail(domain.ItemStageIndexed, err)
	}
	res.Stage = domain.ItemStageIndexed

	// owned
	if _, err := s.ledger.Add(ctx, owner, saved.URL); err != nil {
		return fail(domain.ItemStageOwned, err)
	}
	res.Stage = domain.ItemStageOwned
	res.Status = "ok"

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldItemURL: saved.URL,
		logger.FieldSize:    saved.Size,
	}).Info("Upload item indexed")
	return res
}

func imageDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
