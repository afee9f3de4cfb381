package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/logger"
	"github.com/timmy/memehub/internal/prompts"
	"github.com/timmy/memehub/internal/repository"
)

// MetadataExtractor reads head metadata from a web page.
type MetadataExtractor interface {
	Extract(ctx context.Context, pageURL string) (*domain.PageMetadata, error)
}

// AccessPolicy reports whether owner may use a feature.
type AccessPolicy func(owner string) bool

// TikTokService ingests and removes TikTok videos in the tiktok domain.
type TikTokService struct {
	extractor        MetadataExtractor
	space            *DomainSpace
	allowed          AccessPolicy
	defaultOwner     string
	maxContextLength int
	now              func() time.Time
}

// TikTokConfig holds configuration for the TikTok service.
type TikTokConfig struct {
	MaxContextLength int
	Allowed          AccessPolicy // nil admits everyone
	DefaultOwner     string       // used when a request names no owner
}

// NewTikTokService creates a new TikTok ingestion service.
func NewTikTokService(extractor MetadataExtractor, space *DomainSpace, cfg *TikTokConfig) *TikTokService {
	maxContext := cfg.MaxContextLength
	if maxContext <= 0 {
		maxContext = 200
	}
	return &TikTokService{
		extractor:        extractor,
		space:            space,
		allowed:          cfg.Allowed,
		defaultOwner:     domain.NormalizeOwner(cfg.DefaultOwner),
		maxContextLength: maxContext,
		now:              time.Now,
	}
}

// TikTokRequest is one URL to ingest.
type TikTokRequest struct {
	URL     string
	Owner   string
	Context domain.MemeContext
}

// TikTokResult describes a stored TikTok vector.
type TikTokResult struct {
	Owner        string                `json:"userEmail"`
	VectorLength int                   `json:"vectorLength"`
	Meta         domain.TikTokMetadata `json:"meta"`
}

// Allowed reports whether owner may use the TikTok features.
func (s *TikTokService) Allowed(owner string) bool {
	return s.allowed == nil || s.allowed(domain.NormalizeOwner(owner))
}

// owner returns the normalized requested owner, or the default owner when
// none was given.
func (s *TikTokService) owner(requested string) string {
	if owner := domain.NormalizeOwner(requested); owner != "" {
		return owner
	}
	return s.defaultOwner
}

// Ingest scrapes req.URL, embeds its text and upserts it into the owner's
// namespace with the submitted URL as id.
func (s *TikTokService) Ingest(ctx context.Context, req TikTokRequest) (*TikTokResult, error) {
	owner := s.owner(req.Owner)
	pageURL := strings.TrimSpace(req.URL)
	if owner == "" {
		return nil, fmt.Errorf("%w: missing user email", domain.ErrValidation)
	}
	if pageURL == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrValidation)
	}
	if !s.Allowed(owner) {
		return nil, fmt.Errorf("%w: user not allowed to use TikTok features", domain.ErrForbidden)
	}
	ctx = logger.SetDomain(logger.SetOwner(ctx, owner), string(s.space.Name))

	meta, err := s.extractor.Extract(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	hints := req.Context.Sanitize(s.maxContextLength)
	userContext := prompts.TikTokUserContext(hints.PopCulture, hints.Characters, hints.Notes)
	text := EmbeddingText(userContext, meta)
	if text == "" {
		return nil, fmt.Errorf("%w: no content found to embed from the provided URL", domain.ErrNoContent)
	}

	vec, err := s.space.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	originalURL := meta.PageURL
	if originalURL == "" {
		originalURL = pageURL
	}
	record := domain.TikTokMetadata{
		OriginalURL:   originalURL,
		UserContext:   userContext,
		UserEmail:     owner,
		Author:        meta.Author,
		OGDescription: meta.OGDescription,
		Keywords:      meta.Keywords,
		Title:         meta.Title,
		Description:   meta.Description,
		Date:          s.now().UTC().Format(time.RFC3339),
	}
	entry := repository.VectorEntry{
		ID:     pageURL,
		Vector: vec,
		Metadata: map[string]interface{}{
			"original_url":  record.OriginalURL,
			"userContext":   record.UserContext,
			"userEmail":     record.UserEmail,
			"author":        record.Author,
			"ogDescription": record.OGDescription,
			"keywords":      record.Keywords,
			"title":         record.Title,
			"description":   record.Description,
			"date":          record.Date,
		},
	}
	if err := s.space.Index.Upsert(ctx, owner, entry); err != nil {
		return nil, fmt.Errorf("%w: vector upsert: %v", domain.ErrUpstream, err)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldItemURL: pageURL,
		"author":            meta.Author,
	}).Info("TikTok video indexed")

	return &TikTokResult{Owner: owner, VectorLength: len(vec), Meta: record}, nil
}

// Delete removes a TikTok vector from the owner's namespace.
func (s *TikTokService) Delete(ctx context.Context, owner, pageURL string) error {
	owner = s.owner(owner)
	pageURL = strings.TrimSpace(pageURL)
	if owner == "" || pageURL == "" {
		return fmt.Errorf("%w: userEmail and url are required", domain.ErrValidation)
	}
	if !s.Allowed(owner) {
		return fmt.Errorf("%w: user not allowed to use TikTok features", domain.ErrForbidden)
	}
	if err := s.space.Index.Delete(ctx, owner, pageURL); err != nil {
		if errors.Is(err, domain.ErrUpstream) {
			return err
		}
		return fmt.Errorf("%w: vector delete: %v", domain.ErrUpstream, err)
	}
	return nil
}

// EmbeddingText joins the non-empty user context and page fields with blank
// lines, user context first.
func EmbeddingText(userContext string, meta *domain.PageMetadata) string {
	pieces := []string{userContext, meta.Title, meta.Description, meta.OGDescription, meta.Keywords, meta.Author}
	out := pieces[:0]
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
