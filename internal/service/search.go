package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/logger"
)

// RecentLimit is the number of items returned by RecentMemes.
const RecentLimit = 12

// SearchService runs owner-scoped similarity search over the registered
// domains and lists an owner's uploads.
type SearchService struct {
	domains map[domain.Domain]*DomainSpace
	ledger  OwnershipLedger
	allowed map[domain.Domain]AccessPolicy
}

// NewSearchService creates a new search service.
// Parameters:
//   - ledger: ownership ledger used by the list operations.
//   - spaces: domain spaces searchable by name.
//
// Returns:
//   - *SearchService: initialized search service.
func NewSearchService(ledger OwnershipLedger, spaces ...*DomainSpace) *SearchService {
	s := &SearchService{
		domains: make(map[domain.Domain]*DomainSpace),
		ledger:  ledger,
		allowed: make(map[domain.Domain]AccessPolicy),
	}
	for _, sp := range spaces {
		s.RegisterDomain(sp)
	}
	return s
}

// RegisterDomain adds or replaces a searchable domain.
func (s *SearchService) RegisterDomain(space *DomainSpace) {
	s.domains[space.Name] = space
}

// RestrictDomain guards a domain with an access policy.
func (s *SearchService) RestrictDomain(name domain.Domain, policy AccessPolicy) {
	s.allowed[name] = policy
}

// GetAvailableDomains returns the domain names owner may search, sorted.
func (s *SearchService) GetAvailableDomains(owner string) []string {
	owner = domain.NormalizeOwner(owner)
	names := make([]string, 0, len(s.domains))
	for name := range s.domains {
		if policy := s.allowed[name]; policy != nil && !policy(owner) {
			continue
		}
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// SearchRequest is one similarity query.
type SearchRequest struct {
	Query  string
	Owner  string
	Domain domain.Domain
	TopK   string // raw caller value; empty uses the domain default
}

// SearchResult is one hit above the domain threshold.
type SearchResult struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// SearchResponse holds ranked results.
type SearchResponse struct {
	Query   string         `json:"query"`
	Domain  domain.Domain  `json:"domain"`
	TopK    int            `json:"topK"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// Search embeds the query, queries the owner's namespace and keeps hits
// scoring at or above the domain threshold, best first.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	owner := domain.NormalizeOwner(req.Owner)
	query := strings.TrimSpace(req.Query)
	if owner == "" {
		return nil, fmt.Errorf("%w: missing user email", domain.ErrValidation)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrValidation)
	}
	space, ok := s.domains[req.Domain]
	if !ok {
		return nil, fmt.Errorf("%w: unknown domain %q", domain.ErrValidation, req.Domain)
	}
	if policy := s.allowed[req.Domain]; policy != nil && !policy(owner) {
		return nil, fmt.Errorf("%w: user not allowed to search %s", domain.ErrForbidden, req.Domain)
	}

	topK, err := space.ResolveTopK(req.TopK)
	if err != nil {
		return nil, err
	}

	ctx = logger.SetDomain(logger.SetOwner(ctx, owner), string(space.Name))
	start := time.Now()

	vec, err := space.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := space.Index.Query(ctx, owner, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: vector query: %v", domain.ErrUpstream, err)
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		if m.Score < space.ScoreThreshold {
			continue
		}
		results = append(results, SearchResult{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	logger.With(logger.Fields{
		logger.FieldCount:      len(results),
		"candidates":           len(matches),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Search completed")

	return &SearchResponse{
		Query:   query,
		Domain:  space.Name,
		TopK:    topK,
		Results: results,
		Total:   len(results),
	}, nil
}

// ListMemes returns all of owner's uploads, newest first.
func (s *SearchService) ListMemes(ctx context.Context, owner string) ([]domain.OwnershipRecord, error) {
	return s.list(ctx, owner, 0)
}

// RecentMemes returns owner's newest uploads.
func (s *SearchService) RecentMemes(ctx context.Context, owner string) ([]domain.OwnershipRecord, error) {
	return s.list(ctx, owner, RecentLimit)
}

func (s *SearchService) list(ctx context.Context, owner string, limit int) ([]domain.OwnershipRecord, error) {
	owner = domain.NormalizeOwner(owner)
	if owner == "" {
		return nil, fmt.Errorf("%w: missing user email", domain.ErrValidation)
	}
	recs, err := s.ledger.ListByOwner(ctx, owner, limit)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []domain.OwnershipRecord{}
	}
	return recs, nil
}
