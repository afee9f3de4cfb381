package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/timmy/memehub/internal/domain"
)

func items(names ...string) []UploadItem {
	out := make([]UploadItem, len(names))
	for i, n := range names {
		out[i] = UploadItem{Filename: n + ".png", MIMEType: "image/png", Data: []byte(n)}
	}
	return out
}

func TestUploadPartialFailure(t *testing.T) {
	f := newFixture()
	f.vlm.failOn["two"] = true

	res, err := f.ingest().Upload(context.Background(), "Alice@Example.com ", items("one", "two", "three"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("succeeded/failed = %d/%d, want 2/1", res.Succeeded, res.Failed)
	}
	for i, want := range []string{"ok", "failed", "ok"} {
		if got := res.Items[i].Status; got != want {
			t.Errorf("item %d status = %q, want %q", i, got, want)
		}
		if res.Items[i].Index != i {
			t.Errorf("item %d index = %d", i, res.Items[i].Index)
		}
	}

	failed := res.Items[1]
	if failed.FailedStage != domain.ItemStageDescribed {
		t.Errorf("failed stage = %q, want %q", failed.FailedStage, domain.ItemStageDescribed)
	}
	if !errors.Is(failed.Err, domain.ErrNoDescription) {
		t.Errorf("failed err = %v, want ErrNoDescription", failed.Err)
	}
	if failed.ImageURL == "" {
		t.Error("failed item should keep the stored blob url")
	}

	owner := "alice@example.com"
	if n := f.index.Len(owner); n != 2 {
		t.Errorf("vectors = %d, want 2", n)
	}
	if n := f.ledger.count(owner); n != 2 {
		t.Errorf("ledger rows = %d, want 2", n)
	}
	if rec, _ := f.ledger.Get(context.Background(), owner, failed.ImageURL); rec != nil {
		t.Error("failed item must not be in the ledger")
	}
}

func TestUploadThenSearch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.ingest().Upload(ctx, "bob@example.com", items("grumpy"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	item := res.Items[0]
	if item.Stage != domain.ItemStageOwned {
		t.Fatalf("stage = %q, want owned", item.Stage)
	}
	if !strings.HasPrefix(item.ImageURL, "http://localhost:3001/images/") {
		t.Errorf("image url = %q", item.ImageURL)
	}

	search := NewSearchService(f.ledger, f.meme)
	out, err := search.Search(ctx, SearchRequest{Query: item.Description, Owner: "bob@example.com", Domain: domain.DomainMeme})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out.Results) == 0 || out.Results[0].ID != item.ImageURL {
		t.Fatalf("results = %+v, want %s first", out.Results, item.ImageURL)
	}
	md := out.Results[0].Metadata
	if md["userEmail"] != "bob@example.com" || md["description"] != item.Description {
		t.Errorf("metadata = %v", md)
	}

	other, err := search.Search(ctx, SearchRequest{Query: item.Description, Owner: "eve@example.com", Domain: domain.DomainMeme})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if other.Total != 0 {
		t.Errorf("other owner sees %d results", other.Total)
	}
}

func TestUploadTruncatesContext(t *testing.T) {
	f := newFixture()
	batch := items("ctx")
	batch[0].Context = domain.MemeContext{
		PopCulture: "  " + strings.Repeat("ä", 40) + "  ",
		Characters: "Doge",
	}

	if _, err := f.ingest().Upload(context.Background(), "c@example.com", batch); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(f.vlm.requests) != 1 {
		t.Fatalf("describe calls = %d", len(f.vlm.requests))
	}
	got := f.vlm.requests[0].Context
	if got.PopCulture != strings.Repeat("ä", 30) {
		t.Errorf("pop culture = %q", got.PopCulture)
	}
	if got.Characters != "Doge" || got.Notes != "" {
		t.Errorf("context = %+v", got)
	}
}

func TestUploadRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		items []UploadItem
		want  error
	}{
		{"no owner", "", items("a"), domain.ErrValidation},
		{"no files", "a@example.com", nil, domain.ErrValidation},
		{"too many files", "a@example.com", items("1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"), domain.ErrLimitExceeded},
		{"file too large", "a@example.com", []UploadItem{{Filename: "big.png", Data: make([]byte, 2<<20)}}, domain.ErrLimitExceeded},
		{"empty file", "a@example.com", []UploadItem{{Filename: "empty.png"}}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.ingest().Upload(context.Background(), tt.owner, tt.items)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Upload() error = %v, want %v", err, tt.want)
			}
			if f.store.saves != 0 {
				t.Errorf("store saves = %d, want 0", f.store.saves)
			}
		})
	}
}
