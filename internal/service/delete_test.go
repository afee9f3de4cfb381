package service

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/spf13/afero"

	"github.com/timmy/memehub/internal/domain"
)

func uploadOne(t *testing.T, f *fixture, owner string) string {
	t.Helper()
	res, err := f.ingest().Upload(context.Background(), owner, items("doge"))
	if err != nil || res.Succeeded != 1 {
		t.Fatalf("Upload() = %+v, %v", res, err)
	}
	return res.Items[0].ImageURL
}

func TestDeleteAcceptsPathAndKey(t *testing.T) {
	tests := []struct {
		name string
		ref  func(t *testing.T, f *fixture, full string) string
	}{
		{"route path", func(t *testing.T, f *fixture, full string) string {
			u, err := url.Parse(full)
			if err != nil {
				t.Fatal(err)
			}
			return u.Path
		}},
		{"bare key", func(t *testing.T, f *fixture, full string) string {
			key, err := f.store.KeyFromURL(full)
			if err != nil {
				t.Fatal(err)
			}
			return key
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			full := uploadOne(t, f, "a@example.com")
			svc := NewDeleteService(f.store, f.meme, f.ledger)

			res, err := svc.Delete(context.Background(), "a@example.com", tt.ref(t, f, full))
			if err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if res.ImageURL != full {
				t.Errorf("ImageURL = %q, want %q", res.ImageURL, full)
			}
			if res.Steps[0].Skipped {
				t.Error("blob step skipped for the owner")
			}
			if blobExists(t, f, full) {
				t.Error("blob still exists")
			}
			if n := f.index.Len("a@example.com"); n != 0 {
				t.Errorf("vectors left = %d, want 0", n)
			}
			if n := f.ledger.count("a@example.com"); n != 0 {
				t.Errorf("ledger rows left = %d, want 0", n)
			}
		})
	}
}

func blobExists(t *testing.T, f *fixture, imageURL string) bool {
	t.Helper()
	key, err := f.store.KeyFromURL(imageURL)
	if err != nil {
		t.Fatalf("KeyFromURL(%q) error = %v", imageURL, err)
	}
	ok, _ := afero.Exists(f.fs, key)
	return ok
}

func TestDeleteRemovesEverything(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	url := uploadOne(t, f, "a@example.com")
	svc := NewDeleteService(f.store, f.meme, f.ledger)

	res, err := svc.Delete(ctx, "a@example.com", url)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	for _, step := range res.Steps {
		if !step.OK || step.Skipped {
			t.Errorf("step %+v, want ok", step)
		}
	}
	if blobExists(t, f, url) {
		t.Error("blob still exists")
	}
	if f.index.Len("a@example.com") != 0 || f.ledger.count("a@example.com") != 0 {
		t.Error("vector or ledger row left behind")
	}

	// second delete is a no-op
	res, err = svc.Delete(ctx, "a@example.com", url)
	if err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if !res.Steps[0].Skipped {
		t.Errorf("blob step = %+v, want skipped", res.Steps[0])
	}
}

func TestDeleteByNonOwnerKeepsBlob(t *testing.T) {
	f := newFixture()
	url := uploadOne(t, f, "a@example.com")
	svc := NewDeleteService(f.store, f.meme, f.ledger)

	res, err := svc.Delete(context.Background(), "eve@example.com", url)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !res.Steps[0].Skipped {
		t.Errorf("blob step = %+v, want skipped", res.Steps[0])
	}
	if f.store.deletes != 0 || !blobExists(t, f, url) {
		t.Error("non-owner removed the blob")
	}
	if f.index.Len("a@example.com") != 1 || f.ledger.count("a@example.com") != 1 {
		t.Error("owner's records were touched")
	}
}

func TestDeleteRejectsTraversal(t *testing.T) {
	tests := []string{
		"http://localhost:3001/images/../../etc/passwd",
		"/images/../secret",
		"../etc/passwd",
		"http://localhost:3001/elsewhere/a.png",
	}
	for _, url := range tests {
		f := newFixture()
		svc := NewDeleteService(f.store, f.meme, f.ledger)
		_, err := svc.Delete(context.Background(), "a@example.com", url)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Delete(%q) error = %v, want ErrValidation", url, err)
		}
		if f.store.deletes != 0 {
			t.Errorf("Delete(%q) reached the store", url)
		}
	}
}

func TestDeletePartialFailure(t *testing.T) {
	f := newFixture()
	url := uploadOne(t, f, "a@example.com")
	f.meme.Index = &failingIndex{VectorIndex: f.index, failDelete: true}
	svc := NewDeleteService(f.store, f.meme, f.ledger)

	res, err := svc.Delete(context.Background(), "a@example.com", url)
	if !errors.Is(err, domain.ErrPartialDelete) {
		t.Fatalf("Delete() error = %v, want ErrPartialDelete", err)
	}
	if res == nil || len(res.Steps) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if !res.Steps[0].OK || res.Steps[1].OK || !res.Steps[2].OK {
		t.Errorf("steps = %+v, want blob ok, vector failed, ledger ok", res.Steps)
	}
	if f.ledger.count("a@example.com") != 0 {
		t.Error("ledger step did not run after vector failure")
	}
	if domain.Categorize(err) != domain.CategoryServer {
		t.Errorf("category = %v, want server", domain.Categorize(err))
	}
}
