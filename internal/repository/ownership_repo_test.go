package repository

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestLedger(t *testing.T) *OwnershipRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
	return NewOwnershipRepository(db)
}

func TestOwnershipAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestLedger(t)

	rec, err := repo.Add(ctx, "a@x.com", "http://h/images/1.png")
	if err != nil || rec == nil {
		t.Fatalf("Add() = %v, %v", rec, err)
	}

	again, err := repo.Add(ctx, "a@x.com", "http://h/images/1.png")
	if err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	if again != nil {
		t.Errorf("second Add() = %+v, want nil for existing pair", again)
	}

	other, err := repo.Add(ctx, "b@x.com", "http://h/images/1.png")
	if err != nil || other == nil {
		t.Errorf("Add() for another owner = %v, %v", other, err)
	}
}

func TestOwnershipRemove(t *testing.T) {
	ctx := context.Background()
	repo := newTestLedger(t)
	_, _ = repo.Add(ctx, "a@x.com", "u1")

	removed, err := repo.Remove(ctx, "b@x.com", "u1")
	if err != nil || removed != nil {
		t.Fatalf("Remove() by non-owner = %v, %v; want nil, nil", removed, err)
	}

	removed, err = repo.Remove(ctx, "a@x.com", "u1")
	if err != nil || removed == nil || removed.ItemURL != "u1" {
		t.Fatalf("Remove() = %v, %v", removed, err)
	}

	removed, err = repo.Remove(ctx, "a@x.com", "u1")
	if err != nil || removed != nil {
		t.Errorf("second Remove() = %v, %v; want nil, nil", removed, err)
	}

	got, err := repo.Get(ctx, "a@x.com", "u1")
	if err != nil || got != nil {
		t.Errorf("Get() after remove = %v, %v", got, err)
	}
}

func TestOwnershipListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestLedger(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, url := range []string{"u1", "u2", "u3"} {
		at := base.Add(time.Duration(i) * time.Minute)
		repo.now = func() time.Time { return at }
		if _, err := repo.Add(ctx, "a@x.com", url); err != nil {
			t.Fatal(err)
		}
	}
	repo.now = func() time.Time { return base }
	_, _ = repo.Add(ctx, "b@x.com", "other")

	all, err := repo.ListByOwner(ctx, "a@x.com", 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"u3", "u2", "u1"}
	if len(all) != len(want) {
		t.Fatalf("ListByOwner() returned %d records, want %d", len(all), len(want))
	}
	for i, rec := range all {
		if rec.ItemURL != want[i] {
			t.Errorf("record %d = %s, want %s", i, rec.ItemURL, want[i])
		}
	}

	recent, _ := repo.ListByOwner(ctx, "a@x.com", 2)
	if len(recent) != 2 || recent[0].ItemURL != "u3" {
		t.Errorf("ListByOwner(limit 2) = %+v", recent)
	}
}
