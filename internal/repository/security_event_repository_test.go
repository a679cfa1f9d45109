package repository

import (
	"context"
	"testing"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
)

func TestSecurityEventRepositoryListByUserPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewSecurityEventRepository(newTestDB(t))

	uid := uint(1)
	other := uint(2)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		e := &domain.SecurityEvent{UserID: &uid, Kind: domain.EventLoginFailed, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := repo.Append(ctx, &domain.SecurityEvent{UserID: &other, Kind: domain.EventLoginSucceeded}); err != nil {
		t.Fatalf("append other: %v", err)
	}

	page, err := repo.ListByUser(ctx, uid, PageRequest{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || page.TotalPages != 3 || len(page.Items) != 2 {
		t.Fatalf("unexpected page meta %+v", page)
	}
	if !page.Items[0].CreatedAt.After(page.Items[1].CreatedAt) {
		t.Fatalf("expected newest first, got %v then %v", page.Items[0].CreatedAt, page.Items[1].CreatedAt)
	}

	last, err := repo.ListByUser(ctx, uid, PageRequest{Page: 3, PageSize: 2})
	if err != nil {
		t.Fatalf("list last: %v", err)
	}
	if len(last.Items) != 1 {
		t.Fatalf("expected 1 item on last page, got %d", len(last.Items))
	}
}

func TestSecurityEventRepositoryDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewSecurityEventRepository(newTestDB(t))

	uid := uint(1)
	now := time.Now().UTC()
	if err := repo.Append(ctx, &domain.SecurityEvent{UserID: &uid, Kind: domain.EventLogout, CreatedAt: now.Add(-100 * 24 * time.Hour)}); err != nil {
		t.Fatalf("append old: %v", err)
	}
	if err := repo.Append(ctx, &domain.SecurityEvent{UserID: &uid, Kind: domain.EventLogout, CreatedAt: now}); err != nil {
		t.Fatalf("append new: %v", err)
	}
	n, err := repo.DeleteOlderThan(ctx, now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
}
