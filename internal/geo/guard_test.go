package geo

import (
	"context"
	"errors"
	"testing"

	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

func TestAssertDeletableAllowsChildless(t *testing.T) {
	err := AssertDeletable(context.Background(), "Province", "cities", func(context.Context) (int64, error) {
		return 0, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAssertDeletableBlocksWithChildren(t *testing.T) {
	err := AssertDeletable(context.Background(), "Province", "cities", func(context.Context) (int64, error) {
		return 3, nil
	})
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Status != 409 {
		t.Errorf("expected status 409, got %d", appErr.Status)
	}
	if appErr.Message != "Province has associated cities" {
		t.Errorf("unexpected message: %q", appErr.Message)
	}
}

func TestAssertKeyAvailableFreeKey(t *testing.T) {
	err := AssertKeyAvailable(context.Background(), 1, func(context.Context) (*model.Country, error) {
		return nil, store.ErrNotFound
	}, func(c *model.Country) int64 { return c.ID }, "Country name already in use")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAssertKeyAvailableOwnRow(t *testing.T) {
	err := AssertKeyAvailable(context.Background(), 5, func(context.Context) (*model.Country, error) {
		return &model.Country{ID: 5, Name: "Chile"}, nil
	}, func(c *model.Country) int64 { return c.ID }, "Country name already in use")
	if err != nil {
		t.Fatalf("a row may keep its own key: %v", err)
	}
}

func TestAssertKeyAvailableTakenKey(t *testing.T) {
	err := AssertKeyAvailable(context.Background(), 5, func(context.Context) (*model.Country, error) {
		return &model.Country{ID: 9, Name: "Chile"}, nil
	}, func(c *model.Country) int64 { return c.ID }, "Country name already in use")
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Status != 409 {
		t.Errorf("expected status 409, got %d", appErr.Status)
	}
}
