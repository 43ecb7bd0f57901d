package geo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

func countryProbe(s *MemoryCountryStore, name string) func(context.Context) (*model.Country, error) {
	return func(ctx context.Context) (*model.Country, error) {
		return s.GetByName(ctx, name)
	}
}

func countryInsert(s *MemoryCountryStore, name string) func(context.Context) (*model.Country, error) {
	return func(ctx context.Context) (*model.Country, error) {
		return s.Insert(ctx, &model.Country{Name: name})
	}
}

func TestResolveCreatesWhenMissing(t *testing.T) {
	s := NewMemoryCountryStore()

	country, existed, err := Resolve(context.Background(), countryProbe(s, "Chile"), countryInsert(s, "Chile"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if existed {
		t.Error("expected existed=false for a fresh row")
	}
	if country.ID == 0 {
		t.Error("expected an assigned id")
	}
}

func TestResolveReturnsExisting(t *testing.T) {
	s := NewMemoryCountryStore()
	first, _, err := Resolve(context.Background(), countryProbe(s, "Chile"), countryInsert(s, "Chile"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, existed, err := Resolve(context.Background(), countryProbe(s, "Chile"), countryInsert(s, "Chile"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !existed {
		t.Error("expected existed=true on repeat")
	}
	if second.ID != first.ID {
		t.Errorf("expected id %d, got %d", first.ID, second.ID)
	}
}

func TestResolveConcurrent(t *testing.T) {
	s := NewMemoryCountryStore()

	const workers = 16
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			country, _, err := Resolve(context.Background(), countryProbe(s, "Chile"), countryInsert(s, "Chile"))
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = country.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d failed: %v", i, err)
		}
	}
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("workers disagree on id: %d vs %d", ids[i], ids[0])
		}
	}

	_, total, err := s.List(context.Background(), ListParams{Page: 1, Limit: 10, SortBy: "id", SortOrder: "ASC"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 {
		t.Errorf("expected exactly one row, got %d", total)
	}
}

func TestResolveRecoversLostRace(t *testing.T) {
	// The probe misses once, the insert hits a unique violation, the re-probe
	// finds the concurrent winner.
	winner := &model.Country{ID: 7, Name: "Chile"}
	calls := 0
	probe := func(context.Context) (*model.Country, error) {
		calls++
		if calls == 1 {
			return nil, store.ErrNotFound
		}
		return winner, nil
	}
	insert := func(context.Context) (*model.Country, error) {
		return nil, store.ErrUniqueViolation
	}

	country, existed, err := Resolve(context.Background(), probe, insert)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !existed {
		t.Error("expected existed=true after race recovery")
	}
	if country.ID != winner.ID {
		t.Errorf("expected winner id %d, got %d", winner.ID, country.ID)
	}
	if calls != 2 {
		t.Errorf("expected exactly one re-probe, got %d probes", calls)
	}
}

func TestResolveConflictWhenReprobeMisses(t *testing.T) {
	probe := func(context.Context) (*model.Country, error) {
		return nil, store.ErrNotFound
	}
	insert := func(context.Context) (*model.Country, error) {
		return nil, store.ErrUniqueViolation
	}

	_, _, err := Resolve(context.Background(), probe, insert)
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Status != 409 {
		t.Errorf("expected status 409, got %d", appErr.Status)
	}
}

func TestResolveProbeErrorSurfaces(t *testing.T) {
	boom := fmt.Errorf("connection reset")
	probe := func(context.Context) (*model.Country, error) {
		return nil, boom
	}
	insert := func(context.Context) (*model.Country, error) {
		t.Fatal("insert must not run when the probe fails")
		return nil, nil
	}

	_, _, err := Resolve(context.Background(), probe, insert)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped probe error, got %v", err)
	}
}
