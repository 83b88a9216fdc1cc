package weights

import (
	"context"
	"errors"
	"testing"

	"value-radar/internal/model"
	"value-radar/internal/storage"
)

func TestGetActiveCreatesDefaultOnFirstAccess(t *testing.T) {
	t.Parallel()

	s := NewService(storage.NewMemoryKV())
	ctx := context.Background()

	cfg, err := s.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive error: %v", err)
	}
	if !cfg.Active {
		t.Fatalf("expected default config active")
	}
	if cfg.Name != "default" || cfg.Version != 1 {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
	if cfg.Weights.BaseScore != 100 {
		t.Fatalf("expected base score 100, got %v", cfg.Weights.BaseScore)
	}

	// Second access returns the same configuration, not a new one.
	again, err := s.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive second call error: %v", err)
	}
	if again.ID != cfg.ID {
		t.Fatalf("expected stable default config, got new ID %s", again.ID)
	}
}

func TestCreateActivatesExclusively(t *testing.T) {
	t.Parallel()

	s := NewService(storage.NewMemoryKV())
	ctx := context.Background()

	first, err := s.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive error: %v", err)
	}

	custom := model.DefaultScoringWeights()
	custom.BedroomPenalty = 20
	created, err := s.Create(ctx, "aggressive", custom)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !created.Active {
		t.Fatalf("expected created config active")
	}

	configs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	activeCount := 0
	for _, cfg := range configs {
		if cfg.Active {
			activeCount++
			if cfg.ID != created.ID {
				t.Fatalf("expected only new config active, got %s", cfg.ID)
			}
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active config, got %d", activeCount)
	}

	// Reactivate the original, then the new one must be inactive.
	if _, err := s.Activate(ctx, first.ID); err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	reloaded, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if reloaded.Active {
		t.Fatalf("expected previously active config deactivated")
	}
}

func TestUpdateBumpsVersionInPlace(t *testing.T) {
	t.Parallel()

	s := NewService(storage.NewMemoryKV())
	ctx := context.Background()

	cfg, err := s.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive error: %v", err)
	}

	w := cfg.Weights
	w.BathroomPenalty = 99
	updated, err := s.Update(ctx, cfg.ID, "", w)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}
	if updated.Weights.BathroomPenalty != 99 {
		t.Fatalf("expected updated coefficient persisted")
	}
	if !updated.Active {
		t.Fatalf("update must not change activation state")
	}
}

func TestDeleteActiveRejected(t *testing.T) {
	t.Parallel()

	s := NewService(storage.NewMemoryKV())
	ctx := context.Background()

	active, err := s.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive error: %v", err)
	}
	if err := s.Delete(ctx, active.ID); !errors.Is(err, ErrDeleteActive) {
		t.Fatalf("expected ErrDeleteActive, got %v", err)
	}

	inactive, err := s.Create(ctx, "secondary", model.DefaultScoringWeights())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	// active config is now "secondary"; the original default is deletable.
	if err := s.Delete(ctx, active.ID); err != nil {
		t.Fatalf("Delete inactive error: %v", err)
	}
	if err := s.Delete(ctx, inactive.ID); !errors.Is(err, ErrDeleteActive) {
		t.Fatalf("expected ErrDeleteActive for new active config, got %v", err)
	}

	if err := s.Delete(ctx, "missing-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResetCreatesFreshDefault(t *testing.T) {
	t.Parallel()

	s := NewService(storage.NewMemoryKV())
	ctx := context.Background()

	w := model.DefaultScoringWeights()
	w.BaseScore = 50
	if _, err := s.Create(ctx, "custom", w); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	reset, err := s.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if reset.Weights.BaseScore != 100 {
		t.Fatalf("expected default weights after reset, got %v", reset.Weights.BaseScore)
	}

	active, err := s.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive error: %v", err)
	}
	if active.ID != reset.ID {
		t.Fatalf("expected reset config active, got %s", active.ID)
	}
}
