package handler

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m-thenot/stockline-sync/internal/api"
	"github.com/m-thenot/stockline-sync/internal/store/postgres"
	"github.com/m-thenot/stockline-sync/internal/sync/conflict"
)

func TestConflictsOrNil(t *testing.T) {
	if conflictsOrNil(nil) != nil {
		t.Fatal("expected nil for empty slice")
	}
	in := []api.ResolvedFieldConflict{{Field: "comment"}}
	if got := conflictsOrNil(in); len(got) != 1 {
		t.Fatalf("expected conflicts to pass through, got %#v", got)
	}
}

// TestPreOrderHandler_CreateThenIdempotentCreate exercises a create
// followed by a retried, idempotent create end to end against a real
// database. Skipped unless STOCKLINE_TEST_DSN is set, gating
// storage-backed tests behind a live connection rather than mocking
// the SQL layer.
func TestPreOrderHandler_CreateThenIdempotentCreate(t *testing.T) {
	dsn := os.Getenv("STOCKLINE_TEST_DSN")
	if dsn == "" {
		t.Skip("STOCKLINE_TEST_DSN not set; skipping storage-backed test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	defer pool.Close()

	if err := postgres.Ensure(ctx, pool); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	h := NewPreOrderHandler(postgres.NewPreOrderStore(), postgres.NewOperationLog(), conflict.New())

	partnerID := uuid.New()
	if _, err := pool.Exec(ctx, `INSERT INTO partners (id, name, code, type) VALUES ($1, 'Test', 'T', 1)`, partnerID); err != nil {
		t.Fatalf("seeding partner: %v", err)
	}

	entityID := uuid.New()
	op := api.PushOperationRequest{
		ID: "op-1", EntityType: "pre_order", EntityID: entityID.String(), OperationType: "CREATE",
		Data: map[string]any{
			"partner_id":    partnerID.String(),
			"delivery_date": time.Now().UTC().Format(time.RFC3339),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	result, err := h.Handle(ctx, pool, op)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != api.StatusSuccess || result.NewVersion == nil || *result.NewVersion != 1 {
		t.Fatalf("expected successful create at version 1, got %#v", result)
	}

	repeat, err := h.Handle(ctx, pool, op)
	if err != nil {
		t.Fatalf("unexpected error on repeat create: %v", err)
	}
	if repeat.Status != api.StatusSuccess || repeat.SyncID != nil {
		t.Fatalf("expected idempotent no-op without a new sync_id, got %#v", repeat)
	}
}
