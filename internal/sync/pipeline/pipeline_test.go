package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m-thenot/stockline-sync/internal/api"
	"github.com/m-thenot/stockline-sync/internal/domain"
	"github.com/m-thenot/stockline-sync/internal/store/postgres"
	"github.com/m-thenot/stockline-sync/internal/sync/broadcast"
	"github.com/m-thenot/stockline-sync/internal/sync/conflict"
	"github.com/m-thenot/stockline-sync/internal/sync/handler"
)

// newTestPipeline connects to STOCKLINE_TEST_DSN, applies the schema
// and wires a Pipeline with real handlers. Tests using it are skipped
// when the variable is unset, matching handler_test.go's convention
// for storage-backed tests.
func newTestPipeline(t *testing.T) (*Pipeline, *pgxpool.Pool, *broadcast.Broadcaster) {
	t.Helper()
	dsn := os.Getenv("STOCKLINE_TEST_DSN")
	if dsn == "" {
		t.Skip("STOCKLINE_TEST_DSN not set; skipping storage-backed test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Ensure(ctx, pool); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	resolver := conflict.New()
	handlers := map[domain.EntityType]handler.EntityHandler{
		domain.EntityPreOrder:     handler.NewPreOrderHandler(postgres.NewPreOrderStore(), postgres.NewOperationLog(), resolver),
		domain.EntityPreOrderFlow: handler.NewPreOrderFlowHandler(postgres.NewPreOrderFlowStore(), postgres.NewOperationLog(), resolver),
	}
	broadcaster := broadcast.New()
	return New(pool, handlers, broadcaster), pool, broadcaster
}

// TestPipeline_BatchOfTwo_BothSucceed verifies that a batch with two
// independent CREATE operations for two different pre_orders of the
// same partner must produce two successful results, in submission order,
// and publish one change event per success.
func TestPipeline_BatchOfTwo_BothSucceed(t *testing.T) {
	p, pool, broadcaster := newTestPipeline(t)
	ctx := context.Background()

	partnerID := uuid.New()
	if _, err := pool.Exec(ctx, `INSERT INTO partners (id, name, code, type) VALUES ($1, 'Test', 'T', 1)`, partnerID); err != nil {
		t.Fatalf("seeding partner: %v", err)
	}

	sub := broadcaster.Connect("test-client")
	defer broadcaster.Disconnect("test-client")

	now := time.Now().UTC().Format(time.RFC3339)
	entityA, entityB := uuid.New(), uuid.New()
	batch := []api.PushOperationRequest{
		{
			ID: "op-a", EntityType: "pre_order", EntityID: entityA.String(), OperationType: "CREATE",
			Data:      map[string]any{"partner_id": partnerID.String(), "delivery_date": now},
			Timestamp: now,
		},
		{
			ID: "op-b", EntityType: "pre_order", EntityID: entityB.String(), OperationType: "CREATE",
			Data:      map[string]any{"partner_id": partnerID.String(), "delivery_date": now},
			Timestamp: now,
		},
	}

	results, err := p.Process(ctx, batch)
	if err != nil {
		t.Fatalf("unexpected pipeline error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].OperationID != "op-a" || results[1].OperationID != "op-b" {
		t.Fatalf("results out of submission order: %#v", results)
	}
	for _, r := range results {
		if r.Status != api.StatusSuccess {
			t.Fatalf("expected success, got %#v", r)
		}
	}

	seen := 0
	for i := 0; i < 2; i++ {
		select {
		case <-sub:
			seen++
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for change event %d", i)
		}
	}
	if seen != 2 {
		t.Fatalf("expected 2 change events, got %d", seen)
	}
}

// TestPipeline_UnknownEntityType_DoesNotAbortBatch verifies that a
// rejected operation becomes an error result for that operation only,
// and does not roll back the rest of the batch.
func TestPipeline_UnknownEntityType_DoesNotAbortBatch(t *testing.T) {
	p, pool, _ := newTestPipeline(t)
	ctx := context.Background()

	partnerID := uuid.New()
	if _, err := pool.Exec(ctx, `INSERT INTO partners (id, name, code, type) VALUES ($1, 'Test', 'T', 1)`, partnerID); err != nil {
		t.Fatalf("seeding partner: %v", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	batch := []api.PushOperationRequest{
		{ID: "bad", EntityType: "widget", EntityID: uuid.New().String(), OperationType: "CREATE", Timestamp: now},
		{
			ID: "good", EntityType: "pre_order", EntityID: uuid.New().String(), OperationType: "CREATE",
			Data:      map[string]any{"partner_id": partnerID.String(), "delivery_date": now},
			Timestamp: now,
		},
	}

	results, err := p.Process(ctx, batch)
	if err != nil {
		t.Fatalf("unexpected pipeline error: %v", err)
	}
	if results[0].Status != api.StatusError {
		t.Fatalf("expected first op to error, got %#v", results[0])
	}
	if results[1].Status != api.StatusSuccess {
		t.Fatalf("expected second op to still succeed, got %#v", results[1])
	}
}
