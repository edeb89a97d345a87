package conflict

import (
	"testing"
	"time"

	"github.com/m-thenot/stockline-sync/internal/domain"
)

func intPtr(i int) *int { return &i }

func TestResolve_NoExpectedVersion_AppliesEverything(t *testing.T) {
	r := New()
	res, err := r.Resolve(domain.Snapshot{"comment": "old"}, map[string]any{"comment": "new"}, nil, 5, "2024-01-01T00:00:00Z", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FieldsToApply["comment"] != "new" {
		t.Fatalf("expected comment to be applied verbatim, got %#v", res.FieldsToApply)
	}
	if len(res.LWWResolved) != 0 || len(res.AutoMerged) != 0 {
		t.Fatalf("expected no conflicts, got %#v", res)
	}
}

func TestResolve_VersionMatches_AppliesEverything(t *testing.T) {
	r := New()
	res, err := r.Resolve(domain.Snapshot{}, map[string]any{"comment": "new"}, intPtr(3), 3, "2024-01-01T00:00:00Z", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FieldsToApply["comment"] != "new" {
		t.Fatalf("expected verbatim apply, got %#v", res.FieldsToApply)
	}
}

func TestResolve_EqualValuesSkipped(t *testing.T) {
	r := New()
	res, err := r.Resolve(domain.Snapshot{"status": "0"}, map[string]any{"status": 0}, intPtr(1), 2, "2024-01-01T00:00:00Z", map[string]time.Time{"status": time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, applied := res.FieldsToApply["status"]; applied {
		t.Fatalf("expected status to be skipped as equal, got %#v", res.FieldsToApply)
	}
	if len(res.LWWResolved) != 0 || len(res.AutoMerged) != 0 {
		t.Fatalf("equal fields must never appear in AutoMerged or LWWResolved, got %#v", res)
	}
}

func TestResolve_AutoMergeWhenServerUntouched(t *testing.T) {
	r := New()
	res, err := r.Resolve(domain.Snapshot{"comment": "old"}, map[string]any{"comment": "hi"}, intPtr(1), 2, "2024-01-01T00:00:00Z", map[string]time.Time{"status": time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FieldsToApply["comment"] != "hi" {
		t.Fatalf("expected comment auto-merged, got %#v", res.FieldsToApply)
	}
	if len(res.AutoMerged) != 1 || res.AutoMerged[0] != "comment" {
		t.Fatalf("expected comment recorded as auto-merged, got %#v", res.AutoMerged)
	}
}

func TestResolve_LWWClientWinsOnTie(t *testing.T) {
	r := New()
	serverTouch := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	res, err := r.Resolve(
		domain.Snapshot{"comment": "server"},
		map[string]any{"comment": "client"},
		intPtr(1), 2,
		serverTouch.Format(time.RFC3339),
		map[string]time.Time{"comment": serverTouch},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FieldsToApply["comment"] != "client" {
		t.Fatalf("expected client to win on exact tie, got %#v", res.FieldsToApply)
	}
	if len(res.LWWResolved) != 1 || res.LWWResolved[0].Winner != WinnerClient {
		t.Fatalf("expected recorded client win, got %#v", res.LWWResolved)
	}
}

func TestResolve_LWWServerWins(t *testing.T) {
	r := New()
	res, err := r.Resolve(
		domain.Snapshot{"comment": "server"},
		map[string]any{"comment": "client"},
		intPtr(1), 2,
		"2024-01-01T09:00:00Z",
		map[string]time.Time{"comment": time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, applied := res.FieldsToApply["comment"]; applied {
		t.Fatalf("expected comment not applied when server wins, got %#v", res.FieldsToApply)
	}
	if len(res.LWWResolved) != 1 || res.LWWResolved[0].Winner != WinnerServer {
		t.Fatalf("expected recorded server win, got %#v", res.LWWResolved)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r := New()
	serverTouch := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	res, err := r.Resolve(
		domain.Snapshot{"comment": "server"},
		map[string]any{"comment": "client"},
		intPtr(1), 2,
		"2024-01-01T11:00:00Z",
		map[string]time.Time{"comment": serverTouch},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newVersion := 3
	server2 := domain.Snapshot{"comment": res.FieldsToApply["comment"]}
	res2, err := r.Resolve(server2, res.FieldsToApply, &newVersion, newVersion, "2024-01-01T11:00:00Z", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res2.LWWResolved) != 0 {
		t.Fatalf("expected idempotent re-resolution to yield no conflicts, got %#v", res2)
	}
}
