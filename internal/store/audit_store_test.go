package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"coinflip/internal/models"
)

func TestAuditStoreLog(t *testing.T) {
	ctx := context.Background()
	execer := stubQuerier{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO audit_logs") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 5 || args[1] != "game_settled" {
				t.Fatalf("unexpected args: %#v", args)
			}
			actor, ok := args[0].(*string)
			if !ok || actor == nil || *actor != "actor-1" {
				t.Fatalf("unexpected actor arg: %#v", args[0])
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewAuditStore(stubQuerier{})
	if err := store.Log(ctx, execer, "actor-1", "game_settled", "game", "game-1", `{"winner":"u1"}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuditStoreLogSystemActor(t *testing.T) {
	ctx := context.Background()
	execer := stubQuerier{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if actor, _ := args[0].(*string); actor != nil {
				t.Fatalf("expected NULL actor, got %q", *actor)
			}
			if args[4] != "{}" {
				t.Fatalf("expected default data, got %#v", args[4])
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewAuditStore(stubQuerier{})
	if err := store.Log(ctx, execer, "", "game_cancelled", "game", "game-1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuditStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewAuditStore(stubQuerier{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM audit_logs") || !strings.Contains(query, "WHERE entity_type = $3") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != 10 || args[1] != 5 || args[2] != "game" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.AuditLog) = []models.AuditLog{{ID: "log-1"}}
			return nil
		},
	})
	rows, err := store.List(ctx, "game", 10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "log-1" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}
