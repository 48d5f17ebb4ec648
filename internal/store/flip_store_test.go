package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"coinflip/internal/models"
)

func TestFlipStoreInsert(t *testing.T) {
	ctx := context.Background()
	execer := stubQuerier{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO flips") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 8 || args[2] != "heads" || args[3] != "tails" || args[6] != int64(0) || args[7] != false {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewFlipStore(stubQuerier{})
	flip := models.Flip{ID: "f-1", UserID: "user-1", Choice: "heads", Outcome: "tails", Bet: 10, Multiplier: "2", Payout: 0}
	if err := store.Insert(ctx, execer, flip); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFlipStoreListByUser(t *testing.T) {
	ctx := context.Background()
	store := NewFlipStore(stubQuerier{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if len(args) != 3 || args[0] != "user-1" || args[1] != 5 || args[2] != 0 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.Flip) = []models.Flip{{ID: "f-1"}}
			return nil
		},
	})
	rows, err := store.ListByUser(ctx, "user-1", 5, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("unexpected result: %#v %v", rows, err)
	}
}
