package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(rdb), mr
}

func TestSeenFirstAndRepeat(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	seen, err := store.Seen(ctx, "voice", "evt-1")
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if seen {
		t.Error("first delivery must not be seen")
	}

	seen, err = store.Seen(ctx, "voice", "evt-1")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !seen {
		t.Error("duplicate delivery must be seen")
	}
}

func TestSeenScopedBySource(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Seen(ctx, "voice", "evt-1"); err != nil {
		t.Fatal(err)
	}

	seen, err := store.Seen(ctx, "logistics", "evt-1")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("same event id from a different source must not collide")
	}
}

func TestForgetAllowsRetry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Seen(ctx, "voice", "evt-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Forget(ctx, "voice", "evt-1"); err != nil {
		t.Fatal(err)
	}

	seen, err := store.Seen(ctx, "voice", "evt-1")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("forgotten event must be processable again")
	}
}

func TestSeenExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Seen(ctx, "voice", "evt-1"); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(Retention + time.Minute)

	seen, err := store.Seen(ctx, "voice", "evt-1")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("event id must be forgotten after retention window")
	}
}
