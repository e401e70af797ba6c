package service

import (
	"testing"

	"github.com/google/uuid"

	"dialcart_backend/internal/ticket/domain"
	"dialcart_backend/internal/ticket/repository"
)

func analyzedCall(name string, matchType domain.MatchType, price float64, rating float64, priority int) repository.CallWithStore {
	available := true
	cw := repository.CallWithStore{
		Call: repository.StoreCall{
			ID:        uuid.New(),
			Status:    domain.CallAnalyzed,
			Available: &available,
			MatchType: matchType,
		},
		Store: repository.Store{
			ID:           uuid.New(),
			Name:         name,
			Rating:       rating,
			CallPriority: priority,
		},
	}
	if price > 0 {
		cw.Call.Price = &price
	}
	return cw
}

func TestBuildOptionsMatchTierBeatsPrice(t *testing.T) {
	// An exact match at a higher price outranks a cheaper alternative.
	calls := []repository.CallWithStore{
		analyzedCall("Cheap Alternative", domain.MatchAlternative, 1200, 4.8, 0),
		analyzedCall("Exact Match", domain.MatchExact, 1499, 4.1, 1),
	}

	rows := buildOptions(calls)
	if len(rows) != 2 {
		t.Fatalf("options = %d, want 2", len(rows))
	}
	if rows[0].store.Name != "Exact Match" {
		t.Errorf("first option = %s, want Exact Match", rows[0].store.Name)
	}
}

func TestBuildOptionsTieBreakers(t *testing.T) {
	calls := []repository.CallWithStore{
		analyzedCall("pricier", domain.MatchExact, 900, 4.0, 0),
		analyzedCall("cheaper", domain.MatchExact, 700, 3.5, 1),
		analyzedCall("same price lower rating", domain.MatchExact, 700, 3.0, 2),
		analyzedCall("no price", domain.MatchExact, 0, 5.0, 3),
	}

	rows := buildOptions(calls)
	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.store.Name
	}

	want := []string{"cheaper", "same price lower rating", "pricier", "no price"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestBuildOptionsDiscoveryPriorityBreaksFullTies(t *testing.T) {
	calls := []repository.CallWithStore{
		analyzedCall("second found", domain.MatchExact, 500, 4.0, 1),
		analyzedCall("first found", domain.MatchExact, 500, 4.0, 0),
	}

	rows := buildOptions(calls)
	if rows[0].store.Name != "first found" {
		t.Errorf("first option = %s, want first found", rows[0].store.Name)
	}
}

func TestBuildOptionsExcludesNonConfirmable(t *testing.T) {
	unavailable := false
	calls := []repository.CallWithStore{
		{Call: repository.StoreCall{Status: domain.CallFailed}},
		{Call: repository.StoreCall{Status: domain.CallUnanalyzable}},
		{Call: repository.StoreCall{Status: domain.CallAnalyzed, Available: &unavailable}},
		{Call: repository.StoreCall{Status: domain.CallAnalyzed}}, // availability unknown
		analyzedCall("only good one", domain.MatchExact, 100, 4.0, 0),
	}

	rows := buildOptions(calls)
	if len(rows) != 1 || rows[0].store.Name != "only good one" {
		t.Errorf("options = %d, want only the available analyzed call", len(rows))
	}
}

func TestComposeMessage(t *testing.T) {
	rows := buildOptions([]repository.CallWithStore{
		analyzedCall("Best Store", domain.MatchExact, 1499, 4.0, 0),
	})

	msg := composeMessage(rows, 2)
	if msg == "" {
		t.Fatal("message must not be empty")
	}

	if got := composeMessage(nil, 0); got == "" {
		t.Error("empty result still needs a message")
	}
	if got := composeMessage(nil, 3); got == composeMessage(nil, 0) {
		t.Error("deals-only message must differ from nothing-found message")
	}
}
