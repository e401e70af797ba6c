package stores

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"dialcart_backend/internal/research"
	"dialcart_backend/platform/logger"
)

type fakeSearcher struct {
	results map[string][]textSearchResult
	details map[string]Candidate
	// place ids whose details lookup reports no dialable phone
	noPhone map[string]bool
	queries []string
}

func (f *fakeSearcher) TextSearch(_ context.Context, query string) ([]textSearchResult, error) {
	f.queries = append(f.queries, query)
	if results, ok := f.results[query]; ok {
		return results, nil
	}
	return nil, nil
}

func (f *fakeSearcher) Details(_ context.Context, placeID string) (Candidate, bool, error) {
	if f.noPhone[placeID] {
		return Candidate{}, false, nil
	}
	if c, ok := f.details[placeID]; ok {
		return c, true, nil
	}
	return Candidate{}, false, errors.New("unknown place")
}

func TestFinderDedupesAcrossStrategies(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]textSearchResult{
			"electronics shop Indiranagar": {
				{PlaceID: "p1", Name: "Croma"},
				{PlaceID: "p2", Name: "Reliance Digital"},
			},
			"headphones store near Indiranagar": {
				{PlaceID: "p2", Name: "Reliance Digital"},
				{PlaceID: "p3", Name: "Sony Center"},
			},
		},
		details: map[string]Candidate{
			"p1": {PlaceID: "p1", Name: "Croma", Phone: "+918012345678"},
			"p2": {PlaceID: "p2", Name: "Reliance Digital", Phone: "+918087654321"},
			"p3": {PlaceID: "p3", Name: "Sony Center", Phone: "+918011112222"},
		},
	}

	f := NewFinder(searcher, logger.New("test"))
	product := &research.Product{
		Name:             "Sony WH-1000XM5",
		SearchTerms:      []string{"headphones store"},
		StoreSearchQuery: "electronics shop",
	}
	analysis := &research.QueryAnalysis{
		SearchQueries: []string{"electronics shop Indiranagar"},
	}

	got, err := f.Find(context.Background(), product, analysis, "Indiranagar", 10)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 3 {
		t.Fatalf("candidates = %d, want 3 (p2 deduped)", len(got))
	}
	if got[0].PlaceID != "p1" || got[1].PlaceID != "p2" || got[2].PlaceID != "p3" {
		t.Errorf("order = %v, first strategy must keep priority", got)
	}
}

func TestFinderCapsAtMaxStores(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]textSearchResult{
			"shop near here": {
				{PlaceID: "p1"}, {PlaceID: "p2"}, {PlaceID: "p3"}, {PlaceID: "p4"},
			},
		},
		details: map[string]Candidate{
			"p1": {PlaceID: "p1", Phone: "+918000000001"},
			"p2": {PlaceID: "p2", Phone: "+918000000002"},
			"p3": {PlaceID: "p3", Phone: "+918000000003"},
			"p4": {PlaceID: "p4", Phone: "+918000000004"},
		},
	}

	f := NewFinder(searcher, logger.New("test"))
	product := &research.Product{StoreSearchQuery: "shop"}

	got, err := f.Find(context.Background(), product, nil, "here", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("candidates = %d, want 2", len(got))
	}
}

func TestFinderSkipsStoresWithoutPhone(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]textSearchResult{
			"shop near here": {{PlaceID: "p1"}, {PlaceID: "p2"}},
		},
		details: map[string]Candidate{
			"p2": {PlaceID: "p2", Phone: "+918000000002"},
		},
		noPhone: map[string]bool{"p1": true},
	}

	f := NewFinder(searcher, logger.New("test"))
	got, err := f.Find(context.Background(), &research.Product{StoreSearchQuery: "shop"}, nil, "here", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].PlaceID != "p2" {
		t.Errorf("candidates = %v, want only p2", got)
	}
}

func TestFinderPinsSpecificStoreFirst(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]textSearchResult{}}
	f := NewFinder(searcher, logger.New("test"))

	product := &research.Product{StoreSearchQuery: "supermarket"}
	analysis := &research.QueryAnalysis{
		IsSpecificStore:   true,
		SpecificStoreName: "Ratnadeep",
		SearchQueries:     []string{"supermarket Hyderabad"},
	}

	_, err := f.Find(context.Background(), product, analysis, "Hyderabad", 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(searcher.queries) == 0 || searcher.queries[0] != "Ratnadeep near Hyderabad" {
		t.Errorf("queries = %v, specific store search must run first", searcher.queries)
	}
}

type fakeRankGenerator struct {
	response string
	err      error
}

func (f *fakeRankGenerator) GenerateJSON(_ context.Context, _, _ string, out any) error {
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

func TestRankerReorders(t *testing.T) {
	llm := &fakeRankGenerator{response: `{"ranked_indices":[2,0,1],"reasoning":"name match"}`}
	r := NewRanker(llm, logger.New("test"))

	candidates := []Candidate{{Name: "A"}, {Name: "B"}, {Name: "C"}}
	got := r.Rank(context.Background(), "q", candidates, nil)
	if got[0].Name != "C" || got[1].Name != "A" || got[2].Name != "B" {
		t.Errorf("order = %v", got)
	}
}

func TestRankerKeepsOrderOnFailure(t *testing.T) {
	llm := &fakeRankGenerator{err: errors.New("boom")}
	r := NewRanker(llm, logger.New("test"))

	candidates := []Candidate{{Name: "A"}, {Name: "B"}}
	got := r.Rank(context.Background(), "q", candidates, nil)
	if got[0].Name != "A" || got[1].Name != "B" {
		t.Errorf("failed ranking must keep discovery order, got %v", got)
	}
}

func TestRankerRejectsBadIndices(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"out of range", `{"ranked_indices":[0,5]}`},
		{"duplicate", `{"ranked_indices":[0,0]}`},
		{"empty", `{"ranked_indices":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRanker(&fakeRankGenerator{response: tt.response}, logger.New("test"))
			candidates := []Candidate{{Name: "A"}, {Name: "B"}}
			got := r.Rank(context.Background(), "q", candidates, nil)
			if got[0].Name != "A" || got[1].Name != "B" {
				t.Errorf("bad indices must keep discovery order, got %v", got)
			}
		})
	}
}

func TestRankerAppendsMissingIndices(t *testing.T) {
	llm := &fakeRankGenerator{response: `{"ranked_indices":[1]}`}
	r := NewRanker(llm, logger.New("test"))

	candidates := []Candidate{{Name: "A"}, {Name: "B"}, {Name: "C"}}
	got := r.Rank(context.Background(), "q", candidates, nil)
	if len(got) != 3 {
		t.Fatalf("candidates lost: %v", got)
	}
	if got[0].Name != "B" || got[1].Name != "A" || got[2].Name != "C" {
		t.Errorf("order = %v, want B then original order", got)
	}
}
