package research

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"dialcart_backend/platform/logger"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, _, _ string, out any) error {
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

func TestAnalyzeFillsFallbackQuery(t *testing.T) {
	llm := &fakeGenerator{response: `{"query_type":"generic_product","is_specific_store":false,"search_queries":[]}`}
	a := NewAnalyzer(llm, logger.New("test"))

	got, err := a.Analyze(context.Background(), "blue running shoes", "Koramangala, Bangalore")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.SearchQueries) != 1 {
		t.Fatalf("search queries = %v, want one fallback", got.SearchQueries)
	}
	if got.SearchQueries[0] != "blue running shoes near Koramangala, Bangalore" {
		t.Errorf("fallback query = %q", got.SearchQueries[0])
	}
}

func TestAnalyzeSpecificStore(t *testing.T) {
	llm := &fakeGenerator{response: `{"query_type":"specific_store","is_specific_store":true,"specific_store_name":"Ratnadeep","search_queries":["Ratnadeep supermarket Hyderabad"]}`}
	a := NewAnalyzer(llm, logger.New("test"))

	got, err := a.Analyze(context.Background(), "order rice from Ratnadeep", "Hyderabad")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsSpecificStore || got.SpecificStoreName != "Ratnadeep" {
		t.Errorf("specific store not detected: %+v", got)
	}
}

func TestAnalyzeError(t *testing.T) {
	llm := &fakeGenerator{err: errors.New("boom")}
	a := NewAnalyzer(llm, logger.New("test"))

	if _, err := a.Analyze(context.Background(), "q", "l"); err == nil {
		t.Error("expected error to propagate; the pipeline decides tolerance")
	}
}

func TestResearchCapsAlternatives(t *testing.T) {
	llm := &fakeGenerator{response: `{
		"product_name": "Sony WH-1000XM5",
		"product_category": "headphones",
		"specs": {"type": "over-ear"},
		"alternatives": [
			{"name": "a"}, {"name": "b"}, {"name": "c"}, {"name": "d"}, {"name": "e"}
		],
		"search_terms": ["headphones store"],
		"store_search_query": "electronics shop",
		"avg_price_online": 24990
	}`}
	r := NewResearcher(llm, logger.New("test"))

	got, err := r.Research(context.Background(), "sony headphones", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Alternatives) != maxAlternatives {
		t.Errorf("alternatives = %d, want %d", len(got.Alternatives), maxAlternatives)
	}
}

func TestResearchFallbackNames(t *testing.T) {
	llm := &fakeGenerator{response: `{"product_name":"","store_search_query":""}`}
	r := NewResearcher(llm, logger.New("test"))

	got, err := r.Research(context.Background(), "2kg basmati rice", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "2kg basmati rice" {
		t.Errorf("empty product name must fall back to the query, got %q", got.Name)
	}
	if got.StoreSearchQuery != "2kg basmati rice" {
		t.Errorf("empty store query must fall back to the product name, got %q", got.StoreSearchQuery)
	}
}
