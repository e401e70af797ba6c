package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"dialcart_backend/internal/research"
	"dialcart_backend/platform/logger"
)

type fakeGenerator struct {
	response string
	err      error
	called   bool
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, _, _ string, out any) error {
	f.called = true
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

func TestAnalyzeExtractsFields(t *testing.T) {
	llm := &fakeGenerator{response: `{
		"call_connected": true,
		"product_available": true,
		"matched_product": "Sony WH-1000XM5",
		"price": 24990,
		"product_match_type": "exact",
		"delivery_available": true,
		"delivery_eta": "2 hours",
		"delivery_charge": 50,
		"call_summary": "In stock at 24990 with delivery."
	}`}
	a := New(llm, logger.New("test"))

	got, ok := a.Analyze(context.Background(), &research.Product{Name: "Sony WH-1000XM5"}, "Store: yes we have it")
	if !ok {
		t.Fatal("analysis should succeed")
	}
	if !got.Available || got.Price != 24990 || got.MatchType != "exact" {
		t.Errorf("analysis = %+v", got)
	}
}

func TestAnalyzeEmptyTranscriptUnanalyzable(t *testing.T) {
	llm := &fakeGenerator{}
	a := New(llm, logger.New("test"))

	for _, transcript := range []string{"", "   ", "\n\t"} {
		if _, ok := a.Analyze(context.Background(), nil, transcript); ok {
			t.Errorf("transcript %q must be unanalyzable", transcript)
		}
	}
	if llm.called {
		t.Error("empty transcripts must not reach the model")
	}
}

func TestAnalyzeProviderErrorUnanalyzable(t *testing.T) {
	llm := &fakeGenerator{err: errors.New("upstream down")}
	a := New(llm, logger.New("test"))

	if _, ok := a.Analyze(context.Background(), nil, "some transcript"); ok {
		t.Error("provider failure must yield unanalyzable, not an error")
	}
}

func TestAnalyzeNormalizesMatchType(t *testing.T) {
	llm := &fakeGenerator{response: `{"call_connected":true,"product_available":true,"product_match_type":"close"}`}
	a := New(llm, logger.New("test"))

	got, ok := a.Analyze(context.Background(), nil, "transcript")
	if !ok {
		t.Fatal("analysis should succeed")
	}
	if got.MatchType != "none" {
		t.Errorf("unexpected match type %q must normalize to none", got.MatchType)
	}
}
