package webdeals

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"dialcart_backend/platform/logger"
)

type fakeGenerator struct {
	mu            sync.Mutex
	groundedCalls []string
	groundedText  string
	groundedErr   error
	// per-stage grounded errors; overrides groundedErr when set
	groundedErrByStage map[string]error
	jsonResponse       string
	jsonErr            error
}

func (f *fakeGenerator) GenerateGrounded(_ context.Context, stage, _ string) (string, error) {
	f.mu.Lock()
	f.groundedCalls = append(f.groundedCalls, stage)
	f.mu.Unlock()

	if err, ok := f.groundedErrByStage[stage]; ok {
		return "", err
	}
	if f.groundedErr != nil {
		return "", f.groundedErr
	}
	return f.groundedText, nil
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, _, _ string, out any) error {
	if f.jsonErr != nil {
		return f.jsonErr
	}
	return json.Unmarshal([]byte(f.jsonResponse), out)
}

func TestSearchRunsAllAngles(t *testing.T) {
	llm := &fakeGenerator{
		groundedText: "Amazon.in: 24990",
		jsonResponse: `{"status":"found","search_summary":"found it","deals":[{"platform":"Amazon.in","price":24990,"confidence":"high"}]}`,
	}
	f := New(llm, time.Minute, logger.New("test"))

	got, err := f.Search(context.Background(), "Sony WH-1000XM5")
	if err != nil {
		t.Fatal(err)
	}
	if len(llm.groundedCalls) != len(searchAngles) {
		t.Errorf("grounded calls = %d, want %d", len(llm.groundedCalls), len(searchAngles))
	}
	if got.Status != "found" || len(got.Deals) != 1 {
		t.Errorf("result = %+v", got)
	}
}

func TestSearchToleratesPartialAngleFailure(t *testing.T) {
	llm := &fakeGenerator{
		groundedText: "Flipkart: 23990",
		groundedErrByStage: map[string]error{
			"webdeals_price_compare": errors.New("angle down"),
			"webdeals_niche_sources": errors.New("angle down"),
		},
		jsonResponse: `{"status":"found","deals":[{"platform":"Flipkart","price":23990}]}`,
	}
	f := New(llm, time.Minute, logger.New("test"))

	got, err := f.Search(context.Background(), "product")
	if err != nil {
		t.Fatalf("partial angle failure must not fail the search: %v", err)
	}
	if len(got.Deals) != 1 {
		t.Errorf("deals = %v", got.Deals)
	}
}

func TestSearchFailsWhenAllAnglesFail(t *testing.T) {
	llm := &fakeGenerator{groundedErr: errors.New("all down")}
	f := New(llm, time.Minute, logger.New("test"))

	if _, err := f.Search(context.Background(), "product"); err == nil {
		t.Error("zero usable angles must fail the search")
	}
}

func TestSynthesisFillsBestDeal(t *testing.T) {
	llm := &fakeGenerator{
		groundedText: "findings",
		jsonResponse: `{"deals":[
			{"platform":"A","price":500},
			{"platform":"B","price":300},
			{"platform":"C","price":400}
		]}`,
	}
	f := New(llm, time.Minute, logger.New("test"))

	got, err := f.Search(context.Background(), "product")
	if err != nil {
		t.Fatal(err)
	}
	if got.BestDeal == nil || got.BestDeal.Platform != "B" {
		t.Errorf("best deal = %+v, want cheapest (B)", got.BestDeal)
	}
	if got.Status != "found" {
		t.Errorf("status = %q, want found", got.Status)
	}
}
