package intent

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

func TestClassifyOrderProduct(t *testing.T) {
	llm := &fakeGenerator{response: `{"intent":"order_product","confidence":0.95,"reasoning":"wants a phone"}`}
	c := New(llm, logger.New("test"))

	got := c.Classify(context.Background(), "I need an iPhone 15 case")
	if got.Intent != IntentOrderProduct {
		t.Errorf("intent = %s, want order_product", got.Intent)
	}
	if got.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got.Confidence)
	}
}

func TestClassifyWakeUpRejected(t *testing.T) {
	llm := &fakeGenerator{response: `{"intent":"wake_up_call","confidence":0.9,"reasoning":"asks for alarm"}`}
	c := New(llm, logger.New("test"))

	got := c.Classify(context.Background(), "wake me up at 7am tomorrow")
	if got.Intent != IntentWakeUpCall {
		t.Errorf("intent = %s, want wake_up_call", got.Intent)
	}
	if RejectionMessage(got.Intent) == "" {
		t.Error("wake_up_call must have a rejection message")
	}
}

func TestClassifyProviderErrorDefaults(t *testing.T) {
	llm := &fakeGenerator{err: errors.New("upstream down")}
	c := New(llm, logger.New("test"))

	got := c.Classify(context.Background(), "buy milk")
	if got.Intent != IntentOrderProduct {
		t.Errorf("provider failure must default to order_product, got %s", got.Intent)
	}
	if got.Confidence != 0 {
		t.Errorf("defaulted classification must carry zero confidence, got %v", got.Confidence)
	}
}

func TestClassifyUnknownCategoryDefaults(t *testing.T) {
	llm := &fakeGenerator{response: `{"intent":"pizza","confidence":0.5,"reasoning":"?"}`}
	c := New(llm, logger.New("test"))

	got := c.Classify(context.Background(), "something")
	if got.Intent != IntentOrderProduct {
		t.Errorf("unknown category must default to order_product, got %s", got.Intent)
	}
}
