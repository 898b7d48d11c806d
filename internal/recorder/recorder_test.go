package recorder

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/grvt-dev/grvt-go/internal/config"
)

func testRecorder() *Recorder {
	return New(config.RecorderOpts{BatchSize: 10, FlushInterval: time.Second}, nil, nil, nil)
}

func TestTransform(t *testing.T) {
	r := testRecorder()

	feed := json.RawMessage(`{
		"event_time": "1700000000000000000",
		"instrument": "BTC_USDT_Perp",
		"last_price": "64250.5",
		"mark_price": "64251.0",
		"index_price": "64249.8",
		"best_bid_price": "64250.0",
		"best_ask_price": "64251.2"
	}`)

	receivedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	row, err := r.transform(feed, receivedAt)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}

	if row.RunID != r.RunID() {
		t.Errorf("run id = %q, want %q", row.RunID, r.RunID())
	}
	if row.Instrument != "BTC_USDT_Perp" {
		t.Errorf("instrument = %q", row.Instrument)
	}
	if row.EventTime != "1700000000000000000" {
		t.Errorf("event time = %q", row.EventTime)
	}
	if row.LastPrice != "64250.5" || row.MarkPrice != "64251.0" || row.IndexPrice != "64249.8" {
		t.Errorf("prices = %q/%q/%q", row.LastPrice, row.MarkPrice, row.IndexPrice)
	}
	if row.BestBid != "64250.0" || row.BestAsk != "64251.2" {
		t.Errorf("bbo = %q/%q", row.BestBid, row.BestAsk)
	}
	if row.ReceivedAt != receivedAt.UnixMicro() {
		t.Errorf("received at = %d, want %d", row.ReceivedAt, receivedAt.UnixMicro())
	}
}

func TestTransform_MissingInstrument(t *testing.T) {
	r := testRecorder()

	if _, err := r.transform(json.RawMessage(`{"last_price":"1"}`), time.Now()); err == nil {
		t.Error("expected error for tick without instrument")
	}
}

func TestTransform_MalformedPayload(t *testing.T) {
	r := testRecorder()

	if _, err := r.transform(json.RawMessage(`[1,2,3]`), time.Now()); err == nil {
		t.Error("expected error for non-object payload")
	}
}
