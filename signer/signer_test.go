package signer

import (
	"strings"
	"testing"

	"github.com/grvt-dev/grvt-go/api"
)

// Well-known throwaway development key.
const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func testOrder() *api.Order {
	return &api.Order{
		SubAccountID: "8289849667772468",
		TimeInForce:  "GOOD_TILL_TIME",
		Legs: []api.OrderLeg{
			{
				Instrument:    "BTC_USDT_Perp",
				Size:          "0.5",
				LimitPrice:    "64250.5",
				IsBuyingAsset: true,
			},
		},
	}
}

var testAssetIDs = map[string]uint32{"BTC_USDT_Perp": 1}

func TestNew(t *testing.T) {
	s, err := New(testKey, 325)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Address() != testAddress {
		t.Errorf("Address() = %s, want %s", s.Address(), testAddress)
	}

	// 0x prefix is accepted.
	s2, err := New("0x"+testKey, 325)
	if err != nil {
		t.Fatalf("New with 0x prefix failed: %v", err)
	}
	if s2.Address() != testAddress {
		t.Errorf("Address() with prefix = %s", s2.Address())
	}
}

func TestNew_InvalidKey(t *testing.T) {
	if _, err := New("not-a-key", 325); err == nil {
		t.Error("expected error for invalid private key")
	}
	if _, err := New("", 325); err == nil {
		t.Error("expected error for empty private key")
	}
}

func TestSignOrder(t *testing.T) {
	s, err := New(testKey, 325)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	order := testOrder()
	if err := s.SignOrder(order, testAssetIDs); err != nil {
		t.Fatalf("SignOrder failed: %v", err)
	}

	sig := order.Signature
	if sig.Signer != testAddress {
		t.Errorf("signer = %s, want %s", sig.Signer, testAddress)
	}
	if !strings.HasPrefix(sig.R, "0x") || len(sig.R) != 66 {
		t.Errorf("r = %q, want 32-byte hex", sig.R)
	}
	if !strings.HasPrefix(sig.S, "0x") || len(sig.S) != 66 {
		t.Errorf("s = %q, want 32-byte hex", sig.S)
	}
	if sig.V != 27 && sig.V != 28 {
		t.Errorf("v = %d, want 27 or 28", sig.V)
	}
	if sig.Expiration == "" || sig.Expiration == "0" {
		t.Errorf("expiration = %q", sig.Expiration)
	}
}

func TestSignOrder_UnknownTimeInForce(t *testing.T) {
	s, _ := New(testKey, 325)
	order := testOrder()
	order.TimeInForce = "UNTIL_THE_HEAT_DEATH"

	if err := s.SignOrder(order, testAssetIDs); err == nil {
		t.Error("expected error for unknown time in force")
	}
}

func TestSignOrder_MissingAssetID(t *testing.T) {
	s, _ := New(testKey, 325)
	order := testOrder()

	if err := s.SignOrder(order, map[string]uint32{}); err == nil {
		t.Error("expected error when instrument has no asset id")
	}
}

func TestSignOrder_BadSubAccountID(t *testing.T) {
	s, _ := New(testKey, 325)
	order := testOrder()
	order.SubAccountID = "not-a-number"

	if err := s.SignOrder(order, testAssetIDs); err == nil {
		t.Error("expected error for non-numeric sub account id")
	}
}

func TestToFixedPoint(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "1", want: 1_000_000_000},
		{in: "0.5", want: 500_000_000},
		{in: "64250.5", want: 64_250_500_000_000},
		{in: "0.000000001", want: 1},
		{in: "0.0000000001", wantErr: true}, // 10 decimal places
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := toFixedPoint(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("toFixedPoint(%q) = %d, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("toFixedPoint(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("toFixedPoint(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
