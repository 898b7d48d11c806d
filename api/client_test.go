package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// testClient builds a client whose endpoints all point at server.
func testClient(server *httptest.Server, apiKey string) *Client {
	return NewClient(Config{
		MarketDataURL: server.URL,
		TradeDataURL:  server.URL,
		EdgeURL:       server.URL,
		APIKey:        apiKey,
	})
}

func jsonResponse(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestGetInstruments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/full/v1/instruments" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if ae := r.Header.Get("Accept-Encoding"); !strings.Contains(ae, "gzip") {
			t.Errorf("accept encoding = %q, want gzip offered", ae)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["is_active"] != true {
			t.Errorf("payload = %v", payload)
		}
		jsonResponse(w, http.StatusOK, `{"result":[
			{"instrument":"BTC_USDT_Perp","base":"BTC","quote":"USDT"},
			{"instrument":"ETH_USDT_Perp","base":"ETH","quote":"USDT"}
		]}`)
	}))
	defer server.Close()

	client := testClient(server, "")
	instruments, err := client.GetInstruments(context.Background())
	if err != nil {
		t.Fatalf("GetInstruments failed: %v", err)
	}
	if len(instruments) != 2 {
		t.Fatalf("got %d instruments, want 2", len(instruments))
	}
	if instruments[0].Instrument != "BTC_USDT_Perp" {
		t.Errorf("instrument = %q", instruments[0].Instrument)
	}
}

func TestDo_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusTooManyRequests, `{"code":429,"message":"rate limited"}`)
	}))
	defer server.Close()

	client := testClient(server, "")
	err := client.Do(context.Background(), EndpointMarketData, "/full/v1/mini", nil, RequestOptions{}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", apiErr.StatusCode)
	}
	if len(apiErr.Body) == 0 {
		t.Error("error body not captured")
	}
}

func TestDo_NonJSONSuccessIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	client := testClient(server, "")
	err := client.Do(context.Background(), EndpointMarketData, "/full/v1/mini", nil, RequestOptions{}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError for non-JSON body", err)
	}
	if apiErr.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", apiErr.StatusCode)
	}
}

func TestDo_AuthWithoutKeyFailsBeforeNetwork(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		jsonResponse(w, http.StatusOK, `{}`)
	}))
	defer server.Close()

	client := testClient(server, "")
	err := client.Do(context.Background(), EndpointTradeData, "/full/v1/open_orders", nil, RequestOptions{RequiresAuth: true}, nil)
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("error = %v, want ErrNoAPIKey", err)
	}
	if calls.Load() != 0 {
		t.Errorf("server saw %d requests, want 0", calls.Load())
	}
}

func TestCreateOrder_GeneratesClientOrderID(t *testing.T) {
	var gotClientOrderID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/api_key/login":
			http.SetCookie(w, &http.Cookie{Name: "gravity", Value: "session-token"})
			jsonResponse(w, http.StatusOK, `{}`)
		case "/full/v1/create_order":
			if cookie := r.Header.Get("Cookie"); cookie != "gravity=session-token" {
				t.Errorf("cookie header = %q", cookie)
			}
			var payload struct {
				Order Order `json:"order"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			gotClientOrderID = payload.Order.Metadata.ClientOrderID
			jsonResponse(w, http.StatusOK, `{"result":{"order_id":"0xabc"}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := testClient(server, "test-key")
	order := &Order{SubAccountID: "12345"}
	created, err := client.CreateOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if created.OrderID != "0xabc" {
		t.Errorf("order id = %q", created.OrderID)
	}
	if gotClientOrderID == "" {
		t.Error("client order id not generated")
	}
	if order.Metadata.ClientOrderID != gotClientOrderID {
		t.Error("generated client order id not written back to the order")
	}
}

func TestCancelOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/api_key/login":
			http.SetCookie(w, &http.Cookie{Name: "gravity", Value: "tok"})
			jsonResponse(w, http.StatusOK, `{}`)
		case "/full/v1/cancel_order":
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["sub_account_id"] != "12345" || payload["order_id"] != "0xabc" {
				t.Errorf("payload = %v", payload)
			}
			jsonResponse(w, http.StatusOK, `{"result":{}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := testClient(server, "test-key")
	if err := client.CancelOrder(context.Background(), "12345", "0xabc"); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
}
