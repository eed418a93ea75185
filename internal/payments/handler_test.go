package payments

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

func TestHandler_HandleCreateIntent(t *testing.T) {
	handler := NewHandler(decimal.NewFromInt(500), slog.New(slog.NewTextHandler(io.Discard, nil)), WithDelay(0, 0))

	tests := []struct {
		name   string
		body   string
		status int
		error  string
	}{
		{"accepts a valid intent", `{"order_id":"o1","amount":"14.00","currency":"USD"}`, http.StatusOK, ""},
		{"rejects zero amount", `{"order_id":"o1","amount":"0","currency":"USD"}`, http.StatusBadRequest, "amount must be positive"},
		{"rejects other currencies", `{"order_id":"o1","amount":"10","currency":"EUR"}`, http.StatusBadRequest, "unsupported currency"},
		{"rejects missing order", `{"amount":"10","currency":"USD"}`, http.StatusBadRequest, "order_id is required"},
		{"declines above the limit", `{"order_id":"o1","amount":"500.01","currency":"USD"}`, http.StatusPaymentRequired, "card declined"},
		{"rejects malformed body", `{`, http.StatusBadRequest, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/payments/create-payment-intent", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.HandleCreateIntent(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}

			if tt.error != "" {
				var resp map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp["error"] != tt.error {
					t.Errorf("expected %q, got %q", tt.error, resp["error"])
				}
				return
			}

			var intent domain.PaymentIntent
			if err := json.Unmarshal(rec.Body.Bytes(), &intent); err != nil {
				t.Fatalf("failed to decode intent: %v", err)
			}
			if !strings.HasPrefix(intent.ID, "pi_") || intent.ClientSecret == "" {
				t.Errorf("unexpected intent: %+v", intent)
			}
			if !intent.Amount.Equal(decimal.RequireFromString("14")) {
				t.Errorf("expected amount 14, got %s", intent.Amount)
			}
		})
	}
}
