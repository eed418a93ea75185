package deliveries

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

type memoryRepo struct {
	mu         sync.Mutex
	deliveries map[string]*domain.Delivery
}

func (m *memoryRepo) Create(_ context.Context, d *domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.deliveries {
		if existing.OrderID == d.OrderID && existing.Status.HoldsOrder() {
			c := *existing
			return &ConflictError{Reason: "delivery already exists for order " + d.OrderID, Current: &c}
		}
	}
	d.ID = uuid.NewString()
	d.Status = domain.DeliveryStatusPending
	d.Version = 1
	d.CreatedAt = time.Now().UTC()
	c := *d
	m.deliveries[d.ID] = &c
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*domain.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

func (m *memoryRepo) List(context.Context) ([]domain.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Delivery{}
	for _, d := range m.deliveries {
		out = append(out, *d)
	}
	return out, nil
}

func (m *memoryRepo) Assign(_ context.Context, id, driverID string) (*domain.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, nil
	}
	if d.Status != domain.DeliveryStatusPending {
		c := *d
		return nil, &ConflictError{Reason: "not awaiting a driver", Current: &c}
	}
	d.Status = domain.DeliveryStatusAssigned
	d.DriverID = driverID
	d.Version++
	c := *d
	return &c, nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id string, update domain.DeliveryStatusUpdate) (*domain.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, nil
	}
	if d.Status != update.ExpectedStatus || !domain.CanTransitionDelivery(d.Status, update.Status) {
		c := *d
		return nil, &ConflictError{Reason: "guard failed", Current: &c}
	}
	now := time.Now().UTC()
	d.Status = update.Status
	d.Version++
	if update.Status == domain.DeliveryStatusPickedUp {
		d.PickedUpAt = stamp(update.PickedUpAt, now)
	}
	c := *d
	return &c, nil
}

func newTestMux() *http.ServeMux {
	h := NewHandler(&memoryRepo{deliveries: map[string]*domain.Delivery{}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /deliveries", h.HandleCreate)
	mux.HandleFunc("GET /deliveries/all", h.HandleList)
	mux.HandleFunc("GET /deliveries/{id}", h.HandleGet)
	mux.HandleFunc("POST /deliveries/{id}/assign", h.HandleAssign)
	mux.HandleFunc("PATCH /deliveries/{id}/status", h.HandleUpdateStatus)
	return mux
}

func send(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decodeDelivery(t *testing.T, rec *httptest.ResponseRecorder) domain.Delivery {
	t.Helper()
	var d domain.Delivery
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode delivery: %v (%s)", err, rec.Body.String())
	}
	return d
}

const newDelivery = `{"order_id":"o1","restaurant_id":"r1","customer_name":"Ada","delivery_address":"12 Main Street"}`

func TestHandler_HandleCreate(t *testing.T) {
	t.Run("creates a pending delivery", func(t *testing.T) {
		mux := newTestMux()

		rec := send(mux, http.MethodPost, "/deliveries", newDelivery)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", rec.Code)
		}
		if d := decodeDelivery(t, rec); d.Status != domain.DeliveryStatusPending {
			t.Errorf("expected PENDING, got %s", d.Status)
		}
	})

	t.Run("second delivery for the order is 409", func(t *testing.T) {
		mux := newTestMux()
		first := decodeDelivery(t, send(mux, http.MethodPost, "/deliveries", newDelivery))

		rec := send(mux, http.MethodPost, "/deliveries", newDelivery)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rec.Code)
		}
		var resp struct {
			Current domain.Delivery `json:"current"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Current.ID != first.ID {
			t.Errorf("expected current to be %s, got %s", first.ID, resp.Current.ID)
		}
	})

	t.Run("cancelled delivery frees the order", func(t *testing.T) {
		mux := newTestMux()
		first := decodeDelivery(t, send(mux, http.MethodPost, "/deliveries", newDelivery))

		rec := send(mux, http.MethodPatch, "/deliveries/"+first.ID+"/status", `{"status":"CANCELLED","expected_status":"PENDING"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("cancel: expected status 200, got %d", rec.Code)
		}

		rec = send(mux, http.MethodPost, "/deliveries", newDelivery)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", rec.Code)
		}
		if second := decodeDelivery(t, rec); second.ID == first.ID || second.Status != domain.DeliveryStatusPending {
			t.Errorf("expected a new pending delivery, got %+v", second)
		}
	})

	t.Run("missing address is 400", func(t *testing.T) {
		rec := send(newTestMux(), http.MethodPost, "/deliveries", `{"order_id":"o1"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_Lifecycle(t *testing.T) {
	mux := newTestMux()
	d := decodeDelivery(t, send(mux, http.MethodPost, "/deliveries", newDelivery))

	rec := send(mux, http.MethodPost, "/deliveries/"+d.ID+"/assign", `{"driver_id":"driver-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: expected status 200, got %d", rec.Code)
	}
	if got := decodeDelivery(t, rec); got.Status != domain.DeliveryStatusAssigned || got.DriverID != "driver-1" {
		t.Errorf("unexpected delivery after assign: %+v", got)
	}

	rec = send(mux, http.MethodPost, "/deliveries/"+d.ID+"/assign", `{"driver_id":"driver-2"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("second assign: expected status 409, got %d", rec.Code)
	}

	rec = send(mux, http.MethodPatch, "/deliveries/"+d.ID+"/status", `{"status":"DELIVERED","expected_status":"ASSIGNED"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("skip to delivered: expected status 409, got %d", rec.Code)
	}

	rec = send(mux, http.MethodPatch, "/deliveries/"+d.ID+"/status", `{"status":"PICKED_UP","expected_status":"ASSIGNED"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("pickup: expected status 200, got %d", rec.Code)
	}
	if got := decodeDelivery(t, rec); got.PickedUpAt == nil {
		t.Error("expected picked_up_at to be stamped")
	}

	rec = send(mux, http.MethodGet, "/deliveries/all", "")
	var all []domain.Delivery
	_ = json.Unmarshal(rec.Body.Bytes(), &all)
	if len(all) != 1 || all[0].Status != domain.DeliveryStatusPickedUp {
		t.Errorf("unexpected list: %+v", all)
	}
}

func TestHandler_NotFound(t *testing.T) {
	mux := newTestMux()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"get unknown", http.MethodGet, "/deliveries/" + uuid.NewString(), ""},
		{"get malformed", http.MethodGet, "/deliveries/nope", ""},
		{"assign unknown", http.MethodPost, "/deliveries/" + uuid.NewString() + "/assign", `{"driver_id":"d"}`},
		{"status unknown", http.MethodPatch, "/deliveries/" + uuid.NewString() + "/status", `{"status":"PICKED_UP","expected_status":"ASSIGNED"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(mux, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", rec.Code)
			}
		})
	}
}
