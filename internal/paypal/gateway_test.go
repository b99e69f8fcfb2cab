package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// fakePayPal serves the token endpoint and the three payment calls.
type fakePayPal struct {
	mu       sync.Mutex
	created  []Payment
	executed []string
	tokens   int

	noApproval bool
	executeErr bool
}

func (f *fakePayPal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if id, secret, ok := r.BasicAuth(); !ok || id != "id" || secret != "secret" {
			t.Errorf("token request without client credentials")
		}
		f.mu.Lock()
		f.tokens++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/payments/payment", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var p Payment
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payment: %v", err)
		}
		f.mu.Lock()
		f.created = append(f.created, p)
		f.mu.Unlock()
		p.ID = "PAY-1"
		p.State = "created"
		if !f.noApproval {
			p.Links = []Link{
				{Href: "https://paypal.test/self", Rel: "self"},
				{Href: "https://paypal.test/approve?token=EC-1", Rel: "approval_url"},
			}
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("/v1/payments/payment/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/v1/payments/payment/")
		id, action, _ := strings.Cut(rest, "/")
		if id != "PAY-1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"name":"INVALID_RESOURCE_ID","message":"Requested resource ID was not found."}`))
			return
		}
		if action == "execute" {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if f.executeErr {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"name":"PAYMENT_ALREADY_DONE","message":"Payment has been done already for this cart."}`))
				return
			}
			f.mu.Lock()
			f.executed = append(f.executed, id+"/"+body["payer_id"])
			f.mu.Unlock()
		}
		_ = json.NewEncoder(w).Encode(Payment{ID: id, Intent: "sale", State: "approved"})
	})
	return mux
}

func newGateway(t *testing.T, f *fakePayPal) *Gateway {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return &Gateway{
		Client:  NewClient(srv.URL, "id", "secret", 5*time.Second),
		BaseURL: "http://api.test/",
	}
}

func TestCreateAuthorization(t *testing.T) {
	f := &fakePayPal{}
	g := newGateway(t, f)

	url, err := g.CreateAuthorization(context.Background(), decimal.RequireFromString("15"), 7)
	if err != nil {
		t.Fatalf("CreateAuthorization: %v", err)
	}
	if url != "https://paypal.test/approve?token=EC-1" {
		t.Errorf("approval url = %q", url)
	}

	p := f.created[0]
	if p.Intent != "sale" || p.Payer.PaymentMethod != "paypal" {
		t.Errorf("payment = %+v", p)
	}
	tx := p.Transactions[0]
	if tx.Amount.Total != "15.00" || tx.Amount.Currency != "USD" || tx.Description != "Order from Pizza Club" {
		t.Errorf("transaction = %+v", tx)
	}
	if p.RedirectURLs.ReturnURL != "http://api.test/payment/execute?unpaid_order_id=7" ||
		p.RedirectURLs.CancelURL != "http://api.test/payment/cancel?unpaid_order_id=7" {
		t.Errorf("redirects = %+v", p.RedirectURLs)
	}
}

func TestCreateAuthorizationWithoutApprovalLink(t *testing.T) {
	g := newGateway(t, &fakePayPal{noApproval: true})

	_, err := g.CreateAuthorization(context.Background(), decimal.RequireFromString("7.50"), 1)
	if !errors.Is(err, ErrNoApprovalURL) {
		t.Fatalf("err = %v, want ErrNoApprovalURL", err)
	}
}

func TestExecute(t *testing.T) {
	f := &fakePayPal{}
	g := newGateway(t, f)

	if err := g.Execute(context.Background(), "PAY-1", "PAYER-9"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(f.executed) != 1 || f.executed[0] != "PAY-1/PAYER-9" {
		t.Errorf("executed = %v", f.executed)
	}
	if f.tokens != 1 {
		t.Errorf("token fetched %d times, want 1", f.tokens)
	}
}

func TestExecuteErrors(t *testing.T) {
	g := newGateway(t, &fakePayPal{executeErr: true})

	err := g.Execute(context.Background(), "PAY-1", "PAYER-9")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("err = %v, want APIError 400", err)
	}
	if err.Error() != "PAYMENT_ALREADY_DONE: Payment has been done already for this cart." {
		t.Errorf("message = %q", err.Error())
	}

	err = g.Execute(context.Background(), "PAY-404", "PAYER-9")
	if !errors.As(err, &apiErr) || apiErr.Name != "INVALID_RESOURCE_ID" {
		t.Errorf("unknown payment err = %v", err)
	}
}

func TestAPIErrorWithoutBody(t *testing.T) {
	e := &APIError{StatusCode: 502}
	if e.Error() != "paypal: unexpected status 502" {
		t.Errorf("Error() = %q", e.Error())
	}
}
