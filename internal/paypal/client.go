// Package paypal talks to the PayPal v1 payments REST API.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	SandboxURL = "https://api-m.sandbox.paypal.com"
	LiveURL    = "https://api-m.paypal.com"
)

type Amount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type Transaction struct {
	Amount      Amount `json:"amount"`
	Description string `json:"description,omitempty"`
	Custom      string `json:"custom,omitempty"`
}

type Payer struct {
	PaymentMethod string `json:"payment_method"`
}

type RedirectURLs struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type Payment struct {
	ID           string        `json:"id,omitempty"`
	Intent       string        `json:"intent"`
	State        string        `json:"state,omitempty"`
	Payer        Payer         `json:"payer"`
	Transactions []Transaction `json:"transactions"`
	RedirectURLs *RedirectURLs `json:"redirect_urls,omitempty"`
	Links        []Link        `json:"links,omitempty"`
}

// Link returns the href of the link with relation rel.
func (p Payment) Link(rel string) (string, bool) {
	for _, l := range p.Links {
		if l.Rel == rel {
			return l.Href, true
		}
	}
	return "", false
}

// APIError is the error body PayPal sends with non-2xx responses.
type APIError struct {
	StatusCode int    `json:"-"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	DebugID    string `json:"debug_id"`
}

func (e *APIError) Error() string {
	switch {
	case e.Name != "" && e.Message != "":
		return e.Name + ": " + e.Message
	case e.Name != "":
		return e.Name
	default:
		return fmt.Sprintf("paypal: unexpected status %d", e.StatusCode)
	}
}

// Client is safe for concurrent use. The access token is fetched with the client
// credentials grant and refreshed by the oauth2 transport when it expires.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL, clientID, clientSecret string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	hc := cc.Client(ctx)
	hc.Timeout = timeout
	return &Client{baseURL: baseURL, http: hc}
}

func (c *Client) CreatePayment(ctx context.Context, p Payment) (Payment, error) {
	var out Payment
	err := c.do(ctx, http.MethodPost, "/v1/payments/payment", p, &out)
	return out, err
}

func (c *Client) FindPayment(ctx context.Context, id string) (Payment, error) {
	var out Payment
	err := c.do(ctx, http.MethodGet, "/v1/payments/payment/"+id, nil, &out)
	return out, err
}

func (c *Client) ExecutePayment(ctx context.Context, id, payerID string) (Payment, error) {
	var out Payment
	body := map[string]string{"payer_id": payerID}
	err := c.do(ctx, http.MethodPost, "/v1/payments/payment/"+id+"/execute", body, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paypal %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
