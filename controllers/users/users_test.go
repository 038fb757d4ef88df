package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/00anuyh/souvenir/store"
	"github.com/00anuyh/souvenir/utils"
)

// failingSetStore rejects every Set on keys under prefix.
type failingSetStore struct {
	*store.Memory
	prefix string
}

func (s *failingSetStore) Set(ctx context.Context, key string, value []byte) error {
	if strings.HasPrefix(key, s.prefix) {
		return errors.New("store unavailable")
	}
	return s.Memory.Set(ctx, key, value)
}

func authedRequest(method, target string, body []byte, userID uint) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := context.WithValue(req.Context(), utils.UserIDKey, userID)
	return req.WithContext(ctx)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCheckoutHandlerIssuesCouponsOnce(t *testing.T) {
	c := NewController(store.NewMemory())
	body := []byte(`{"order_id":"ORD1","items":[{"product_id":"p1","name":"달 무드등","unit_price":10000,"qty":2}]}`)

	rec := httptest.NewRecorder()
	c.CheckoutHandler(rec, authedRequest(http.MethodPost, "/v1/users/checkout", body, 7))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.Message)
	}

	// The same order id a second time must be refused without side effects.
	rec = httptest.NewRecorder()
	c.CheckoutHandler(rec, authedRequest(http.MethodPost, "/v1/users/checkout", body, 7))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate order, got %d", rec.Code)
	}

	acct, err := c.Ledger.Account(context.Background(), rewardsUID(7))
	if err != nil {
		t.Fatal(err)
	}
	if acct.Coupons != 2 {
		t.Fatalf("expected 2 coupons after retry, got %d", acct.Coupons)
	}
}

func TestCheckoutHandlerReportsLotteryWindow(t *testing.T) {
	body := []byte(`{"order_id":"ORD1","items":[{"unit_price":10000,"qty":1}]}`)

	c := NewController(store.NewMemory())
	rec := httptest.NewRecorder()
	c.CheckoutHandler(rec, authedRequest(http.MethodPost, "/v1/users/checkout", body, 7))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			LotteryOpen *bool `json:"lottery_open"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.LotteryOpen == nil || !*resp.Data.LotteryOpen {
		t.Fatal("expected lottery_open true on a clean checkout")
	}

	// A failed token write still completes the checkout, but the client
	// is told the lottery window did not open.
	c = NewController(&failingSetStore{Memory: store.NewMemory(), prefix: "purchaseToken:"})
	rec = httptest.NewRecorder()
	c.CheckoutHandler(rec, authedRequest(http.MethodPost, "/v1/users/checkout", body, 7))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite token failure, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.LotteryOpen == nil || *resp.Data.LotteryOpen {
		t.Fatal("expected lottery_open false when the token write fails")
	}
}

func TestCheckoutHandlerRejectsEmptyOrder(t *testing.T) {
	c := NewController(store.NewMemory())
	rec := httptest.NewRecorder()
	c.CheckoutHandler(rec, authedRequest(http.MethodPost, "/v1/users/checkout", []byte(`{"items":[]}`), 7))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutHandlerRequiresAuth(t *testing.T) {
	c := NewController(store.NewMemory())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/users/checkout", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.CheckoutHandler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLotteryDrawWithoutPurchase(t *testing.T) {
	c := NewController(store.NewMemory())
	rec := httptest.NewRecorder()
	c.LotteryDrawHandler(rec, authedRequest(http.MethodPost, "/v1/users/lottery/draw", []byte(`{"card":0}`), 7))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without a recent purchase, got %d", rec.Code)
	}
}

func TestLotteryFlowAfterCheckout(t *testing.T) {
	c := NewController(store.NewMemory())
	// Int63()==0 drives Float64 to 0.0, below the win threshold.
	c.Lottery.SetRand(rand.New(zeroSource{}))

	body := []byte(`{"order_id":"ORD1","items":[{"unit_price":10000,"qty":1}]}`)
	rec := httptest.NewRecorder()
	c.CheckoutHandler(rec, authedRequest(http.MethodPost, "/v1/users/checkout", body, 7))
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c.LotteryStatusHandler(rec, authedRequest(http.MethodGet, "/v1/users/lottery", nil, 7))
	if rec.Code != http.StatusOK {
		t.Fatalf("status failed: %d", rec.Code)
	}
	var status struct {
		Data struct {
			State string `json:"state"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Data.State != "eligible" {
		t.Fatalf("expected eligible after checkout, got %q", status.Data.State)
	}

	rec = httptest.NewRecorder()
	c.LotteryDrawHandler(rec, authedRequest(http.MethodPost, "/v1/users/lottery/draw", []byte(`{"card":1}`), 7))
	if rec.Code != http.StatusOK {
		t.Fatalf("draw failed: %d %s", rec.Code, rec.Body.String())
	}
	var draw struct {
		Data struct {
			Won   bool   `json:"won"`
			State string `json:"state"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &draw); err != nil {
		t.Fatal(err)
	}
	if !draw.Data.Won {
		t.Fatal("expected a forced win")
	}
	if draw.Data.State != "closed" {
		t.Fatalf("expected closed session after a win, got %q", draw.Data.State)
	}

	acct, err := c.Ledger.Account(context.Background(), rewardsUID(7))
	if err != nil {
		t.Fatal(err)
	}
	if acct.Gifts != 1 {
		t.Fatalf("expected 1 gift after the win, got %d", acct.Gifts)
	}
}

func TestSpendPointsHandlerClampsToBalance(t *testing.T) {
	c := NewController(store.NewMemory())
	ctx := context.Background()
	if _, err := c.Ledger.AddPoints(ctx, rewardsUID(7), 300); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c.SpendPointsHandler(rec, authedRequest(http.MethodPost, "/v1/users/points/spend", []byte(`{"amount":1000}`), 7))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Spent  int `json:"spent"`
			Points int `json:"points"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.Spent != 300 || resp.Data.Points != 0 {
		t.Fatalf("expected clamped spend of 300 and zero balance, got %+v", resp.Data)
	}
}

// zeroSource forces every flip to win: Float64 becomes 0.0.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}
