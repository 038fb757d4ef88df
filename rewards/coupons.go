package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/00anuyh/souvenir/store"
)

const (
	// DefaultCouponRate is the per-unit discount rate for order coupons.
	DefaultCouponRate = 0.05
	// DefaultCouponTTLDays is the coupon validity window.
	DefaultCouponTTLDays = 60
	// EventCouponPercent is the rate of the lottery prize coupon.
	EventCouponPercent = 5
)

// IssueResult reports what IssueForOrder appended to the ledger.
type IssueResult struct {
	Issued  int      `json:"issued"`
	Coupons []Coupon `json:"coupons"`
}

// ListOptions filters List. The zero value returns unused, unexpired and
// everything else alike except used coupons.
type ListOptions struct {
	IncludeUsed    bool
	ExcludeExpired bool
}

// Coupons owns the detailed per-user coupon ledger and keeps the cached
// count on the rewards account in step with it.
type Coupons struct {
	kv     store.KeyValueStore
	ledger *Ledger
	now    func() time.Time
}

func NewCoupons(kv store.KeyValueStore, ledger *Ledger) *Coupons {
	return &Coupons{kv: kv, ledger: ledger, now: time.Now}
}

// IssueForOrder issues one fixed-amount coupon per purchased unit: each line
// item yields qty coupons worth floor(unitPrice*rate), units with a zero
// discount are skipped. Coupon ids derive from (orderId, line, unit), so a
// given order always produces the same ids. The order id itself is claimed
// atomically before anything is appended; a retry of the same order returns
// ErrDuplicateOrder and issues nothing.
func (c *Coupons) IssueForOrder(ctx context.Context, uid, orderID string, items []LineItem, rate float64, expiresInDays int) (IssueResult, error) {
	if uid == "" || orderID == "" {
		return IssueResult{}, ErrValidation
	}
	if rate <= 0 {
		rate = DefaultCouponRate
	}
	if expiresInDays <= 0 {
		expiresInDays = DefaultCouponTTLDays
	}

	claimed, err := c.kv.SetIfAbsent(ctx, couponOrderKey(uid, orderID), []byte("1"))
	if err != nil {
		return IssueResult{}, fmt.Errorf("claim order %s: %w", orderID, err)
	}
	if !claimed {
		return IssueResult{}, ErrDuplicateOrder
	}

	now := c.now()
	expiresAt := now.Add(time.Duration(expiresInDays) * 24 * time.Hour)
	percent := int(math.Round(rate * 100))

	var added []Coupon
	for lineIdx, it := range items {
		qty := it.Qty
		if qty < 1 {
			qty = 1
		}
		unitPrice := it.UnitPrice
		if unitPrice < 0 {
			unitPrice = 0
		}
		amount := int(math.Floor(float64(unitPrice) * rate))
		if amount <= 0 {
			continue
		}
		name := it.Name
		if name == "" {
			name = "상품"
		}
		for unit := 0; unit < qty; unit++ {
			added = append(added, Coupon{
				ID:        fmt.Sprintf("%s-%d-%d", orderID, lineIdx+1, unit+1),
				Title:     fmt.Sprintf("%s %d%% 쿠폰", name, percent),
				Kind:      ValueFixed,
				Amount:    amount,
				Percent:   percent,
				OrderID:   orderID,
				IssuedAt:  now,
				ExpiresAt: expiresAt,
				Meta: map[string]string{
					"product_id": it.ProductID,
					"unit_price": fmt.Sprintf("%d", unitPrice),
				},
			})
		}
	}

	if len(added) == 0 {
		return IssueResult{Coupons: []Coupon{}}, nil
	}
	if err := c.append(ctx, uid, added...); err != nil {
		// Nothing was issued; release the order claim so a retry can.
		_ = c.kv.Delete(ctx, couponOrderKey(uid, orderID))
		return IssueResult{}, err
	}
	return IssueResult{Issued: len(added), Coupons: added}, nil
}

// GrantEventCoupon appends one percent-valued coupon not tied to any order.
// This is the lottery prize path.
func (c *Coupons) GrantEventCoupon(ctx context.Context, uid string) (*Coupon, error) {
	if uid == "" {
		return nil, ErrValidation
	}
	now := c.now()
	coupon := Coupon{
		ID:        "EVT-" + uuid.NewString(),
		Title:     fmt.Sprintf("이벤트 %d%% 쿠폰", EventCouponPercent),
		Kind:      ValuePercent,
		Percent:   EventCouponPercent,
		IssuedAt:  now,
		ExpiresAt: now.Add(DefaultCouponTTLDays * 24 * time.Hour),
		Meta:      map[string]string{"source": "event"},
	}
	if err := c.append(ctx, uid, coupon); err != nil {
		return nil, err
	}
	return &coupon, nil
}

// List is a pure view over the coupon ledger.
func (c *Coupons) List(ctx context.Context, uid string, opts ListOptions) ([]Coupon, error) {
	if uid == "" {
		return nil, ErrValidation
	}
	ledger, err := c.loadLedger(ctx, uid)
	if err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]Coupon, 0, len(ledger))
	for _, coupon := range ledger {
		if !opts.IncludeUsed && coupon.Used {
			continue
		}
		if opts.ExcludeExpired && coupon.Expired(now) {
			continue
		}
		out = append(out, coupon)
	}
	return out, nil
}

// MarkUsed flips a coupon to used and decrements the cached count (floored
// at zero). An unknown id returns ErrNotFound, a second redemption
// ErrAlreadyUsed; neither mutates anything.
func (c *Coupons) MarkUsed(ctx context.Context, uid, couponID string) (bool, error) {
	if uid == "" || couponID == "" {
		return false, ErrValidation
	}
	mu := c.ledger.userLock(uid)
	mu.Lock()
	defer mu.Unlock()

	ledger, err := c.loadLedger(ctx, uid)
	if err != nil {
		return false, err
	}
	idx := -1
	for i := range ledger {
		if ledger[i].ID == couponID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, ErrNotFound
	}
	if ledger[idx].Used {
		return false, ErrAlreadyUsed
	}
	usedAt := c.now()
	ledger[idx].Used = true
	ledger[idx].UsedAt = &usedAt
	if err := c.saveLedger(ctx, uid, ledger); err != nil {
		return false, err
	}
	if err := c.bumpCountLocked(ctx, uid, -1); err != nil {
		return false, err
	}
	return true, nil
}

// Redeem marks the coupon used and resolves its discount against the order
// subtotal. Percent coupons are valued here, at redemption, not at issuance.
func (c *Coupons) Redeem(ctx context.Context, uid, couponID string, subtotal int) (int, error) {
	ledger, err := c.loadLedger(ctx, uid)
	if err != nil {
		return 0, err
	}
	var target *Coupon
	for i := range ledger {
		if ledger[i].ID == couponID {
			target = &ledger[i]
			break
		}
	}
	if target == nil {
		return 0, ErrNotFound
	}
	if _, err := c.MarkUsed(ctx, uid, couponID); err != nil {
		return 0, err
	}
	return target.Discount(subtotal), nil
}

// SyncLedgerWithCount reconciles the cached coupon count with the detailed
// ledger. Legacy accounts counted coupons before the ledger existed; the gap
// is closed with generic placeholder coupons. In the other direction the
// cached count is lowered to the ledger length. Meant to run once when the
// user opens their coupon view.
func (c *Coupons) SyncLedgerWithCount(ctx context.Context, uid string) ([]Coupon, error) {
	if uid == "" {
		return nil, ErrValidation
	}
	mu := c.ledger.userLock(uid)
	mu.Lock()
	defer mu.Unlock()

	ledger, err := c.loadLedger(ctx, uid)
	if err != nil {
		return nil, err
	}
	acct, err := c.ledger.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	diff := acct.Coupons - len(ledger)

	switch {
	case diff > 0:
		now := c.now()
		expiresAt := now.Add(DefaultCouponTTLDays * 24 * time.Hour)
		for i := 0; i < diff; i++ {
			ledger = append(ledger, Coupon{
				ID:        fmt.Sprintf("MIG-%d-%d", now.UnixMilli(), i),
				Title:     fmt.Sprintf("이벤트 %d%% 쿠폰", EventCouponPercent),
				Kind:      ValuePercent,
				Percent:   EventCouponPercent,
				IssuedAt:  now,
				ExpiresAt: expiresAt,
				Meta:      map[string]string{"source": "migrated"},
			})
		}
		if err := c.saveLedger(ctx, uid, ledger); err != nil {
			return nil, err
		}
	case diff < 0:
		if err := c.bumpCountLocked(ctx, uid, diff); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

func (c *Coupons) append(ctx context.Context, uid string, coupons ...Coupon) error {
	mu := c.ledger.userLock(uid)
	mu.Lock()
	defer mu.Unlock()

	ledger, err := c.loadLedger(ctx, uid)
	if err != nil {
		return err
	}
	ledger = append(ledger, coupons...)
	if err := c.saveLedger(ctx, uid, ledger); err != nil {
		return err
	}
	// The entries are durable at this point. A failed count bump is drift,
	// not loss; SyncLedgerWithCount heals it on the next coupon view.
	_ = c.bumpCountLocked(ctx, uid, len(coupons))
	return nil
}

// bumpCountLocked adjusts the cached coupon count, flooring at zero. The
// caller must hold the user's stripe lock.
func (c *Coupons) bumpCountLocked(ctx context.Context, uid string, delta int) error {
	acct, err := c.ledger.load(ctx, uid)
	if err != nil {
		return err
	}
	acct.Coupons += delta
	if acct.Coupons < 0 {
		acct.Coupons = 0
	}
	return c.ledger.save(ctx, uid, acct)
}

func (c *Coupons) loadLedger(ctx context.Context, uid string) ([]Coupon, error) {
	raw, ok, err := c.kv.Get(ctx, couponsKey(uid))
	if err != nil {
		return nil, fmt.Errorf("load coupons %s: %w", uid, err)
	}
	if !ok {
		return nil, nil
	}
	var ledger []Coupon
	if err := json.Unmarshal(raw, &ledger); err != nil {
		return nil, nil
	}
	return ledger, nil
}

func (c *Coupons) saveLedger(ctx context.Context, uid string, ledger []Coupon) error {
	raw, err := json.Marshal(ledger)
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, couponsKey(uid), raw); err != nil {
		return fmt.Errorf("save coupons %s: %w", uid, err)
	}
	return nil
}
