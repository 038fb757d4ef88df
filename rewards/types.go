package rewards

import "time"

// Account is the per-user rewards summary. Coupons is a cached count of the
// detailed coupon ledger; SyncLedgerWithCount reconciles the two.
type Account struct {
	UserID  string `json:"user_id"`
	Points  int    `json:"points"`
	Coupons int    `json:"coupons"`
	Gifts   int    `json:"gifts"`
}

// ValueKind tags how a coupon's discount is computed.
type ValueKind string

const (
	// ValueFixed discounts a fixed amount in won.
	ValueFixed ValueKind = "fixed"
	// ValuePercent discounts a percentage of the order subtotal, resolved
	// only at redemption time.
	ValuePercent ValueKind = "percent"
)

// Coupon is one entry of a user's coupon ledger. Coupons are never deleted;
// redemption flips Used once.
type Coupon struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Kind      ValueKind         `json:"kind"`
	Amount    int               `json:"amount,omitempty"`  // fixed discount, won
	Percent   int               `json:"percent,omitempty"` // percent discount, whole percent
	OrderID   string            `json:"order_id,omitempty"`
	IssuedAt  time.Time         `json:"issued_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	Used      bool              `json:"used"`
	UsedAt    *time.Time        `json:"used_at,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

func (c Coupon) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Discount resolves the coupon's value against an order subtotal. Fixed
// coupons ignore the subtotal; percent coupons are computed here and nowhere
// earlier.
func (c Coupon) Discount(subtotal int) int {
	switch c.Kind {
	case ValuePercent:
		if subtotal <= 0 {
			return 0
		}
		return subtotal * c.Percent / 100
	default:
		return c.Amount
	}
}

// PurchaseToken proves a recent completed checkout. A user has at most one
// active token; it is destroyed on first lottery entry or by natural expiry.
type PurchaseToken struct {
	PurchasedAt time.Time         `json:"purchased_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Meta        map[string]string `json:"meta,omitempty"`
}

func (t PurchaseToken) Valid(now time.Time) bool {
	return t.ExpiresAt.After(now)
}

// AttemptRecord is the persisted outcome of a lottery card flip, kept for the
// profile page. Each new attempt overwrites the previous record.
type AttemptRecord struct {
	Won       bool      `json:"won"`
	PrizeName string    `json:"prize_name,omitempty"`
	OpenedAt  time.Time `json:"opened_at"`
	Attempt   int       `json:"attempt"`
	Source    string    `json:"source"`
}

// LineItem is one order line as supplied by the checkout flow.
type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int    `json:"unit_price"`
	Qty       int    `json:"qty"`
}
