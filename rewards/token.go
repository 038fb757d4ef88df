package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/00anuyh/souvenir/store"
)

// DefaultTokenTTLHours is how long a checkout keeps the lottery open.
const DefaultTokenTTLHours = 24

// Tokens manages the per-user purchase-eligibility token. Validity is
// evaluated lazily against the wall clock; nothing sweeps expired tokens.
type Tokens struct {
	kv  store.KeyValueStore
	now func() time.Time
}

func NewTokens(kv store.KeyValueStore) *Tokens {
	return &Tokens{kv: kv, now: time.Now}
}

// MarkRecentPurchase overwrites the user's active token. Called exactly once
// per confirmed checkout. ttlHours of zero issues an already-expired token.
func (t *Tokens) MarkRecentPurchase(ctx context.Context, uid string, meta map[string]string, ttlHours int) error {
	if uid == "" {
		return ErrValidation
	}
	now := t.now()
	tok := PurchaseToken{
		PurchasedAt: now,
		ExpiresAt:   now.Add(time.Duration(ttlHours) * time.Hour),
		Meta:        meta,
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := t.kv.Set(ctx, tokenKey(uid), raw); err != nil {
		return fmt.Errorf("save purchase token %s: %w", uid, err)
	}
	return nil
}

// Active returns the stored token, or nil when none exists.
func (t *Tokens) Active(ctx context.Context, uid string) (*PurchaseToken, error) {
	if uid == "" {
		return nil, ErrValidation
	}
	raw, ok, err := t.kv.Get(ctx, tokenKey(uid))
	if err != nil {
		return nil, fmt.Errorf("load purchase token %s: %w", uid, err)
	}
	if !ok {
		return nil, nil
	}
	var tok PurchaseToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, nil
	}
	return &tok, nil
}

// HasValidRecentPurchase reports whether a token exists and has not expired.
func (t *Tokens) HasValidRecentPurchase(ctx context.Context, uid string) (bool, error) {
	tok, err := t.Active(ctx, uid)
	if err != nil {
		return false, err
	}
	return tok != nil && tok.Valid(t.now()), nil
}

// ConsumeRecentPurchase destroys the active token. The lottery calls this
// exactly once, when it accepts the session's first card flip.
func (t *Tokens) ConsumeRecentPurchase(ctx context.Context, uid string) error {
	if uid == "" {
		return ErrValidation
	}
	return t.kv.Delete(ctx, tokenKey(uid))
}
