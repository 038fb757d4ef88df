package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/00anuyh/souvenir/store"
)

// Signup bonus granted exactly once per user, at registration.
const (
	SignupBonusPoints  = 1000
	SignupBonusCoupons = 1
)

// Ledger owns the per-user points/coupons/gifts counters. Every mutation is a
// read-modify-write over the injected store, serialized per user by a striped
// mutex; counters accept last-write-wins across processes, the one-shot flags
// do not (they go through SetIfAbsent).
type Ledger struct {
	kv    store.KeyValueStore
	locks [64]sync.Mutex
}

func NewLedger(kv store.KeyValueStore) *Ledger {
	return &Ledger{kv: kv}
}

// userLock returns the stripe for uid. Shared with the coupon ledger, which
// mutates the same account record.
func (l *Ledger) userLock(uid string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(uid))
	return &l.locks[h.Sum32()%uint32(len(l.locks))]
}

// Account returns the user's rewards summary, zeroed when absent. Reading
// never creates the record; the first mutation does.
func (l *Ledger) Account(ctx context.Context, uid string) (Account, error) {
	if uid == "" {
		return Account{}, ErrValidation
	}
	return l.load(ctx, uid)
}

// AddPoints applies delta without clamping. Callers that must not go
// negative use SpendPoints.
func (l *Ledger) AddPoints(ctx context.Context, uid string, delta int) (Account, error) {
	return l.update(ctx, uid, func(a *Account) {
		a.Points += delta
	})
}

// SpendPoints removes up to amount points and returns how many were actually
// removed. The balance never goes negative; a shortfall is visible to the
// caller as spent < amount, not as an error.
func (l *Ledger) SpendPoints(ctx context.Context, uid string, amount int) (int, error) {
	if amount < 0 {
		return 0, ErrValidation
	}
	spent := 0
	_, err := l.update(ctx, uid, func(a *Account) {
		spent = amount
		if a.Points < spent {
			spent = a.Points
		}
		a.Points -= spent
	})
	if err != nil {
		return 0, err
	}
	return spent, nil
}

// AddCoupons adjusts the cached coupon count, flooring at zero on negative
// deltas.
func (l *Ledger) AddCoupons(ctx context.Context, uid string, delta int) (Account, error) {
	return l.update(ctx, uid, func(a *Account) {
		a.Coupons += delta
		if a.Coupons < 0 {
			a.Coupons = 0
		}
	})
}

func (l *Ledger) AddGifts(ctx context.Context, uid string, delta int) (Account, error) {
	return l.update(ctx, uid, func(a *Account) {
		a.Gifts += delta
		if a.Gifts < 0 {
			a.Gifts = 0
		}
	})
}

// GrantSignupBonusOnce credits the signup bonus if this user never received
// it. The flag is claimed atomically before crediting, so concurrent
// registrations of the same user cannot double-grant; repeat calls return
// false with no effect.
func (l *Ledger) GrantSignupBonusOnce(ctx context.Context, uid string) (bool, error) {
	if uid == "" {
		return false, ErrValidation
	}
	claimed, err := l.kv.SetIfAbsent(ctx, signupBonusKey(uid), []byte("1"))
	if err != nil {
		return false, fmt.Errorf("claim signup bonus flag: %w", err)
	}
	if !claimed {
		return false, nil
	}
	if _, err := l.AddPoints(ctx, uid, SignupBonusPoints); err != nil {
		return false, err
	}
	if _, err := l.AddCoupons(ctx, uid, SignupBonusCoupons); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) update(ctx context.Context, uid string, mutate func(*Account)) (Account, error) {
	if uid == "" {
		return Account{}, ErrValidation
	}
	mu := l.userLock(uid)
	mu.Lock()
	defer mu.Unlock()

	acct, err := l.load(ctx, uid)
	if err != nil {
		return Account{}, err
	}
	mutate(&acct)
	if err := l.save(ctx, uid, acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

func (l *Ledger) load(ctx context.Context, uid string) (Account, error) {
	acct := Account{UserID: uid}
	raw, ok, err := l.kv.Get(ctx, rewardsKey(uid))
	if err != nil {
		return acct, fmt.Errorf("load rewards %s: %w", uid, err)
	}
	if !ok {
		return acct, nil
	}
	if err := json.Unmarshal(raw, &acct); err != nil {
		// Corrupt record: fall back to zeroed defaults rather than
		// locking the user out of their ledger.
		return Account{UserID: uid}, nil
	}
	acct.UserID = uid
	return acct, nil
}

func (l *Ledger) save(ctx context.Context, uid string, acct Account) error {
	raw, err := json.Marshal(acct)
	if err != nil {
		return err
	}
	if err := l.kv.Set(ctx, rewardsKey(uid), raw); err != nil {
		return fmt.Errorf("save rewards %s: %w", uid, err)
	}
	return nil
}
