package store

import "context"

// KeyValueStore is the durable per-key storage the rewards core runs on.
// Set has last-write-wins semantics; losing a stray counter increment under
// concurrent writers is tolerated. SetIfAbsent is the one operation that must
// be atomic: it backs permanent one-shot flags (signup bonus, event win,
// per-order coupon issuance) and must behave like a unique-constraint insert,
// never like a read-then-write.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// SetIfAbsent stores value only when key does not exist yet and reports
	// whether this call claimed the key.
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
}

// Notifier is an optional capability of a store: advisory change
// notifications so UIs can refresh. Delivery is best-effort and must never be
// relied on for correctness.
type Notifier interface {
	// Subscribe registers fn for every Set/Delete whose key starts with
	// prefix and returns a cancel function.
	Subscribe(prefix string, fn func(key string)) (cancel func())
}
