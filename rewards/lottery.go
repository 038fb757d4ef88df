package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/00anuyh/souvenir/store"
)

const (
	// WinRate is the Bernoulli win probability of a single card flip.
	WinRate = 0.5
	// CardCount is how many letter cards a session shows.
	CardCount = 6
	// PrizeName is recorded on winning attempts.
	PrizeName = "present_for_you"
	// sessionCap bounds the in-process session map; closed sessions are
	// swept once it fills up.
	sessionCap = 4096
	// resultSource tags persisted attempt records.
	resultSource = "event_letters_v1"
)

// State of a user's lottery session.
type State string

const (
	// StateBlocked is terminal: the user has won once, ever.
	StateBlocked State = "blocked"
	// StateIneligible means no valid purchase token and no open session.
	StateIneligible State = "ineligible"
	// StateEligible means a valid token exists and no card was opened yet.
	StateEligible State = "eligible"
	// StateSecondAllowed follows a losing first flip; exactly one more,
	// different card may be opened.
	StateSecondAllowed State = "second_allowed"
	// StateClosed is terminal for the session. A new session needs a new
	// valid purchase token.
	StateClosed State = "closed"
)

// Status is the engine's view for the lottery UI.
type Status struct {
	State       State          `json:"state"`
	EverWon     bool           `json:"ever_won"`
	OpenedCards []int          `json:"opened_cards"`
	LastResult  *AttemptRecord `json:"last_result,omitempty"`
}

// DrawResult reports one accepted card flip.
type DrawResult struct {
	Card    int     `json:"card"`
	Attempt int     `json:"attempt"`
	Won     bool    `json:"won"`
	Prize   *Coupon `json:"prize,omitempty"`
	State   State   `json:"state"`
}

type session struct {
	firstCard  int
	firstWon   bool
	secondDone bool
	consumed   bool
	awarding   bool
	closed     bool
	opened     map[int]bool
}

// Lottery runs the letter-card reward game. The prize is granted at most
// once per user, ever: an in-process guard stops synchronous re-entry and an
// atomic claim of the win flag stops concurrent requests from other tabs or
// processes. Session state is in-memory; durable state (win flag, attempt
// records) lives in the store.
type Lottery struct {
	kv      store.KeyValueStore
	ledger  *Ledger
	coupons *Coupons
	tokens  *Tokens

	mu       sync.Mutex
	sessions map[string]*session
	rng      *rand.Rand
	now      func() time.Time
}

func NewLottery(kv store.KeyValueStore, ledger *Ledger, coupons *Coupons, tokens *Tokens) *Lottery {
	return &Lottery{
		kv:       kv,
		ledger:   ledger,
		coupons:  coupons,
		tokens:   tokens,
		sessions: make(map[string]*session),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// SetRand replaces the draw source. Tests inject a deterministic one.
func (e *Lottery) SetRand(r *rand.Rand) {
	e.mu.Lock()
	e.rng = r
	e.mu.Unlock()
}

// Status reports the current state without advancing it.
func (e *Lottery) Status(ctx context.Context, uid string) (Status, error) {
	if uid == "" {
		return Status{}, ErrValidation
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	everWon, err := e.everWon(ctx, uid)
	if err != nil {
		return Status{}, err
	}
	st := Status{EverWon: everWon, OpenedCards: []int{}}
	st.LastResult, _ = e.lastResult(ctx, uid)
	if everWon {
		st.State = StateBlocked
		return st, nil
	}

	s := e.sessions[uid]
	if s != nil && s.closed {
		// A new valid token supersedes the finished session; the user is
		// eligible again, exactly as Draw would treat them.
		valid, err := e.tokens.HasValidRecentPurchase(ctx, uid)
		if err != nil {
			return Status{}, err
		}
		if valid {
			delete(e.sessions, uid)
			s = nil
		}
	}
	if s != nil {
		for card := range s.opened {
			st.OpenedCards = append(st.OpenedCards, card)
		}
	}
	switch {
	case s != nil && s.closed:
		st.State = StateClosed
	case s != nil && s.firstCard >= 0:
		st.State = StateSecondAllowed
	default:
		valid, err := e.tokens.HasValidRecentPurchase(ctx, uid)
		if err != nil {
			return Status{}, err
		}
		if valid {
			st.State = StateEligible
		} else {
			st.State = StateIneligible
		}
	}
	return st, nil
}

// Draw opens one card and advances the session. Entry is refused for users
// who ever won, then for sessions without a valid purchase token. The token
// is consumed exactly once, on the first accepted flip; a second flip (only
// after a losing first, only a different card) neither re-checks nor
// re-consumes it. A win on either attempt closes the session after the
// one-time grant.
func (e *Lottery) Draw(ctx context.Context, uid string, card int) (*DrawResult, error) {
	if uid == "" {
		return nil, ErrValidation
	}
	if card < 0 || card >= CardCount {
		return nil, fmt.Errorf("%w: card %d out of range", ErrValidation, card)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	everWon, err := e.everWon(ctx, uid)
	if err != nil {
		return nil, err
	}
	if everWon {
		return nil, ErrAlreadyWon
	}

	s := e.sessions[uid]
	if s != nil && s.closed {
		// A closed session only reopens behind a brand-new valid token.
		valid, err := e.tokens.HasValidRecentPurchase(ctx, uid)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, ErrTokenMissing
		}
		s = nil
	}
	if s == nil {
		if len(e.sessions) >= sessionCap {
			e.pruneClosedLocked()
		}
		s = &session{firstCard: -1, opened: make(map[int]bool)}
		e.sessions[uid] = s
	}

	if s.firstCard < 0 {
		return e.drawFirst(ctx, uid, s, card)
	}
	return e.drawSecond(ctx, uid, s, card)
}

func (e *Lottery) drawFirst(ctx context.Context, uid string, s *session, card int) (*DrawResult, error) {
	tok, err := e.tokens.Active(ctx, uid)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, ErrTokenMissing
	}
	if !tok.Valid(e.now()) {
		return nil, ErrTokenExpired
	}

	// Consume exactly once, even if the handler re-enters before the flip
	// finishes.
	if !s.consumed {
		s.consumed = true
		if err := e.tokens.ConsumeRecentPurchase(ctx, uid); err != nil {
			return nil, err
		}
	}

	won := e.rng.Float64() < WinRate
	s.firstCard = card
	s.firstWon = won
	s.opened[card] = true
	e.persistResult(ctx, uid, 1, won)

	res := &DrawResult{Card: card, Attempt: 1, Won: won}
	if won {
		res.Prize, err = e.awardOnce(ctx, uid, s)
		if err != nil {
			return nil, err
		}
		s.closed = true
		res.State = StateClosed
		return res, nil
	}
	res.State = StateSecondAllowed
	return res, nil
}

func (e *Lottery) drawSecond(ctx context.Context, uid string, s *session, card int) (*DrawResult, error) {
	if s.firstWon || s.secondDone {
		return nil, ErrTokenMissing
	}
	if s.opened[card] {
		return nil, fmt.Errorf("%w: card %d already opened", ErrValidation, card)
	}

	won := e.rng.Float64() < WinRate
	s.secondDone = true
	s.closed = true
	s.opened[card] = true
	e.persistResult(ctx, uid, 2, won)

	res := &DrawResult{Card: card, Attempt: 2, Won: won, State: StateClosed}
	if won {
		var err error
		res.Prize, err = e.awardOnce(ctx, uid, s)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// awardOnce grants the prize at most once per user, ever. The session flag
// stops a synchronous double call; the atomic claim of the win flag stops
// everything else, including another process. When the claim loses, the
// grant silently no-ops.
func (e *Lottery) awardOnce(ctx context.Context, uid string, s *session) (*Coupon, error) {
	if s.awarding {
		return nil, nil
	}
	s.awarding = true
	defer func() { s.awarding = false }()

	claimed, err := e.kv.SetIfAbsent(ctx, everWonKey(uid), []byte("1"))
	if err != nil {
		return nil, fmt.Errorf("claim win flag %s: %w", uid, err)
	}
	if !claimed {
		return nil, nil
	}
	if _, err := e.ledger.AddGifts(ctx, uid, 1); err != nil {
		return nil, err
	}
	return e.coupons.GrantEventCoupon(ctx, uid)
}

// pruneClosedLocked drops finished sessions from the map. Caller holds e.mu.
func (e *Lottery) pruneClosedLocked() {
	for uid, s := range e.sessions {
		if s.closed {
			delete(e.sessions, uid)
		}
	}
}

func (e *Lottery) everWon(ctx context.Context, uid string) (bool, error) {
	_, ok, err := e.kv.Get(ctx, everWonKey(uid))
	if err != nil {
		return false, fmt.Errorf("load win flag %s: %w", uid, err)
	}
	return ok, nil
}

func (e *Lottery) lastResult(ctx context.Context, uid string) (*AttemptRecord, error) {
	raw, ok, err := e.kv.Get(ctx, eventResultKey(uid))
	if err != nil || !ok {
		return nil, err
	}
	var rec AttemptRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, nil
	}
	return &rec, nil
}

// persistResult writes the attempt record for the profile page. Best-effort:
// a storage hiccup here must not void an already-drawn outcome.
func (e *Lottery) persistResult(ctx context.Context, uid string, attempt int, won bool) {
	rec := AttemptRecord{
		Won:      won,
		OpenedAt: e.now(),
		Attempt:  attempt,
		Source:   resultSource,
	}
	if won {
		rec.PrizeName = PrizeName
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_ = e.kv.Set(ctx, eventResultKey(uid), raw)
}
