package utils

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	orderMu    sync.Mutex
	seededRand = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// GenerateOrderID produces a server-side order id for checkouts that arrive
// without one. The id doubles as the deterministic base for that order's
// coupon ids, so it must be unique per call.
func GenerateOrderID(userID uint) string {
	orderMu.Lock()
	defer orderMu.Unlock()

	nanoPart := time.Now().UnixNano() % 1000000
	randPart := seededRand.Intn(900) + 100
	return fmt.Sprintf("SOV-%06d%03d%d", nanoPart, randPart, userID)
}
