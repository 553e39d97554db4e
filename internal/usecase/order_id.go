package usecase

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// maxOrderLinkIDLen is the exchange limit for client order ids.
const maxOrderLinkIDLen = 36

const (
	slotOpen = "open"
	// fallbackSuffix marks the market close that replaces a rejected exit.
	fallbackSuffix = "m"
)

func exitSlot(i int) string {
	return "exit" + strconv.Itoa(i+1)
}

// OrderIDGenerator hands out attempt epochs. Epochs are unix milliseconds
// bumped so that they strictly increase, even across a clock step back
// once Observe has seen the persisted epoch.
type OrderIDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func NewOrderIDGenerator(now func() time.Time) *OrderIDGenerator {
	if now == nil {
		now = time.Now
	}
	return &OrderIDGenerator{now: now}
}

func (g *OrderIDGenerator) NextAttempt() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	epoch := g.now().UnixMilli()
	if epoch <= g.last {
		epoch = g.last + 1
	}
	g.last = epoch
	return epoch
}

// Observe makes sure future epochs are greater than epoch.
func (g *OrderIDGenerator) Observe(epoch int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if epoch > g.last {
		g.last = epoch
	}
}

// OrderID builds the client order id for a slot of an attempt. The symbol
// is truncated if the id would exceed the exchange limit.
func OrderID(symbol, slot string, epoch int64) string {
	rest := fmt.Sprintf("-%s-%d", slot, epoch)
	if len(symbol)+len(rest) > maxOrderLinkIDLen {
		symbol = symbol[:maxOrderLinkIDLen-len(rest)]
	}
	return symbol + rest
}
