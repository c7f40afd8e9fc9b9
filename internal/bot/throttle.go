package bot

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const throttleCacheSize = 10000

// throttle remembers users for one interval after an accepted message.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	seen     *expirable.LRU[int64, struct{}]
}

func newThrottle(interval time.Duration) *throttle {
	t := &throttle{}
	t.set(interval)
	return t
}

func (t *throttle) set(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen != nil && t.interval == interval {
		return
	}
	t.interval = interval
	t.seen = nil
	if interval > 0 {
		t.seen = expirable.NewLRU[int64, struct{}](throttleCacheSize, nil, interval)
	}
}

func (t *throttle) allow(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen == nil {
		return true
	}
	// Get, unlike Contains, ignores entries past their TTL.
	if _, ok := t.seen.Get(userID); ok {
		return false
	}
	t.seen.Add(userID, struct{}{})
	return true
}
