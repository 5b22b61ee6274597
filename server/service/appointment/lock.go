package appointment

import (
	"slices"
	"sync"
)

// customerLocks serializes writes per customer. Entries are reference
// counted and dropped when the last holder unlocks.
type customerLocks struct {
	mu    sync.Mutex
	locks map[int32]*customerLock
}

type customerLock struct {
	sync.Mutex
	refs int
}

func newCustomerLocks() *customerLocks {
	return &customerLocks{locks: make(map[int32]*customerLock)}
}

// Lock acquires the locks of all given customers in ascending order and
// returns the matching unlock func.
func (c *customerLocks) Lock(customerIDs ...int32) (unlock func()) {
	ids := slices.Clone(customerIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	held := make([]*customerLock, 0, len(ids))
	for _, id := range ids {
		c.mu.Lock()
		l, ok := c.locks[id]
		if !ok {
			l = &customerLock{}
			c.locks[id] = l
		}
		l.refs++
		c.mu.Unlock()

		l.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
			c.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(c.locks, ids[i])
			}
			c.mu.Unlock()
		}
	}
}

func (c *customerLocks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}
