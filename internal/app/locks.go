package app

import (
	"sort"
	"sync"
)

// accountLockTable hands out one mutex per account number so transfers
// touching the same account serialize while disjoint pairs run in parallel.
// Locks are acquired in sorted order, which rules out lock-order deadlock
// between two transfers that touch the same pair of accounts from opposite
// directions.
//
// Entries are never evicted: the table grows by one small mutex per account
// number ever touched by a transfer in this process. TODO: switch to
// refcounted entries if memory profiles ever show the table mattering.
type accountLockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLockTable() *accountLockTable {
	return &accountLockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *accountLockTable) lockFor(number string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[number]
	if !ok {
		l = &sync.Mutex{}
		t.locks[number] = l
	}
	return l
}

// acquire locks every distinct account number in sorted order and returns a
// release function. Self-transfers pass the same number twice and lock once.
func (t *accountLockTable) acquire(numbers ...string) func() {
	distinct := make([]string, 0, len(numbers))
	seen := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		if !seen[n] {
			seen[n] = true
			distinct = append(distinct, n)
		}
	}
	sort.Strings(distinct)

	held := make([]*sync.Mutex, 0, len(distinct))
	for _, n := range distinct {
		l := t.lockFor(n)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
