package ledger

import (
	"sort"
	"sync"

	"github.com/aristath/brickvault/internal/domain"
)

// accountLocks hands out one RWMutex per account. Mutations hold the write
// lock around "fold, validate, append"; balance reads hold the read lock.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.RWMutex)}
}

func (l *accountLocks) get(accountID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.RWMutex{}
		l.locks[accountID] = m
	}
	return m
}

// lockAll write-locks the given accounts in sorted order so that two
// multi-account mutations can never deadlock. Duplicates are locked once.
func (l *accountLocks) lockAll(accountIDs ...string) (unlock func()) {
	ids := append([]string(nil), accountIDs...)
	sort.Strings(ids)

	held := make([]*sync.RWMutex, 0, len(ids))
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		m := l.get(id)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// rlock read-locks a single account
func (l *accountLocks) rlock(accountID string) (unlock func()) {
	m := l.get(accountID)
	m.RLock()
	return m.RUnlock
}

// balanceCache is the materialized balance view. It is only written while the
// owning account's lock is held and can be dropped at any time.
type balanceCache struct {
	mu       sync.RWMutex
	balances map[string]domain.WalletBalance
}

func newBalanceCache() *balanceCache {
	return &balanceCache{balances: make(map[string]domain.WalletBalance)}
}

func (c *balanceCache) get(accountID string) (domain.WalletBalance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.balances[accountID]
	return b, ok
}

func (c *balanceCache) put(b domain.WalletBalance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[b.AccountID] = b
}

func (c *balanceCache) invalidate(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.balances, accountID)
}

func (c *balanceCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances = make(map[string]domain.WalletBalance)
}
