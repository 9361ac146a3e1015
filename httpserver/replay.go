package httpserver

import (
	"sync"

	"github.com/ruteri/vanity-name-registrar/interfaces"
)

type nonceKey struct {
	signer interfaces.Address
	nonce  uint64
}

// replayGuard remembers (signer, nonce) pairs until their deadline passes.
// Requests past their deadline are rejected before reaching the guard, so
// forgetting them afterwards cannot admit a replay.
type replayGuard struct {
	mu       sync.Mutex
	seen     map[nonceKey]int64
	prunedAt int64
}

func newReplayGuard() *replayGuard {
	return &replayGuard{seen: make(map[nonceKey]int64)}
}

// use records the nonce and reports false if it was already recorded.
func (g *replayGuard) use(signer interfaces.Address, nonce uint64, deadline, now int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if now > g.prunedAt {
		for key, d := range g.seen {
			if d < now {
				delete(g.seen, key)
			}
		}
		g.prunedAt = now
	}

	key := nonceKey{signer: signer, nonce: nonce}
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = deadline
	return true
}

func (g *replayGuard) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
