package command

import (
	"sync"
	"time"
)

// promptTTL is how long a pending prompt waits for the user's next message.
const promptTTL = 60 * time.Second

// pendingPrompt is one awaited follow-up from a user: the field the bot
// asked for plus whatever was collected in earlier steps.
type pendingPrompt struct {
	Field     string
	Data      map[string]string
	ExpiresAt time.Time
}

// prompts tracks short-lived pending prompts keyed by user id. Each user
// has at most one pending prompt; asking again replaces it.
type prompts struct {
	mu  sync.Mutex
	m   map[int64]pendingPrompt
	ttl time.Duration
	now func() time.Time
}

func newPrompts() *prompts {
	return &prompts{
		m:   make(map[int64]pendingPrompt),
		ttl: promptTTL,
		now: time.Now,
	}
}

// Ask records that the bot is waiting for `field` from the user.
func (p *prompts) Ask(userID int64, field string, data map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if data == nil {
		data = make(map[string]string)
	}
	p.m[userID] = pendingPrompt{
		Field:     field,
		Data:      data,
		ExpiresAt: p.now().Add(p.ttl),
	}
}

// Take removes and returns the user's pending prompt. Expired prompts are
// dropped and reported as absent.
func (p *prompts) Take(userID int64) (pendingPrompt, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.m[userID]
	if !ok {
		return pendingPrompt{}, false
	}
	delete(p.m, userID)
	if p.now().After(pr.ExpiresAt) {
		return pendingPrompt{}, false
	}
	return pr, true
}

// Waiting reports whether the user has a live pending prompt.
func (p *prompts) Waiting(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.m[userID]
	if !ok {
		return false
	}
	if p.now().After(pr.ExpiresAt) {
		delete(p.m, userID)
		return false
	}
	return true
}

func (p *prompts) Clear(userID int64) {
	p.mu.Lock()
	delete(p.m, userID)
	p.mu.Unlock()
}
