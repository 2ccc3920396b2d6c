package engine

import (
	"fmt"
	"strings"
	"sync"
)

// Credential is the active token together with its slot in the pool.
// Only the slot is safe to log or persist.
type Credential struct {
	Slot  int
	token string
}

// Token returns the raw authorization token.
func (c Credential) Token() string { return c.token }

// String identifies the credential without exposing the token.
func (c Credential) String() string {
	return fmt.Sprintf("token#%d", c.Slot)
}

// TokenPool cycles through a fixed, ordered set of credentials.
type TokenPool struct {
	mu     sync.Mutex
	tokens []string
	cursor int
}

// NewTokenPool builds a pool from tokens. Blank entries are ignored and an
// empty pool is rejected.
func NewTokenPool(tokens []string) (*TokenPool, error) {
	clean := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		clean = append(clean, token)
	}
	if len(clean) == 0 {
		return nil, &ConfigurationError{Reason: "at least one API token is required"}
	}
	return &TokenPool{tokens: clean}, nil
}

// Current returns the active credential.
func (p *TokenPool) Current() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.credential()
}

// Rotate advances to the next credential, wrapping after the last one.
func (p *TokenPool) Rotate() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = (p.cursor + 1) % len(p.tokens)
	return p.credential()
}

// RotateFrom advances only if slot is still the active credential, so that
// callers racing on the same exhausted credential rotate once.
func (p *TokenPool) RotateFrom(slot int) Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor == slot {
		p.cursor = (p.cursor + 1) % len(p.tokens)
	}
	return p.credential()
}

// Size returns the number of credentials.
func (p *TokenPool) Size() int {
	return len(p.tokens)
}

// Index returns the active slot.
func (p *TokenPool) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

func (p *TokenPool) credential() Credential {
	return Credential{Slot: p.cursor, token: p.tokens[p.cursor]}
}
