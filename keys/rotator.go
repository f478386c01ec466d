package keys

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrNoKeyAvailable is returned by Acquire when every credential in a pool is
// cooling, retired, or has exhausted its rate window.
var ErrNoKeyAvailable = errors.New("no key available")

// State is the lifecycle state of a single credential within one process.
type State int

const (
	Ready State = iota
	Cooling
	Retired
)

// Outcome is reported back after a credentialed call completes.
type Outcome int

const (
	Ok Outcome = iota
	RateLimited
	AuthFailed
	TransientOther
)

// Credential is one secret in a provider's pool. Owned by the Rotator; callers
// read Secret and hand the credential back via Report.
type Credential struct {
	Provider string
	ID       string
	Secret   string

	state        State
	coolingSince time.Time
	lastUsed     time.Time
	window       []time.Time
}

func (c *Credential) State() State { return c.state }

type pool struct {
	creds  []*Credential
	cursor int
}

// Rotator keeps a pool of equivalent credentials per provider and balances
// usage across them. Single-threaded by design: it is only ever touched from
// the batch loop.
type Rotator struct {
	pools map[string]*pool

	rateLimit int
	window    time.Duration
	cooldown  time.Duration

	now func() time.Time
}

func NewRotator(rateLimit int, window, cooldown time.Duration) *Rotator {
	return &Rotator{
		pools:     make(map[string]*pool),
		rateLimit: rateLimit,
		window:    window,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Seed registers a pool of secrets for a provider. Call once per provider at
// startup.
func (r *Rotator) Seed(provider string, secrets []string) {
	p := &pool{}
	for i, s := range secrets {
		if s == "" {
			continue
		}
		p.creds = append(p.creds, &Credential{
			Provider: provider,
			ID:       fmt.Sprintf("%s-%d", provider, i),
			Secret:   s,
		})
	}
	r.pools[provider] = p
}

// Acquire selects a credential for provider. Cooling credentials whose
// cooldown elapsed are readmitted first; candidates must also have room in
// their trailing rate window. Selection is round-robin over the eligible set.
func (r *Rotator) Acquire(provider string) (*Credential, error) {
	p, ok := r.pools[provider]
	if !ok || len(p.creds) == 0 {
		return nil, fmt.Errorf("%w for provider %s", ErrNoKeyAvailable, provider)
	}

	now := r.now()

	var eligible []*Credential
	for _, c := range p.creds {
		if c.state == Cooling && now.Sub(c.coolingSince) >= r.cooldown {
			c.state = Ready
		}
		if c.state != Ready {
			continue
		}
		if r.windowCount(c, now) >= r.rateLimit {
			continue
		}
		eligible = append(eligible, c)
	}

	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w for provider %s (%d keys in pool)", ErrNoKeyAvailable, provider, len(p.creds))
	}

	c := eligible[p.cursor%len(eligible)]
	p.cursor++

	// Timestamps are monotone per key even if the clock stalls.
	if !now.After(c.lastUsed) {
		now = c.lastUsed.Add(time.Nanosecond)
	}
	c.lastUsed = now
	c.window = append(c.window, now)
	return c, nil
}

// Report records the outcome of a call made with c.
func (r *Rotator) Report(c *Credential, o Outcome) {
	if c == nil {
		return
	}
	switch o {
	case RateLimited:
		c.state = Cooling
		c.coolingSince = r.now()
		log.Printf("[keys] %s rate limited, cooling for %s", c.ID, r.cooldown)
	case AuthFailed:
		c.state = Retired
		log.Printf("[keys] %s auth failed, retired for this process", c.ID)
	case Ok, TransientOther:
		// No state change. Transient errors are the retry executor's call.
	}
}

// windowCount prunes expired timestamps and returns how many uses remain
// inside the trailing window.
func (r *Rotator) windowCount(c *Credential, now time.Time) int {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(c.window) && !c.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		c.window = c.window[i:]
	}
	return len(c.window)
}
