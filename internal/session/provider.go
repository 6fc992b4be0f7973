package session

import (
	"context"
	"sync"
)

// MemoryProvider is an in-process IdentityProvider. The CLI feeds it with the
// account from a verified ID token; tests drive it directly.
type MemoryProvider struct {
	// LogoutFunc, when set, performs the remote sign-out. A returned error
	// aborts the sign-out and no LogoutSuccess event is emitted.
	LogoutFunc func(ctx context.Context) error

	mu          sync.Mutex
	accounts    []Account
	active      *Account
	interaction InteractionStatus
	nextID      int
	subscribers map[int]func(Event)
}

// NewMemoryProvider creates a provider that already knows accounts.
func NewMemoryProvider(accounts ...Account) *MemoryProvider {
	return &MemoryProvider{
		accounts:    append([]Account(nil), accounts...),
		subscribers: make(map[int]func(Event)),
	}
}

func (p *MemoryProvider) ActiveAccount() *Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return nil
	}
	cp := *p.active
	return &cp
}

func (p *MemoryProvider) SetActiveAccount(acc *Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acc == nil {
		p.active = nil
		return
	}
	cp := *acc
	p.active = &cp
}

func (p *MemoryProvider) Accounts() []Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Account(nil), p.accounts...)
}

func (p *MemoryProvider) InteractionStatus() InteractionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interaction
}

// SetInteraction changes the reported interaction status.
func (p *MemoryProvider) SetInteraction(s InteractionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interaction = s
}

func (p *MemoryProvider) Subscribe(fn func(Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subscribers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}

// SignIn records acc and emits a login success event.
func (p *MemoryProvider) SignIn(acc Account) {
	p.mu.Lock()
	known := false
	for _, a := range p.accounts {
		if a.HomeAccountID == acc.HomeAccountID {
			known = true
			break
		}
	}
	if !known {
		p.accounts = append(p.accounts, acc)
	}
	p.mu.Unlock()

	p.Emit(Event{Type: EventLoginSuccess, Account: &acc})
}

// Logout forgets all accounts and emits a logout success event.
func (p *MemoryProvider) Logout(ctx context.Context) error {
	if p.LogoutFunc != nil {
		if err := p.LogoutFunc(ctx); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.accounts = nil
	p.active = nil
	p.mu.Unlock()

	p.Emit(Event{Type: EventLogoutSuccess})
	return nil
}

// Emit delivers ev to every subscriber. Subscribers run without the provider
// lock held so they may call back into the provider.
func (p *MemoryProvider) Emit(ev Event) {
	p.mu.Lock()
	subs := make([]func(Event), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
