package identity

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrNoProvider is returned when the adapter was built without a provider.
var ErrNoProvider = errors.New("identity provider is not configured")

// Adapter owns the current session and fans session transitions out to at most
// one subscriber. Operations never update the subscriber synchronously: a
// successful SignIn returns before the subscriber observes the new user.
type Adapter struct {
	provider Provider
	logger   *zap.Logger

	mu      sync.Mutex
	current *User
	sub     *subscription
}

// NewAdapter creates an Adapter with no signed-in user.
func NewAdapter(provider Provider, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{provider: provider, logger: logger}
}

// SignUp registers a new account. The subscriber observes the new session.
func (a *Adapter) SignUp(ctx context.Context, email, password string) error {
	if a.provider == nil {
		return ErrNoProvider
	}
	user, err := a.provider.SignUp(ctx, email, password)
	if err != nil {
		a.logger.Warn("Sign up failed", zap.String("kind", string(KindOf(err))), zap.Error(err))
		return err
	}
	a.transition(user)
	return nil
}

// SignIn authenticates an existing account. The subscriber observes the new session.
func (a *Adapter) SignIn(ctx context.Context, email, password string) error {
	if a.provider == nil {
		return ErrNoProvider
	}
	user, err := a.provider.SignIn(ctx, email, password)
	if err != nil {
		a.logger.Warn("Sign in failed", zap.String("kind", string(KindOf(err))), zap.Error(err))
		return err
	}
	a.transition(user)
	return nil
}

// SignOut ends the current session. On failure the session is left unchanged.
func (a *Adapter) SignOut(ctx context.Context) error {
	if a.provider == nil {
		return ErrNoProvider
	}
	current := a.Current()
	if err := a.provider.SignOut(ctx, current); err != nil {
		a.logger.Warn("Sign out failed", zap.Error(err))
		return err
	}
	a.transition(nil)
	return nil
}

// SendPasswordReset reports whether the reset request was accepted. It never
// reveals whether email belongs to a registered account.
func (a *Adapter) SendPasswordReset(ctx context.Context, email string) (bool, error) {
	if a.provider == nil {
		return false, ErrNoProvider
	}
	if err := a.provider.SendPasswordReset(ctx, email); err != nil {
		a.logger.Warn("Password reset failed", zap.Error(err))
		return false, err
	}
	return true, nil
}

// Current returns a copy of the signed-in user, or nil.
func (a *Adapter) Current() *User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyUser(a.current)
}

// Subscribe registers onChange and delivers the current session to it once,
// then every later transition, in order and one at a time. An existing
// subscription is torn down first. The returned function unsubscribes and is
// safe to call more than once.
func (a *Adapter) Subscribe(onChange func(*User)) (unsubscribe func()) {
	a.mu.Lock()
	if a.sub != nil {
		a.sub.stop()
		a.logger.Debug("Replaced existing session subscription")
	}
	sub := newSubscription(onChange)
	a.sub = sub
	sub.push(copyUser(a.current))
	a.mu.Unlock()

	go sub.run()

	return func() {
		a.mu.Lock()
		if a.sub == sub {
			a.sub = nil
		}
		a.mu.Unlock()
		sub.stop()
	}
}

func (a *Adapter) transition(user *User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = copyUser(user)
	if a.sub != nil {
		a.sub.push(copyUser(user))
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// subscription delivers queued session values to one callback from one goroutine.
type subscription struct {
	onChange func(*User)

	mu    sync.Mutex
	queue []*User

	signal   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSubscription(onChange func(*User)) *subscription {
	return &subscription{
		onChange: onChange,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (s *subscription) push(u *User) {
	s.mu.Lock()
	s.queue = append(s.queue, u)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			u := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			s.onChange(u)
		}
	}
}
