package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// MemoryProvider is an in-process Provider for local runs and tests. Accounts
// live only as long as the process.
type MemoryProvider struct {
	mu       sync.RWMutex
	accounts map[string]memoryAccount // keyed by lower-cased email
	resets   []string
}

type memoryAccount struct {
	user User
	hash []byte
}

// NewMemoryProvider creates an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{accounts: make(map[string]memoryAccount)}
}

func (p *MemoryProvider) SignUp(_ context.Context, email, password string) (*User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, &AuthError{Kind: KindInvalidCredentials, Op: "sign up", Err: err}
	}
	key := strings.ToLower(email)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.accounts[key]; exists {
		return nil, &AuthError{Kind: KindEmailInUse, Op: "sign up", Err: errors.New("email already registered")}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, &AuthError{Kind: KindUnknown, Op: "sign up", Err: err}
	}
	acct := memoryAccount{user: User{ID: uuid.NewString(), Email: email}, hash: hash}
	p.accounts[key] = acct
	u := acct.user
	return &u, nil
}

func (p *MemoryProvider) SignIn(_ context.Context, email, password string) (*User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, &AuthError{Kind: KindInvalidCredentials, Op: "sign in", Err: err}
	}
	p.mu.RLock()
	acct, ok := p.accounts[strings.ToLower(email)]
	p.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return nil, &AuthError{Kind: KindWrongCredentials, Op: "sign in", Err: errors.New("email or password is incorrect")}
	}
	u := acct.user
	return &u, nil
}

func (p *MemoryProvider) SignOut(context.Context, *User) error { return nil }

// SendPasswordReset records the request. Unknown emails succeed silently.
func (p *MemoryProvider) SendPasswordReset(_ context.Context, email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return &AuthError{Kind: KindInvalidCredentials, Op: "send password reset", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[strings.ToLower(email)]; ok {
		p.resets = append(p.resets, email)
	}
	return nil
}

// ResetRequests returns the emails a reset was sent to.
func (p *MemoryProvider) ResetRequests() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.resets...)
}

func validateCredentials(email, password string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email is malformed")
	}
	if len(password) < minPasswordLength {
		return errors.New("password is too weak")
	}
	return nil
}
