// Package accounts answers whether a social-network account may run workflows.
// Session state lives elsewhere; this package only reads it.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dukex/socialflow/pkg/models"
)

// SessionStatus is the authentication state of an account session.
type SessionStatus string

const (
	StatusAuthenticated SessionStatus = "authenticated"
	StatusExpired       SessionStatus = "expired"
	StatusChallenged    SessionStatus = "challenged"
	StatusDisconnected  SessionStatus = "disconnected"
)

// ErrAccountNotFound indicates an account reference unknown to the directory.
var ErrAccountNotFound = errors.New("account not found")

// Account is the directory's view of one connected account.
type Account struct {
	Ref      string        `json:"ref"`
	UserID   string        `json:"user_id"`
	Platform string        `json:"platform,omitempty"`
	Username string        `json:"username,omitempty"`
	Status   SessionStatus `json:"status"`
}

// Eligible reports whether the account is authenticated.
func (a *Account) Eligible() bool {
	return a != nil && a.Status == StatusAuthenticated
}

// Directory looks up accounts by reference.
type Directory interface {
	Lookup(ctx context.Context, accountRef string) (*Account, error)
}

// CheckEligible returns nil when accountRef belongs to userID and is authenticated.
// An empty userID skips the ownership check.
func CheckEligible(ctx context.Context, directory Directory, userID, accountRef string) error {
	account, err := directory.Lookup(ctx, accountRef)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fmt.Errorf("%w: %s", models.ErrAccountNotEligible, err)
		}

		return fmt.Errorf("failed to look up account %s: %w", accountRef, err)
	}

	if userID != "" && account.UserID != "" && account.UserID != userID {
		return fmt.Errorf("%w: account %s belongs to another user", models.ErrAccountNotEligible, accountRef)
	}

	if !account.Eligible() {
		return fmt.Errorf("%w: account %s is %s", models.ErrAccountNotEligible, accountRef, account.Status)
	}

	return nil
}

// Static is an in-memory directory.
type Static struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewStatic returns a directory holding the given accounts.
func NewStatic(accounts ...*Account) *Static {
	s := &Static{accounts: make(map[string]*Account, len(accounts))}
	for _, account := range accounts {
		s.Put(account)
	}

	return s
}

// ParseStatic builds a directory from "ref[:userID]" entries separated by commas.
// Every listed account is authenticated.
func ParseStatic(entries string) *Static {
	s := NewStatic()

	for _, entry := range strings.Split(entries, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		ref, userID, _ := strings.Cut(entry, ":")
		s.Put(&Account{Ref: ref, UserID: userID, Status: StatusAuthenticated})
	}

	return s
}

// Put adds or replaces an account.
func (s *Static) Put(account *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *account
	s.accounts[account.Ref] = &copied
}

func (s *Static) Lookup(_ context.Context, accountRef string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountRef]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountRef)
	}

	copied := *account

	return &copied, nil
}
