package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingFields      = errors.New("all fields required")
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type account struct {
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Accounts is a JSON document of username -> account.
type Accounts struct {
	path string
	cost int
	mu   sync.Mutex
}

// NewAccounts uses bcrypt.DefaultCost when cost is 0.
func NewAccounts(path string, cost int) *Accounts {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Accounts{path: path, cost: cost}
}

func (a *Accounts) Register(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrMissingFields
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	users := map[string]account{}
	if err := readJSON(a.path, &users); err != nil {
		return fmt.Errorf("accounts: read %s: %w", a.path, err)
	}
	if _, ok := users[username]; ok {
		return ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return fmt.Errorf("accounts: hash password: %w", err)
	}
	users[username] = account{PasswordHash: string(hash), CreatedAt: time.Now().UTC()}
	if err := writeJSON(a.path, users); err != nil {
		return fmt.Errorf("accounts: write %s: %w", a.path, err)
	}
	return nil
}

// Authenticate returns ErrInvalidCredentials for unknown users and wrong passwords alike.
func (a *Accounts) Authenticate(username, password string) error {
	a.mu.Lock()
	users := map[string]account{}
	err := readJSON(a.path, &users)
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("accounts: read %s: %w", a.path, err)
	}
	acc, ok := users[strings.TrimSpace(username)]
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
