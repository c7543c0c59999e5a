package stubbackend

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is an account held by the stub backend.
type User struct {
	ID           string
	Name         string
	Email        string
	Gender       string
	PasswordHash string
}

var (
	errEmailTaken   = errors.New("email already registered")
	errUnknownEmail = errors.New("email not found")
	errBadPassword  = errors.New("invalid password")
)

// Users is an in-memory account table keyed by lower-cased email.
type Users struct {
	mu     sync.RWMutex
	byMail map[string]*User
	cost   int
}

// NewUsers creates an empty table. cost is the bcrypt cost; values below
// bcrypt.MinCost use bcrypt.DefaultCost.
func NewUsers(cost int) *Users {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Users{byMail: map[string]*User{}, cost: cost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a new account.
// PRE: password is non-empty
// POST: returns errEmailTaken if the email exists
func (u *Users) Create(name, email, password, gender string) (*User, error) {
	key := normalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byMail[key]; ok {
		return nil, errEmailTaken
	}
	user := &User{ID: uuid.NewString(), Name: strings.TrimSpace(name), Email: key, Gender: gender, PasswordHash: string(hash)}
	u.byMail[key] = user
	return user, nil
}

// Authenticate checks credentials.
// POST: returns errUnknownEmail or errBadPassword on failure
func (u *Users) Authenticate(email, password string) (*User, error) {
	u.mu.RLock()
	user, ok := u.byMail[normalizeEmail(email)]
	u.mu.RUnlock()
	if !ok {
		return nil, errUnknownEmail
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errBadPassword
	}
	return user, nil
}

// Get looks a user up by email.
func (u *Users) Get(email string) (*User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.byMail[normalizeEmail(email)]
	return user, ok
}
