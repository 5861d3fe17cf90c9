// Package entities contains the persistent domain model: users, asset types,
// wallets, transactions and ledger entries.
package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User owns wallets; it never holds value directly.
type User struct {
	id        uuid.UUID
	email     string
	createdAt time.Time
	updatedAt time.Time
}

// NewUser creates a user with a fresh id.
func NewUser(email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address: %q", email)
	}
	now := time.Now().UTC()
	return &User{
		id:        uuid.New(),
		email:     email,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructUser rebuilds a user from storage.
func ReconstructUser(id uuid.UUID, email string, createdAt, updatedAt time.Time) *User {
	return &User{id: id, email: email, createdAt: createdAt, updatedAt: updatedAt}
}

func (u *User) ID() uuid.UUID        { return u.id }
func (u *User) Email() string        { return u.email }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }
