package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// accountNamespace scopes the SHA1 ids derived from account emails
var accountNamespace = uuid.MustParse("6f1c1d0e-52b7-4c8e-9a55-0d8a3b4f1e21")

// Account represents a registered user
type Account struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Tier         Tier      `json:"tier" db:"tier"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// storedAccount mirrors Account including the hash, for backends that keep accounts as JSON
type storedAccount struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Tier         Tier      `json:"tier"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToStored returns a copy that serializes the password hash
func (a *Account) ToStored() interface{} {
	return storedAccount(*a)
}

// AccountFromStored is the inverse of ToStored for JSON-encoded records
func AccountFromStored(data []byte) (*Account, error) {
	var s storedAccount
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	a := Account(s)
	return &a, nil
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserIDForEmail derives the stable user id for an email address
func UserIDForEmail(email string) string {
	return uuid.NewSHA1(accountNamespace, []byte(NormalizeEmail(email))).String()
}

// AllowListEntry grants an email an upgraded plan at registration
type AllowListEntry struct {
	Email    string `json:"email" yaml:"email"`
	PlanCode string `json:"plan" yaml:"plan"`
}
