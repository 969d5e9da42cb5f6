package auth

import (
	"strings"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoleUser is the only role issued to verified accounts
const RoleUser = "USER"

// User is a verified account
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Company       string     `bun:"company" json:"company,omitempty"`
	Role          string     `bun:"user_role,notnull" json:"role,omitempty"`
	IsVerified    bool       `bun:"is_verified,notnull" json:"is_verified"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// PasswordResetToken is a single use reset credential
type PasswordResetToken struct {
	bun.BaseModel `bun:"table:password_reset_tokens,alias:prt"`
	Token         string     `bun:"token,pk" json:"-"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the token is past its expiration at now
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// PendingRegistration is an unverified registration awaiting its code
type PendingRegistration struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Company      string
	OTPCode      string
	IssuedAt     time.Time
}

// Expired reports whether the code issued for this record is past ttl at now
func (p PendingRegistration) Expired(now time.Time, ttl time.Duration) bool {
	return now.After(p.IssuedAt.Add(ttl))
}

func (p PendingRegistration) sameIssue(other PendingRegistration) bool {
	return p.OTPCode == other.OTPCode && p.IssuedAt.Equal(other.IssuedAt)
}

// ToUser promotes the pending record to a verified user
func (p PendingRegistration) ToUser() *User {
	return &User{
		ID:           userIDFromEmail(p.Email),
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Company:      p.Company,
		Role:         RoleUser,
		IsVerified:   true,
	}
}

func userIDFromEmail(email string) uuid.UUID {
	if id, err := hashid.NewUUID(strings.ToLower(email)); err == nil {
		return id
	}
	return uuid.New()
}
