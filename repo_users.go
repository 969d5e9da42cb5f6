package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var UpdateUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"updated_at" = ?
WHERE
	"usr"."email" = ?
RETURNING *;`

// Users is the verified user table
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, email, passwordHash string) error
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository returns a Users backed by db
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

// GetByEmailTx matches the email exactly, callers normalize if needed
func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || err == sql.ErrNoRows {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"identifier": "email",
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record, a.now())
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) UpdatePasswordTx(ctx context.Context, tx bun.IDB, email, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, UpdateUserPasswordSQL, passwordHash, a.now(), email)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"identifier": "email",
			})
	}

	return nil
}

func prepareUserDefaults(record *User, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = userIDFromEmail(record.Email)
	}

	if strings.TrimSpace(record.Role) == "" {
		record.Role = RoleUser
	}

	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}

	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}
