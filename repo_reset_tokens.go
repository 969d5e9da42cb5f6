package auth

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ResetTokens is the password reset token table
type ResetTokens interface {
	Save(ctx context.Context, record *PasswordResetToken) error
	SaveTx(ctx context.Context, tx bun.IDB, record *PasswordResetToken) error
	FindByToken(ctx context.Context, token string) (*PasswordResetToken, error)
	FindByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PasswordResetToken, error)
	// DeleteTx removes token and reports how many rows were removed.
	// A zero count means another caller consumed it first.
	DeleteTx(ctx context.Context, tx bun.IDB, token string) (int64, error)
}

type resetTokens struct {
	db *bun.DB
}

var _ ResetTokens = (*resetTokens)(nil)

// NewResetTokensRepository returns a ResetTokens backed by db
func NewResetTokensRepository(db *bun.DB) ResetTokens {
	return &resetTokens{db: db}
}

func (r *resetTokens) Save(ctx context.Context, record *PasswordResetToken) error {
	return r.SaveTx(ctx, r.db, record)
}

func (r *resetTokens) SaveTx(ctx context.Context, tx bun.IDB, record *PasswordResetToken) error {
	_, err := tx.NewInsert().Model(record).Exec(ctx)
	return err
}

func (r *resetTokens) FindByToken(ctx context.Context, token string) (*PasswordResetToken, error) {
	return r.FindByTokenTx(ctx, r.db, token)
}

func (r *resetTokens) FindByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PasswordResetToken, error) {
	record := &PasswordResetToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || err == sql.ErrNoRows {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"identifier": "token",
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *resetTokens) DeleteTx(ctx context.Context, tx bun.IDB, token string) (int64, error) {
	res, err := tx.NewDelete().
		Model((*PasswordResetToken)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
