package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// RevokedTokenRepo is the SQL-backed refresh token denylist.
type RevokedTokenRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewRevokedTokenRepo(db *sqlx.DB) *RevokedTokenRepo {
	return &RevokedTokenRepo{db: db, now: time.Now}
}

// WithClock replaces the time source used to purge expired entries.
func (r *RevokedTokenRepo) WithClock(now func() time.Time) *RevokedTokenRepo {
	r.now = now
	return r
}

// Revoke records jti until expiresAt and reports whether it was newly revoked.
func (r *RevokedTokenRepo) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	// expired rows are dead weight
	if _, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, r.now().Unix()); err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens(jti, expires_at) VALUES(?, ?)
		ON CONFLICT(jti) DO NOTHING
	`, jti, expiresAt.Unix())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *RevokedTokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM revoked_tokens WHERE jti=?`, jti); err != nil {
		return false, err
	}
	return n > 0, nil
}
