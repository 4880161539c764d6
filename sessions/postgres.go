package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitebid/authcore/internal/autherrors"
)

const uniqueViolationCode = "23505"

var _ Repo = (*PostgresRepo)(nil)

// PostgresRepo implements Repo on auth_sessions (see schema.sql).
// Selector and previous-selector columns are both uniquely indexed, so
// reuse detection is an index probe rather than a scan.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresRepo creates a Postgres-backed session repo.
func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

func (r *PostgresRepo) Create(ctx context.Context, session *Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO auth_sessions (
			id, user_id, token_selector, token_verifier_hash,
			previous_selector, expires_at, created_at, last_rotated_at
		) VALUES ($1, $2, $3, $4, NULL, $5, $6, $7)
	`, session.ID, session.UserID, session.TokenSelector, session.TokenVerifierHash,
		session.ExpiresAt, session.CreatedAt, session.LastRotatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return autherrors.ErrSelectorConflict
	}
	return err
}

func (r *PostgresRepo) GetBySelector(ctx context.Context, selector string) (*Session, error) {
	return r.getWhere(ctx, "token_selector = $1", selector)
}

func (r *PostgresRepo) GetByPreviousSelector(ctx context.Context, selector string) (*Session, error) {
	return r.getWhere(ctx, "previous_selector = $1", selector)
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	return r.getWhere(ctx, "id = $1", id)
}

func (r *PostgresRepo) getWhere(ctx context.Context, where string, arg any) (*Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, token_selector, token_verifier_hash,
		       previous_selector, expires_at, created_at, last_rotated_at
		FROM auth_sessions
		WHERE `+where, arg)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, autherrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Rotate is a compare-and-swap on the current selector: the UPDATE
// matches zero rows if another refresh already rotated (or revoked)
// the session, so only one of two concurrent refreshes can win.
func (r *PostgresRepo) Rotate(ctx context.Context, id, expectedSelector, newSelector, newVerifierHash string, rotatedAt time.Time) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE auth_sessions
		SET previous_selector = token_selector,
		    token_selector = $3,
		    token_verifier_hash = $4,
		    last_rotated_at = $5
		WHERE id = $1 AND token_selector = $2
	`, id, expectedSelector, newSelector, newVerifierHash, rotatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return false, autherrors.ErrSelectorConflict
		}
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PostgresRepo) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (r *PostgresRepo) DeleteAllExcept(ctx context.Context, userID, keepID string) (int, error) {
	ct, err := r.pool.Exec(ctx, `
		DELETE FROM auth_sessions WHERE user_id = $1 AND id <> $2
	`, userID, keepID)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, token_selector, token_verifier_hash,
		       previous_selector, expires_at, created_at, last_rotated_at
		FROM auth_sessions
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, session)
	}
	return list, rows.Err()
}

func (r *PostgresRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var session Session
	var previousSelector sql.NullString

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenSelector,
		&session.TokenVerifierHash,
		&previousSelector,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.LastRotatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.PreviousSelector = previousSelector.String
	return &session, nil
}
