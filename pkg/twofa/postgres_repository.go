package twofa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresTwoFARepository implements Repository on PostgreSQL. Consume
// operations are single conditional UPDATE statements, so concurrent
// requests for the same code are serialized by row locks.
type PostgresTwoFARepository struct {
	db DBTX
}

func NewPostgresTwoFARepository(db DBTX) *PostgresTwoFARepository {
	return &PostgresTwoFARepository{db: db}
}

const enrollmentColumns = `id, user_id, method, coalesce(secret, ''), coalesce(channel_address, ''), enabled, backup_codes, created_at, updated_at`

func scanEnrollment(row pgx.Row) (Enrollment, error) {
	var e Enrollment
	var method string
	err := row.Scan(&e.ID, &e.UserID, &method, &e.Secret, &e.ChannelAddress, &e.Enabled, &e.BackupCodes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Enrollment{}, err
	}
	e.Method = Method(method)
	return e, nil
}

func (r *PostgresTwoFARepository) UpsertEnrollment(ctx context.Context, enrollment Enrollment) (Enrollment, error) {
	now := enrollment.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	codes := enrollment.BackupCodes
	if codes == nil {
		codes = []string{}
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO two_factor_enrollments (user_id, method, secret, channel_address, enabled, backup_codes, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), true, $6, $5, $5)
		ON CONFLICT (user_id, method) DO UPDATE
		SET secret = EXCLUDED.secret,
		    channel_address = EXCLUDED.channel_address,
		    backup_codes = EXCLUDED.backup_codes,
		    enabled = true,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+enrollmentColumns,
		enrollment.UserID, string(enrollment.Method), enrollment.Secret, enrollment.ChannelAddress, now, codes,
	)
	e, err := scanEnrollment(row)
	if err != nil {
		return Enrollment{}, fmt.Errorf("failed to upsert enrollment: %w", err)
	}
	return e, nil
}

func (r *PostgresTwoFARepository) GetEnrollment(ctx context.Context, userID uuid.UUID, method Method) (Enrollment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+enrollmentColumns+`
		FROM two_factor_enrollments
		WHERE user_id = $1 AND method = $2`,
		userID, string(method),
	)
	e, err := scanEnrollment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Enrollment{}, ErrEnrollmentNotFound
	}
	if err != nil {
		return Enrollment{}, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e, nil
}

func (r *PostgresTwoFARepository) ListEnabledEnrollments(ctx context.Context, userID uuid.UUID) ([]Enrollment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+enrollmentColumns+`
		FROM two_factor_enrollments
		WHERE user_id = $1 AND enabled
		ORDER BY created_at, method`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var out []Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return out, nil
}

func (r *PostgresTwoFARepository) DeleteEnrollment(ctx context.Context, userID uuid.UUID, method Method) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM two_factor_enrollments WHERE user_id = $1 AND method = $2`, userID, string(method))
	if err != nil {
		return false, fmt.Errorf("failed to delete enrollment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresTwoFARepository) ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, method Method, codes []string) error {
	if codes == nil {
		codes = []string{}
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE two_factor_enrollments
		SET backup_codes = $3, updated_at = now()
		WHERE user_id = $1 AND method = $2`,
		userID, string(method), codes,
	)
	if err != nil {
		return fmt.Errorf("failed to replace backup codes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

func (r *PostgresTwoFARepository) ConsumeBackupCode(ctx context.Context, userID uuid.UUID, method Method, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	// Generated sets never contain duplicates, so array_remove drops exactly one entry.
	tag, err := r.db.Exec(ctx, `
		UPDATE two_factor_enrollments
		SET backup_codes = array_remove(backup_codes, $3::text), updated_at = now()
		WHERE user_id = $1 AND method = $2 AND enabled AND $3::text = ANY(backup_codes)`,
		userID, string(method), code,
	)
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresTwoFARepository) DeleteExpiredCodes(ctx context.Context, userID uuid.UUID, method Method, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM two_factor_codes
		WHERE user_id = $1 AND method = $2 AND expires_at <= $3`,
		userID, string(method), now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresTwoFARepository) CreateCode(ctx context.Context, code OneTimeCode) (OneTimeCode, error) {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO two_factor_codes (user_id, method, code, expires_at, consumed, created_at)
		VALUES ($1, $2, $3, $4, false, $5)
		RETURNING id`,
		code.UserID, string(code.Method), code.Code, code.ExpiresAt, code.CreatedAt,
	).Scan(&code.ID)
	if err != nil {
		return OneTimeCode{}, fmt.Errorf("failed to create code: %w", err)
	}
	return code, nil
}

func (r *PostgresTwoFARepository) ConsumeCode(ctx context.Context, userID uuid.UUID, method Method, code string, now time.Time) (bool, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		UPDATE two_factor_codes
		SET consumed = true
		WHERE id = (
			SELECT id FROM two_factor_codes
			WHERE user_id = $1 AND method = $2 AND code = $3
			  AND NOT consumed AND expires_at > $4
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND NOT consumed
		RETURNING id`,
		userID, string(method), code, now,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume code: %w", err)
	}
	return true, nil
}

func (r *PostgresTwoFARepository) DeleteCodes(ctx context.Context, userID uuid.UUID, method Method) error {
	_, err := r.db.Exec(ctx, `DELETE FROM two_factor_codes WHERE user_id = $1 AND method = $2`, userID, string(method))
	if err != nil {
		return fmt.Errorf("failed to delete codes: %w", err)
	}
	return nil
}
