package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vigia/internal/pass/models"
	id "vigia/pkg/domain"
	"vigia/pkg/platform/sentinel"
	txcontext "vigia/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// Postgres persists passes in PostgreSQL. The unique index on code is the
// authoritative uniqueness guarantee for pass codes (the generator's check is
// advisory only).
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed pass store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the context transaction when one is present so pass reads and
// ledger writes join the same commit.
func (s *Postgres) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const passColumns = `id, owner_resident_id, holder_name, holder_surname, kind, valid_until, revoked, revoked_at, code, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, pass *models.Pass) error {
	query := `
		INSERT INTO passes (` + passColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(pass.ID), ownerParam(pass.OwnerResidentID),
		pass.HolderName, pass.HolderSurname, string(pass.Kind),
		pass.ValidUntil, pass.Revoked, pass.RevokedAt,
		pass.Code, pass.CreatedAt, pass.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create pass: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, passID id.PassID) (*models.Pass, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+passColumns+` FROM passes WHERE id = $1`, uuid.UUID(passID))
	return scanPass(row)
}

func (s *Postgres) FindByCode(ctx context.Context, code string) (*models.Pass, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+passColumns+` FROM passes WHERE code = upper($1)`, code)
	return scanPass(row)
}

// FindByCodeForUpdate locks the pass row for the remainder of the context
// transaction. The registrar uses it so status evaluation and the event
// append see and keep a consistent pass row.
func (s *Postgres) FindByCodeForUpdate(ctx context.Context, code string) (*models.Pass, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+passColumns+` FROM passes WHERE code = upper($1) FOR UPDATE`, code)
	return scanPass(row)
}

func (s *Postgres) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM passes WHERE code = upper($1))`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pass code: %w", err)
	}
	return exists, nil
}

func (s *Postgres) ListByOwner(ctx context.Context, owner id.ResidentID) ([]*models.Pass, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+passColumns+` FROM passes WHERE owner_resident_id = $1 ORDER BY created_at DESC`,
		uuid.UUID(owner))
	if err != nil {
		return nil, fmt.Errorf("list passes by owner: %w", err)
	}
	defer rows.Close()

	var result []*models.Pass
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, pass)
	}
	return result, rows.Err()
}

func (s *Postgres) Execute(ctx context.Context, passID id.PassID,
	validate func(pass *models.Pass) error,
	mutate func(pass *models.Pass)) (*models.Pass, error) {

	run := func(ctx context.Context) (*models.Pass, error) {
		row := s.q(ctx).QueryRowContext(ctx,
			`SELECT `+passColumns+` FROM passes WHERE id = $1 FOR UPDATE`, uuid.UUID(passID))
		pass, err := scanPass(row)
		if err != nil {
			return nil, err
		}
		if err := validate(pass); err != nil {
			return nil, err
		}
		mutate(pass)
		_, err = s.q(ctx).ExecContext(ctx, `
			UPDATE passes
			SET holder_name = $2, holder_surname = $3, kind = $4, valid_until = $5,
			    revoked = $6, revoked_at = $7, updated_at = $8
			WHERE id = $1
		`, uuid.UUID(passID),
			pass.HolderName, pass.HolderSurname, string(pass.Kind), pass.ValidUntil,
			pass.Revoked, pass.RevokedAt, pass.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("update pass: %w", err)
		}
		return pass, nil
	}

	// Join the caller's transaction when present; otherwise open a local one
	// so the row lock still covers validate and mutate.
	if _, ok := txcontext.From(ctx); ok {
		return run(ctx)
	}
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin pass tx: %w", err)
	}
	pass, err := run(txcontext.WithTx(ctx, dbTx))
	if err != nil {
		_ = dbTx.Rollback()
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit pass tx: %w", err)
	}
	return pass, nil
}

func (s *Postgres) Delete(ctx context.Context, passID id.PassID) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM passes WHERE id = $1`, uuid.UUID(passID))
	if err != nil {
		return fmt.Errorf("delete pass: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pass: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) RevokeOwnerless(ctx context.Context, passID id.PassID, now time.Time) error {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE passes
		SET revoked = TRUE, revoked_at = $2, owner_resident_id = NULL, updated_at = $2
		WHERE id = $1
	`, uuid.UUID(passID), now)
	if err != nil {
		return fmt.Errorf("revoke ownerless pass: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke ownerless pass: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPass(row rowScanner) (*models.Pass, error) {
	var (
		pass      models.Pass
		passID    uuid.UUID
		owner     uuid.NullUUID
		kind      string
		validTill sql.NullTime
		revokedAt sql.NullTime
	)
	err := row.Scan(&passID, &owner, &pass.HolderName, &pass.HolderSurname, &kind,
		&validTill, &pass.Revoked, &revokedAt, &pass.Code, &pass.CreatedAt, &pass.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan pass: %w", err)
	}
	pass.ID = id.PassID(passID)
	if owner.Valid {
		pass.OwnerResidentID = id.ResidentID(owner.UUID)
	}
	pass.Kind = models.Kind(kind)
	if validTill.Valid {
		t := validTill.Time
		pass.ValidUntil = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		pass.RevokedAt = &t
	}
	return &pass, nil
}

// ownerParam maps a zero ResidentID to NULL for the ownerless case.
func ownerParam(owner id.ResidentID) any {
	if owner.IsNil() {
		return nil
	}
	return uuid.UUID(owner)
}
