package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vigia/internal/directory/models"
	id "vigia/pkg/domain"
	"vigia/pkg/platform/sentinel"
	txcontext "vigia/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres persists the directory in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed directory store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, resident_id, guard_id, created_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7)
	`, uuid.UUID(user.ID), user.Username, user.PasswordHash, string(user.Role),
		residentParam(user.ResidentID), guardParam(user.GuardID), user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

const userColumns = `id, username, password_hash, role, resident_id, guard_id, created_at`

func (s *Postgres) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = lower($1)`, username)
	return scanUser(row)
}

func (s *Postgres) FindUserByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, uuid.UUID(userID))
	return scanUser(row)
}

func (s *Postgres) DeleteUserByResident(ctx context.Context, residentID id.ResidentID) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM users WHERE resident_id = $1`, uuid.UUID(residentID))
	if err != nil {
		return fmt.Errorf("delete user by resident: %w", err)
	}
	return nil
}

func (s *Postgres) CreateResident(ctx context.Context, resident *models.Resident) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO residents (id, first_name, last_name, unit, phone, vehicle, plate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(resident.ID), resident.FirstName, resident.LastName,
		resident.Unit, resident.Phone, resident.Vehicle, resident.Plate,
		resident.CreatedAt, resident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create resident: %w", err)
	}
	return nil
}

const residentColumns = `id, first_name, last_name, unit, phone, vehicle, plate, created_at, updated_at`

func (s *Postgres) FindResident(ctx context.Context, residentID id.ResidentID) (*models.Resident, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+residentColumns+` FROM residents WHERE id = $1`, uuid.UUID(residentID))
	return scanResident(row)
}

func (s *Postgres) ListResidents(ctx context.Context, filter ResidentFilter) ([]*models.Resident, error) {
	query := `SELECT ` + residentColumns + ` FROM residents WHERE TRUE`
	var args []any
	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		query += fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d)", len(args), len(args))
	}
	if filter.Unit != "" {
		args = append(args, filter.Unit)
		query += fmt.Sprintf(" AND unit = $%d", len(args))
	}
	query += ` ORDER BY last_name, first_name`

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	defer rows.Close()

	var result []*models.Resident
	for rows.Next() {
		resident, err := scanResident(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, resident)
	}
	return result, rows.Err()
}

func (s *Postgres) UpdateResident(ctx context.Context, resident *models.Resident) error {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE residents
		SET first_name = $2, last_name = $3, unit = $4, phone = $5, vehicle = $6, plate = $7, updated_at = $8
		WHERE id = $1
	`, uuid.UUID(resident.ID), resident.FirstName, resident.LastName,
		resident.Unit, resident.Phone, resident.Vehicle, resident.Plate, resident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update resident: %w", err)
	}
	return requireAffected(result, "update resident")
}

func (s *Postgres) DeleteResident(ctx context.Context, residentID id.ResidentID) error {
	result, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM residents WHERE id = $1`, uuid.UUID(residentID))
	if err != nil {
		return fmt.Errorf("delete resident: %w", err)
	}
	return requireAffected(result, "delete resident")
}

func (s *Postgres) CreateGuard(ctx context.Context, guard *models.Guard) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO guards (id, first_name, last_name, badge, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(guard.ID), guard.FirstName, guard.LastName, guard.Badge, guard.CreatedAt)
	if err != nil {
		return fmt.Errorf("create guard: %w", err)
	}
	return nil
}

func (s *Postgres) FindGuard(ctx context.Context, guardID id.GuardID) (*models.Guard, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, first_name, last_name, badge, created_at
		FROM guards WHERE id = $1
	`, uuid.UUID(guardID))

	var (
		guard   models.Guard
		guardPK uuid.UUID
	)
	err := row.Scan(&guardPK, &guard.FirstName, &guard.LastName, &guard.Badge, &guard.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan guard: %w", err)
	}
	guard.ID = id.GuardID(guardPK)
	return &guard, nil
}

func (s *Postgres) ListGuards(ctx context.Context) ([]*models.Guard, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, first_name, last_name, badge, created_at
		FROM guards ORDER BY last_name, first_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list guards: %w", err)
	}
	defer rows.Close()

	var result []*models.Guard
	for rows.Next() {
		var (
			guard   models.Guard
			guardPK uuid.UUID
		)
		if err := rows.Scan(&guardPK, &guard.FirstName, &guard.LastName, &guard.Badge, &guard.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan guard: %w", err)
		}
		guard.ID = id.GuardID(guardPK)
		result = append(result, &guard)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user     models.User
		userPK   uuid.UUID
		role     string
		resident uuid.NullUUID
		guard    uuid.NullUUID
	)
	err := row.Scan(&userPK, &user.Username, &user.PasswordHash, &role, &resident, &guard, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.ID = id.UserID(userPK)
	user.Role = models.Role(role)
	if resident.Valid {
		rid := id.ResidentID(resident.UUID)
		user.ResidentID = &rid
	}
	if guard.Valid {
		gid := id.GuardID(guard.UUID)
		user.GuardID = &gid
	}
	return &user, nil
}

func scanResident(row rowScanner) (*models.Resident, error) {
	var (
		resident   models.Resident
		residentPK uuid.UUID
	)
	err := row.Scan(&residentPK, &resident.FirstName, &resident.LastName,
		&resident.Unit, &resident.Phone, &resident.Vehicle, &resident.Plate,
		&resident.CreatedAt, &resident.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan resident: %w", err)
	}
	resident.ID = id.ResidentID(residentPK)
	return &resident, nil
}

func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func residentParam(residentID *id.ResidentID) any {
	if residentID == nil {
		return nil
	}
	return uuid.UUID(*residentID)
}

func guardParam(guardID *id.GuardID) any {
	if guardID == nil {
		return nil
	}
	return uuid.UUID(*guardID)
}
