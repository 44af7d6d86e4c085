package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vigia/internal/access/models"
	id "vigia/pkg/domain"
	"vigia/pkg/platform/sentinel"
	txcontext "vigia/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres persists the ledger in PostgreSQL. A partial unique index on
// (pass_id) WHERE consumes_pass makes the second consuming insert for a pass
// fail with a unique violation, which Append surfaces as ErrConflict.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger.
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

const eventColumns = `id, timestamp, direction, resident_id, pass_id, guard_id, vehicle_plate, notes, consumes_pass`

func (s *Postgres) Append(ctx context.Context, event *models.AccessEvent) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO access_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(event.ID), event.Timestamp, string(event.Direction),
		residentParam(event.ResidentID), passParam(event.PassID),
		uuid.UUID(event.GuardID), event.VehiclePlate, event.Notes, event.ConsumesPass)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("append access event: %w", err)
	}
	return nil
}

func (s *Postgres) HasConsumed(ctx context.Context, passID id.PassID) (bool, error) {
	var consumed bool
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM access_events WHERE pass_id = $1 AND consumes_pass)
	`, uuid.UUID(passID)).Scan(&consumed)
	if err != nil {
		return false, fmt.Errorf("check pass consumption: %w", err)
	}
	return consumed, nil
}

func (s *Postgres) CountByPass(ctx context.Context, passID id.PassID) (int, error) {
	var count int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM access_events WHERE pass_id = $1`, uuid.UUID(passID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pass events: %w", err)
	}
	return count, nil
}

func (s *Postgres) FindByID(ctx context.Context, eventID id.EventID) (*models.AccessEvent, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM access_events WHERE id = $1`, uuid.UUID(eventID))
	return scanEvent(row)
}

func (s *Postgres) UpdateDetails(ctx context.Context, eventID id.EventID, plate, notes string) (*models.AccessEvent, error) {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE access_events SET vehicle_plate = $2, notes = $3 WHERE id = $1
	`, uuid.UUID(eventID), plate, notes)
	if err != nil {
		return nil, fmt.Errorf("amend access event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("amend access event: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, eventID)
}

func (s *Postgres) List(ctx context.Context, filter Filter) ([]*models.AccessEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM access_events WHERE TRUE`
	var args []any
	if filter.ResidentID != nil {
		args = append(args, uuid.UUID(*filter.ResidentID))
		query += fmt.Sprintf(" AND resident_id = $%d", len(args))
	}
	if filter.PassID != nil {
		args = append(args, uuid.UUID(*filter.PassID))
		query += fmt.Sprintf(" AND pass_id = $%d", len(args))
	}
	if filter.GuardID != nil {
		args = append(args, uuid.UUID(*filter.GuardID))
		query += fmt.Sprintf(" AND guard_id = $%d", len(args))
	}
	if filter.Direction != nil {
		args = append(args, string(*filter.Direction))
		query += fmt.Sprintf(" AND direction = $%d", len(args))
	}
	if filter.Plate != "" {
		args = append(args, filter.Plate)
		query += fmt.Sprintf(" AND upper(vehicle_plate) = upper($%d)", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND timestamp >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND timestamp <= $%d", len(args))
	}
	query += ` ORDER BY timestamp DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list access events: %w", err)
	}
	defer rows.Close()

	var result []*models.AccessEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}

func (s *Postgres) ClearResidentRefs(ctx context.Context, residentID id.ResidentID) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE access_events SET resident_id = NULL WHERE resident_id = $1`, uuid.UUID(residentID))
	if err != nil {
		return fmt.Errorf("clear resident refs: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.AccessEvent, error) {
	var (
		event     models.AccessEvent
		eventPK   uuid.UUID
		direction string
		resident  uuid.NullUUID
		pass      uuid.NullUUID
		guardPK   uuid.UUID
	)
	err := row.Scan(&eventPK, &event.Timestamp, &direction, &resident, &pass,
		&guardPK, &event.VehiclePlate, &event.Notes, &event.ConsumesPass)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan access event: %w", err)
	}
	event.ID = id.EventID(eventPK)
	event.Direction = models.Direction(direction)
	event.GuardID = id.GuardID(guardPK)
	if resident.Valid {
		residentID := id.ResidentID(resident.UUID)
		event.ResidentID = &residentID
	}
	if pass.Valid {
		passID := id.PassID(pass.UUID)
		event.PassID = &passID
	}
	return &event, nil
}

func residentParam(residentID *id.ResidentID) any {
	if residentID == nil {
		return nil
	}
	return uuid.UUID(*residentID)
}

func passParam(passID *id.PassID) any {
	if passID == nil {
		return nil
	}
	return uuid.UUID(*passID)
}
