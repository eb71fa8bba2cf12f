package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/settlement"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) SaveRound(record RoundRecord) (err error) {
	snapshot, err := json.Marshal(record.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ctx := context.Background()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const upsertRound = `
INSERT INTO rounds (
  round_id, status, course_name, player_count, current_hole, snapshot, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (round_id) DO UPDATE SET
  status = EXCLUDED.status,
  course_name = EXCLUDED.course_name,
  player_count = EXCLUDED.player_count,
  current_hole = EXCLUDED.current_hole,
  snapshot = EXCLUDED.snapshot,
  updated_at = EXCLUDED.updated_at
`
	if _, err = tx.ExecContext(ctx, upsertRound,
		record.RoundID,
		string(record.Status),
		record.CourseName,
		int16(record.PlayerCount),
		int16(record.CurrentHole),
		snapshot,
		record.CreatedAt,
		record.UpdatedAt,
	); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM hole_results WHERE round_id = $1`, record.RoundID); err != nil {
		return err
	}
	const insertHole = `
INSERT INTO hole_results (round_id, hole, wager, halved, record)
VALUES ($1,$2,$3,$4,$5)
`
	for _, hole := range record.Snapshot.Holes {
		raw, marshalErr := json.Marshal(hole)
		if marshalErr != nil {
			err = fmt.Errorf("marshal hole %d: %w", hole.Hole, marshalErr)
			return err
		}
		if _, err = tx.ExecContext(ctx, insertHole,
			record.RoundID,
			int16(hole.Hole),
			hole.Wager,
			hole.Halved,
			raw,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *postgresRepository) GetRound(roundID string) (RoundRecord, bool, error) {
	const q = `
SELECT round_id, status, course_name, player_count, current_hole, snapshot, created_at, updated_at
FROM rounds
WHERE round_id = $1
`
	rec, err := scanRound(r.db.QueryRowContext(context.Background(), q, roundID))
	if errors.Is(err, sql.ErrNoRows) {
		return RoundRecord{}, false, nil
	}
	if err != nil {
		return RoundRecord{}, false, err
	}
	return rec, true, nil
}

func (r *postgresRepository) ListRounds() ([]RoundRecord, error) {
	const q = `
SELECT round_id, status, course_name, player_count, current_hole, snapshot, created_at, updated_at
FROM rounds
ORDER BY created_at ASC, round_id ASC
`
	rows, err := r.db.QueryContext(context.Background(), q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RoundRecord, 0, 16)
	for rows.Next() {
		rec, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepository) ListHoles(roundID string) ([]settlement.HoleRecord, error) {
	var exists bool
	if err := r.db.QueryRowContext(context.Background(),
		`SELECT EXISTS (SELECT 1 FROM rounds WHERE round_id = $1)`, roundID,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRoundNotFound
	}

	const q = `
SELECT hole, record
FROM hole_results
WHERE round_id = $1
ORDER BY hole ASC
`
	rows, err := r.db.QueryContext(context.Background(), q, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]settlement.HoleRecord, 0, domain.HolesPerRound)
	for rows.Next() {
		var hole int16
		var raw []byte
		if err := rows.Scan(&hole, &raw); err != nil {
			return nil, err
		}
		var rec settlement.HoleRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record for round %s hole %d: %w", roundID, hole, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepository) AppendAction(record ActionRecord) error {
	const q = `
INSERT INTO round_actions (
  round_id, hole, actor, action, detail, is_fallback, at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(context.Background(), q,
		record.RoundID,
		int16(record.Hole),
		string(record.Actor),
		record.Action,
		record.Detail,
		record.IsFallback,
		record.At,
	)
	if isForeignKeyViolation(err) {
		return ErrRoundNotFound
	}
	return err
}

func (r *postgresRepository) ListActions(roundID string) ([]ActionRecord, error) {
	const q = `
SELECT round_id, hole, actor, action, detail, is_fallback, at
FROM round_actions
WHERE round_id = $1
ORDER BY id ASC
`
	rows, err := r.db.QueryContext(context.Background(), q, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ActionRecord, 0, 64)
	for rows.Next() {
		var rec ActionRecord
		var hole int16
		var actor string
		if err := rows.Scan(
			&rec.RoundID,
			&hole,
			&actor,
			&rec.Action,
			&rec.Detail,
			&rec.IsFallback,
			&rec.At,
		); err != nil {
			return nil, err
		}
		rec.Hole = int(hole)
		rec.Actor = domain.PlayerID(actor)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepository) UpsertCourse(course domain.Course) error {
	if err := course.Validate(); err != nil {
		return err
	}
	holes, err := json.Marshal(course.Holes)
	if err != nil {
		return fmt.Errorf("marshal course holes: %w", err)
	}
	const q = `
INSERT INTO courses (name, holes, updated_at)
VALUES ($1,$2,now())
ON CONFLICT (name) DO UPDATE SET
  holes = EXCLUDED.holes,
  updated_at = now()
`
	_, err = r.db.ExecContext(context.Background(), q, course.Name, holes)
	return err
}

func (r *postgresRepository) GetCourse(name string) (domain.Course, bool, error) {
	var raw []byte
	err := r.db.QueryRowContext(context.Background(), `SELECT holes FROM courses WHERE name = $1`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Course{}, false, nil
	}
	if err != nil {
		return domain.Course{}, false, err
	}
	course := domain.Course{Name: name}
	if err := json.Unmarshal(raw, &course.Holes); err != nil {
		return domain.Course{}, false, fmt.Errorf("unmarshal holes for course %s: %w", name, err)
	}
	return course, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (RoundRecord, error) {
	var rec RoundRecord
	var status string
	var playerCount, currentHole int16
	var snapshot []byte
	if err := row.Scan(
		&rec.RoundID,
		&status,
		&rec.CourseName,
		&playerCount,
		&currentHole,
		&snapshot,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return RoundRecord{}, err
	}
	rec.Status = RoundStatus(status)
	rec.PlayerCount = int(playerCount)
	rec.CurrentHole = int(currentHole)
	if err := json.Unmarshal(snapshot, &rec.Snapshot); err != nil {
		return RoundRecord{}, fmt.Errorf("unmarshal snapshot for round %s: %w", rec.RoundID, err)
	}
	return rec, nil
}

func isForeignKeyViolation(err error) bool {
	return hasSQLState(err, "23503")
}

type sqlStateProvider interface {
	SQLState() string
}

func hasSQLState(err error, code string) bool {
	if err == nil {
		return false
	}
	var stateErr sqlStateProvider
	if errors.As(err, &stateErr) && stateErr.SQLState() == code {
		return true
	}
	return strings.Contains(err.Error(), "SQLSTATE "+code)
}
