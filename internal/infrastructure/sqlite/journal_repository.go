package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/instawin/merchprize/internal/domain/journal"
	"github.com/instawin/merchprize/internal/domain/session"
)

const journalColumns = `id, record_id, cycle_id, game_id, mode, wager, settled, payout, prize_division, prize_value, merchandise_tier_id, reveal_rounds, closed_at, signature`

// JournalRepository implements journal.Repository.
type JournalRepository struct {
	db *sql.DB
}

func (r *JournalRepository) Create(ctx context.Context, rec *journal.Record) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO settlements
		(record_id, cycle_id, game_id, mode, wager, settled, payout, prize_division, prize_value, merchandise_tier_id, reveal_rounds, closed_at, signature)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, rec.RecordID.String(), rec.CycleID.String(), rec.GameID, string(rec.Mode), rec.Wager, rec.Settled, rec.Payout,
		rec.PrizeDivision, rec.PrizeValue, rec.MerchandiseTierID, rec.RevealRounds, rec.ClosedAt.UTC().UnixMicro(), rec.Signature)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint") {
			return journal.ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

func (r *JournalRepository) GetByCycleID(ctx context.Context, cycleID uuid.UUID) (*journal.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+journalColumns+` FROM settlements WHERE cycle_id = ?`, cycleID.String())
	rec, err := scanSettlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, journal.ErrNotFound
	}
	return rec, err
}

func (r *JournalRepository) List(ctx context.Context, filter journal.Filter, cursor *journal.Cursor, limit int) ([]*journal.Record, *journal.Cursor, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.GameID != nil {
		where = append(where, "game_id = ?")
		args = append(args, *filter.GameID)
	}
	if filter.Mode != nil {
		where = append(where, "mode = ?")
		args = append(args, string(*filter.Mode))
	}
	if filter.Since != nil {
		where = append(where, "closed_at >= ?")
		args = append(args, filter.Since.UTC().UnixMicro())
	}
	if filter.Until != nil {
		where = append(where, "closed_at <= ?")
		args = append(args, filter.Until.UTC().UnixMicro())
	}
	if cursor != nil {
		where = append(where, "(closed_at < ? OR (closed_at = ? AND id < ?))")
		at := cursor.ClosedAt.UTC().UnixMicro()
		args = append(args, at, at, cursor.ID)
	}

	query := `SELECT ` + journalColumns + ` FROM settlements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY closed_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var records []*journal.Record
	for rows.Next() {
		rec, err := scanSettlement(rows)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *journal.Cursor
	if len(records) == limit {
		last := records[len(records)-1]
		next = &journal.Cursor{ClosedAt: last.ClosedAt, ID: last.ID}
	}
	return records, next, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row scanner) (*journal.Record, error) {
	var (
		rec      journal.Record
		recordID string
		cycleID  string
		mode     string
		closedAt int64
	)
	if err := row.Scan(&rec.ID, &recordID, &cycleID, &rec.GameID, &mode, &rec.Wager, &rec.Settled, &rec.Payout,
		&rec.PrizeDivision, &rec.PrizeValue, &rec.MerchandiseTierID, &rec.RevealRounds, &closedAt, &rec.Signature); err != nil {
		return nil, err
	}
	var err error
	if rec.RecordID, err = uuid.Parse(recordID); err != nil {
		return nil, err
	}
	if rec.CycleID, err = uuid.Parse(cycleID); err != nil {
		return nil, err
	}
	rec.Mode = session.ActionMode(mode)
	rec.ClosedAt = time.UnixMicro(closedAt).UTC()
	return &rec, nil
}
