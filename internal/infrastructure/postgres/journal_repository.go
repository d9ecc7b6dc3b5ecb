package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/instawin/merchprize/internal/domain/journal"
	"github.com/instawin/merchprize/internal/domain/session"
)

const uniqueViolation = "23505"

const journalColumns = `id, record_id, cycle_id, game_id, mode, wager, settled, payout, prize_division, prize_value, merchandise_tier_id, reveal_rounds, closed_at, signature`

// JournalRepository implements journal.Repository.
type JournalRepository struct {
	pool *pgxpool.Pool
}

func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

func (r *JournalRepository) Create(ctx context.Context, rec *journal.Record) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO settlements
		(record_id, cycle_id, game_id, mode, wager, settled, payout, prize_division, prize_value, merchandise_tier_id, reveal_rounds, closed_at, signature)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id
	`, rec.RecordID, rec.CycleID, rec.GameID, string(rec.Mode), rec.Wager, rec.Settled, rec.Payout, rec.PrizeDivision, rec.PrizeValue, rec.MerchandiseTierID, rec.RevealRounds, rec.ClosedAt, rec.Signature)
	if err := row.Scan(&rec.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return journal.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *JournalRepository) GetByCycleID(ctx context.Context, cycleID uuid.UUID) (*journal.Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+journalColumns+` FROM settlements WHERE cycle_id=$1`, cycleID)
	rec, err := scanSettlement(row)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, journal.ErrNotFound
	}
	return rec, nil
}

func (r *JournalRepository) List(ctx context.Context, filter journal.Filter, cursor *journal.Cursor, limit int) ([]*journal.Record, *journal.Cursor, error) {
	query := `SELECT ` + journalColumns + ` FROM settlements`
	args := []interface{}{}
	idx := 1

	if filter.GameID != nil {
		query += addWhere(query) + " game_id=$" + itoa(idx)
		args = append(args, *filter.GameID)
		idx++
	}
	if filter.Mode != nil {
		query += addWhere(query) + " mode=$" + itoa(idx)
		args = append(args, string(*filter.Mode))
		idx++
	}
	if filter.Since != nil {
		query += addWhere(query) + " closed_at >= $" + itoa(idx)
		args = append(args, *filter.Since)
		idx++
	}
	if filter.Until != nil {
		query += addWhere(query) + " closed_at <= $" + itoa(idx)
		args = append(args, *filter.Until)
		idx++
	}
	if cursor != nil {
		query += addWhere(query) + " (closed_at, id) < ($" + itoa(idx) + ", $" + itoa(idx+1) + ")"
		args = append(args, cursor.ClosedAt, cursor.ID)
		idx += 2
	}
	query += " ORDER BY closed_at DESC, id DESC LIMIT $" + itoa(idx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
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

func scanSettlement(row pgx.Row) (*journal.Record, error) {
	var rec journal.Record
	var mode string
	if err := row.Scan(&rec.ID, &rec.RecordID, &rec.CycleID, &rec.GameID, &mode, &rec.Wager, &rec.Settled, &rec.Payout, &rec.PrizeDivision, &rec.PrizeValue, &rec.MerchandiseTierID, &rec.RevealRounds, &rec.ClosedAt, &rec.Signature); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Mode = session.ActionMode(mode)
	rec.ClosedAt = rec.ClosedAt.UTC()
	return &rec, nil
}
