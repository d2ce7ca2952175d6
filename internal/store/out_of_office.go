package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/outofoffice/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OutOfOfficeTx is the set of entry operations available inside a transaction
// opened by OutOfOfficeStore.InTx.
type OutOfOfficeTx interface {
	FindOverlapping(ctx context.Context, userID int64, start, end time.Time) (*model.OutOfOfficeEntry, error)
	FindRedirectCycle(ctx context.Context, fromUserID, toUserID int64, start, end time.Time) (*model.OutOfOfficeEntry, error)
	Create(ctx context.Context, entry model.OutOfOfficeEntry) (*model.OutOfOfficeEntry, error)
	GetByUUIDForUser(ctx context.Context, uuid string, userID int64) (*model.OutOfOfficeEntry, error)
	DeleteByUUIDForUser(ctx context.Context, uuid string, userID int64) (int64, error)
}

type OutOfOfficeStore struct {
	db *sql.DB
}

func NewOutOfOfficeStore(db *sql.DB) *OutOfOfficeStore {
	return &OutOfOfficeStore{db: db}
}

const oooCols = `id, uuid, start_time, end_time, user_id, to_user_id, created_at, updated_at`

// overlapPredicate matches rows whose [start_time, end_time] window intersects
// the given window: the row covers it, starts inside it, or ends inside it.
// It takes the window bounds as (start, end, start, end, start, end).
const overlapPredicate = `((start_time <= ? AND end_time >= ?)
	OR (start_time >= ? AND start_time <= ?)
	OR (end_time >= ? AND end_time <= ?))`

func overlapArgs(start, end time.Time) []any {
	s, e := start.UTC(), end.UTC()
	return []any{s, e, s, e, s, e}
}

func scanEntry(scanner interface{ Scan(...any) error }) (*model.OutOfOfficeEntry, error) {
	var e model.OutOfOfficeEntry
	var toUserID sql.NullInt64
	err := scanner.Scan(&e.ID, &e.UUID, &e.Start, &e.End, &e.UserID, &toUserID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Start = e.Start.UTC()
	e.End = e.End.UTC()
	if toUserID.Valid {
		e.ToUserID = &toUserID.Int64
	}
	return &e, nil
}

// InTx runs fn inside a single transaction. The transaction is committed when
// fn returns nil and rolled back otherwise.
func (s *OutOfOfficeStore) InTx(ctx context.Context, fn func(tx OutOfOfficeTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&oooTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByUUID returns the entry with the given external identifier, or nil.
func (s *OutOfOfficeStore) GetByUUID(ctx context.Context, uuid string) (*model.OutOfOfficeEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+oooCols+` FROM out_of_office_entries WHERE uuid = ?`, uuid)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get out of office entry: %w", err)
	}
	return e, nil
}

// ListActiveByUser returns userID's entries that end at or after now, latest
// start first, with the delegate's username attached.
func (s *OutOfOfficeStore) ListActiveByUser(ctx context.Context, userID int64, now time.Time) ([]model.OutOfOfficeListItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.uuid, e.start_time, e.end_time, e.to_user_id, u.username
		 FROM out_of_office_entries e
		 LEFT JOIN users u ON u.id = e.to_user_id
		 WHERE e.user_id = ? AND e.end_time >= ?
		 ORDER BY e.start_time DESC`,
		userID, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query out of office entries: %w", err)
	}
	defer rows.Close()

	items := []model.OutOfOfficeListItem{}
	for rows.Next() {
		var item model.OutOfOfficeListItem
		var toUserID sql.NullInt64
		var username sql.NullString

		if err := rows.Scan(&item.ID, &item.UUID, &item.Start, &item.End, &toUserID, &username); err != nil {
			return nil, fmt.Errorf("scan out of office entry: %w", err)
		}
		item.Start = item.Start.UTC()
		item.End = item.End.UTC()
		if toUserID.Valid {
			item.ToUserID = &toUserID.Int64
		}
		if username.Valid {
			item.ToUser = &model.DelegateRef{Username: username.String}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type oooTx struct {
	q querier
}

func (t *oooTx) FindOverlapping(ctx context.Context, userID int64, start, end time.Time) (*model.OutOfOfficeEntry, error) {
	args := append([]any{userID}, overlapArgs(start, end)...)
	row := t.q.QueryRowContext(ctx,
		`SELECT `+oooCols+` FROM out_of_office_entries
		 WHERE user_id = ? AND `+overlapPredicate+`
		 LIMIT 1`,
		args...,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find overlapping entry: %w", err)
	}
	return e, nil
}

// FindRedirectCycle returns an entry owned by fromUserID that redirects to
// toUserID within the given window, or nil.
func (t *oooTx) FindRedirectCycle(ctx context.Context, fromUserID, toUserID int64, start, end time.Time) (*model.OutOfOfficeEntry, error) {
	args := append([]any{fromUserID, toUserID}, overlapArgs(start, end)...)
	row := t.q.QueryRowContext(ctx,
		`SELECT `+oooCols+` FROM out_of_office_entries
		 WHERE user_id = ? AND to_user_id = ? AND `+overlapPredicate+`
		 LIMIT 1`,
		args...,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find redirect cycle: %w", err)
	}
	return e, nil
}

func (t *oooTx) Create(ctx context.Context, entry model.OutOfOfficeEntry) (*model.OutOfOfficeEntry, error) {
	var toUserID sql.NullInt64
	if entry.ToUserID != nil {
		toUserID = sql.NullInt64{Int64: *entry.ToUserID, Valid: true}
	}

	result, err := t.q.ExecContext(ctx,
		`INSERT INTO out_of_office_entries (uuid, start_time, end_time, user_id, to_user_id)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.UUID, entry.Start.UTC(), entry.End.UTC(), entry.UserID, toUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert out of office entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := t.q.QueryRowContext(ctx, `SELECT `+oooCols+` FROM out_of_office_entries WHERE id = ?`, id)
	created, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("query created entry: %w", err)
	}
	return created, nil
}

func (t *oooTx) GetByUUIDForUser(ctx context.Context, uuid string, userID int64) (*model.OutOfOfficeEntry, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+oooCols+` FROM out_of_office_entries WHERE uuid = ? AND user_id = ?`,
		uuid, userID,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get out of office entry: %w", err)
	}
	return e, nil
}

func (t *oooTx) DeleteByUUIDForUser(ctx context.Context, uuid string, userID int64) (int64, error) {
	result, err := t.q.ExecContext(ctx,
		`DELETE FROM out_of_office_entries WHERE uuid = ? AND user_id = ?`,
		uuid, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete out of office entry: %w", err)
	}
	return result.RowsAffected()
}
