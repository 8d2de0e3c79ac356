package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/jmoiron/sqlx"
)

type Repo struct {
	DB *sqlx.DB
}

type workItemRow struct {
	ID        string         `db:"id"`
	Position  int            `db:"position"`
	Status    string         `db:"status"`
	Section   string         `db:"section"`
	CRNumber  sql.NullString `db:"cr_number"`
	Payload   string         `db:"payload_json"`
	UpdatedAt string         `db:"updated_at"`
}

func toRow(pos int, w domain.WorkItem) (workItemRow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return workItemRow{}, fmt.Errorf("encode work %s: %w", w.ID, err)
	}
	row := workItemRow{
		ID:        w.ID,
		Position:  pos,
		Status:    string(w.Status),
		Section:   w.ForwardedTo.Section,
		Payload:   string(data),
		UpdatedAt: w.UpdatedAt,
	}
	if w.CRNumber != nil {
		row.CRNumber = sql.NullString{String: *w.CRNumber, Valid: true}
	}
	return row, nil
}

func fromRow(row workItemRow) (domain.WorkItem, error) {
	var w domain.WorkItem
	if err := json.Unmarshal([]byte(row.Payload), &w); err != nil {
		return w, fmt.Errorf("decode work %s: %w", row.ID, err)
	}
	return w, nil
}

// ReplaceWorkItems swaps the whole collection in one transaction, keeping
// the slice order.
func (r Repo) ReplaceWorkItems(ctx context.Context, items []domain.WorkItem) error {
	rows := make([]workItemRow, 0, len(items))
	for i, it := range items {
		row, err := toRow(i, it)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM work_items`); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO work_items(id,position,status,section,cr_number,payload_json,updated_at)
			VALUES (:id,:position,:status,:section,:cr_number,:payload_json,:updated_at)`, row); err != nil {
			return fmt.Errorf("insert work %s: %w", row.ID, err)
		}
	}
	return tx.Commit()
}

func (r Repo) ListWorkItems(ctx context.Context) ([]domain.WorkItem, error) {
	var rows []workItemRow
	if err := r.DB.SelectContext(ctx, &rows, `SELECT id,position,status,section,cr_number,payload_json,updated_at FROM work_items ORDER BY position ASC`); err != nil {
		return nil, err
	}
	res := make([]domain.WorkItem, 0, len(rows))
	for _, row := range rows {
		w, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, nil
}

func (r Repo) ClearWorkItems(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM work_items`)
	return err
}

// CountWorkItemsByStatus groups the stored works by status, draft included as "".
func (r Repo) CountWorkItemsByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := r.DB.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM work_items GROUP BY status`); err != nil {
		return nil, err
	}
	res := map[string]int{}
	for _, row := range rows {
		res[row.Status] = row.N
	}
	return res, nil
}

type EventFilters struct {
	Type     string
	EntityID string
	ActorID  string
	// Cursor pages backwards: only events with a smaller id are returned.
	Cursor int64
	Limit  int
}

// LatestEvents returns events newest first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.ActorID != "" {
		clauses = append(clauses, "actor_id=?")
		args = append(args, f.ActorID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,entity_id,actor_id,role,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, f.Limit)
	var res []domain.Event
	if err := r.DB.SelectContext(ctx, &res, query, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var res []domain.Event
	err := r.DB.SelectContext(ctx, &res, `SELECT id,ts,type,entity_id,actor_id,role,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.GetContext(ctx, &id, `SELECT COALESCE(MAX(id),0) FROM events`); err != nil {
		return 0, err
	}
	return id, nil
}
