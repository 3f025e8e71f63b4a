package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/obsidian/internal/apperror"
	"github.com/sakif/obsidian/internal/model"
)

// CreateRow appends a row to its project. There is no rank column: the
// autoincrement id is the row's position.
func (db *DB) CreateRow(ctx context.Context, r *model.Row) error {
	r.CreatedAt = time.Now().UTC()

	result, err := db.q.ExecContext(ctx,
		`INSERT INTO board_rows (name, project_id, created_at) VALUES (?, ?, ?)`,
		r.Name, r.ProjectID, r.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("project", r.ProjectID)
		}
		return fmt.Errorf("sqlite: creating row: %w", err)
	}

	r.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading row id: %w", err)
	}
	return nil
}

func (db *DB) GetRow(ctx context.Context, id int64) (*model.Row, error) {
	var r model.Row
	err := db.q.QueryRowContext(ctx,
		`SELECT id, name, project_id, created_at FROM board_rows WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.ProjectID, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("row", id)
		}
		return nil, fmt.Errorf("sqlite: getting row %d: %w", id, err)
	}
	return &r, nil
}

// ListRows returns the project's rows in creation order.
func (db *DB) ListRows(ctx context.Context, projectID int64) ([]model.Row, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT id, name, project_id, created_at FROM board_rows
		 WHERE project_id = ? ORDER BY id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing rows of project %d: %w", projectID, err)
	}
	defer rows.Close()

	out := []model.Row{}
	for rows.Next() {
		var r model.Row
		if err := rows.Scan(&r.ID, &r.Name, &r.ProjectID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating rows: %w", err)
	}
	return out, nil
}

// UpdateRow renames the row. A row never changes project.
func (db *DB) UpdateRow(ctx context.Context, r *model.Row) error {
	result, err := db.q.ExecContext(ctx,
		`UPDATE board_rows SET name = ? WHERE id = ?`, r.Name, r.ID)
	if err != nil {
		return fmt.Errorf("sqlite: updating row %d: %w", r.ID, err)
	}
	return checkAffected(result, "row", r.ID)
}

// DeleteRow removes the row after cascading through its work items.
func (db *DB) DeleteRow(ctx context.Context, id int64) ([]model.File, error) {
	var removed []model.File
	err := db.atomic(ctx, func(tx *DB) error {
		var err error
		removed, err = tx.cascadeWorkItems(ctx, `SELECT id FROM work_items WHERE row_id = ?`, id)
		if err != nil {
			return err
		}
		result, err := tx.q.ExecContext(ctx, `DELETE FROM board_rows WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting row %d: %w", id, err)
		}
		return checkAffected(result, "row", id)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
