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

const workItemColumns = `id, title, description, row_id, created_at, updated_at`

func (db *DB) CreateWorkItem(ctx context.Context, it *model.WorkItem) error {
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now

	result, err := db.q.ExecContext(ctx,
		`INSERT INTO work_items (title, description, row_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		it.Title, it.Description, it.RowID, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("row", it.RowID)
		}
		return fmt.Errorf("sqlite: creating work item: %w", err)
	}

	it.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading work item id: %w", err)
	}
	return nil
}

func (db *DB) GetWorkItem(ctx context.Context, id int64) (*model.WorkItem, error) {
	var it model.WorkItem
	err := db.q.QueryRowContext(ctx,
		`SELECT `+workItemColumns+` FROM work_items WHERE id = ?`, id,
	).Scan(&it.ID, &it.Title, &it.Description, &it.RowID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("work item", id)
		}
		return nil, fmt.Errorf("sqlite: getting work item %d: %w", id, err)
	}
	return &it, nil
}

// listWorkItemsWhere lists work items matching a fixed WHERE clause.
// where is always a constant from this package, never caller input.
func (db *DB) listWorkItemsWhere(ctx context.Context, where string, args ...any) ([]model.WorkItem, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT `+workItemColumns+` FROM work_items WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing work items: %w", err)
	}
	defer rows.Close()

	out := []model.WorkItem{}
	for rows.Next() {
		var it model.WorkItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.RowID, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning work item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating work items: %w", err)
	}
	return out, nil
}

// UpdateWorkItem persists title, description and row_id. Reassigning
// row_id is how a work item moves between rows.
func (db *DB) UpdateWorkItem(ctx context.Context, it *model.WorkItem) error {
	it.UpdatedAt = time.Now().UTC()

	result, err := db.q.ExecContext(ctx,
		`UPDATE work_items SET title = ?, description = ?, row_id = ?, updated_at = ?
		 WHERE id = ?`,
		it.Title, it.Description, it.RowID, it.UpdatedAt, it.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("row", it.RowID)
		}
		return fmt.Errorf("sqlite: updating work item %d: %w", it.ID, err)
	}
	return checkAffected(result, "work item", it.ID)
}

// DeleteWorkItem removes the work item's comments and files, then the item.
func (db *DB) DeleteWorkItem(ctx context.Context, id int64) ([]model.File, error) {
	var removed []model.File
	err := db.atomic(ctx, func(tx *DB) error {
		if _, err := tx.GetWorkItem(ctx, id); err != nil {
			return err
		}
		var err error
		removed, err = tx.cascadeWorkItems(ctx, `SELECT ?`, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// cascadeWorkItems deletes every work item selected by scope (a constant
// subquery yielding work item ids, with a single ? bound to arg) together with
// their comments and files. It returns the deleted file records. It must run
// inside a transaction.
func (db *DB) cascadeWorkItems(ctx context.Context, scope string, arg int64) ([]model.File, error) {
	files, err := db.listFilesWhere(ctx, `work_item_id IN (`+scope+`)`, arg)
	if err != nil {
		return nil, err
	}

	steps := []struct {
		what  string
		query string
	}{
		{"comments", `DELETE FROM comments WHERE work_item_id IN (` + scope + `)`},
		{"files", `DELETE FROM files WHERE work_item_id IN (` + scope + `)`},
		{"work items", `DELETE FROM work_items WHERE id IN (` + scope + `)`},
	}
	for _, s := range steps {
		if _, err := db.q.ExecContext(ctx, s.query, arg); err != nil {
			return nil, fmt.Errorf("sqlite: cascading delete of %s: %w", s.what, err)
		}
	}
	return files, nil
}

// GetWorkItemWithDetails loads a work item with its files (oldest first) and
// comments (most recent first), in one transaction.
func (db *DB) GetWorkItemWithDetails(ctx context.Context, id int64) (*model.WorkItemDetails, error) {
	var details *model.WorkItemDetails
	err := db.atomic(ctx, func(tx *DB) error {
		it, err := tx.GetWorkItem(ctx, id)
		if err != nil {
			return err
		}
		files, err := tx.ListFiles(ctx, id)
		if err != nil {
			return err
		}
		comments, err := tx.ListComments(ctx, id)
		if err != nil {
			return err
		}
		details = &model.WorkItemDetails{WorkItem: *it, Files: files, Comments: comments}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}
