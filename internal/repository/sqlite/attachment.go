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

// CreateComment inserts a comment stamped with the current time.
func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	c.CreatedAt = time.Now().UTC()

	result, err := db.q.ExecContext(ctx,
		`INSERT INTO comments (content, user_id, work_item_id, created_at) VALUES (?, ?, ?, ?)`,
		c.Content, c.UserID, c.WorkItemID, c.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("work item", c.WorkItemID)
		}
		return fmt.Errorf("sqlite: creating comment: %w", err)
	}

	c.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading comment id: %w", err)
	}
	return nil
}

func (db *DB) GetComment(ctx context.Context, id int64) (*model.Comment, error) {
	var c model.Comment
	err := db.q.QueryRowContext(ctx,
		`SELECT id, content, user_id, work_item_id, created_at FROM comments WHERE id = ?`, id,
	).Scan(&c.ID, &c.Content, &c.UserID, &c.WorkItemID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %d: %w", id, err)
	}
	return &c, nil
}

// ListComments returns comments newest first, each with its author.
// Ties on created_at fall back to id so the order is stable.
func (db *DB) ListComments(ctx context.Context, workItemID int64) ([]model.Comment, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT c.id, c.content, c.user_id, c.work_item_id, c.created_at, u.email, u.name
		 FROM comments c JOIN users u ON u.id = c.user_id
		 WHERE c.work_item_id = ?
		 ORDER BY c.created_at DESC, c.id DESC`,
		workItemID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of work item %d: %w", workItemID, err)
	}
	defer rows.Close()

	out := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		author := model.PublicUser{}
		if err := rows.Scan(&c.ID, &c.Content, &c.UserID, &c.WorkItemID, &c.CreatedAt,
			&author.Email, &author.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment: %w", err)
		}
		author.ID = c.UserID
		c.User = &author
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return out, nil
}

// CreateFile records an uploaded blob against a work item.
func (db *DB) CreateFile(ctx context.Context, f *model.File) error {
	f.CreatedAt = time.Now().UTC()

	result, err := db.q.ExecContext(ctx,
		`INSERT INTO files (filename, path, work_item_id, created_at) VALUES (?, ?, ?, ?)`,
		f.Filename, f.Path, f.WorkItemID, f.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("work item", f.WorkItemID)
		}
		return fmt.Errorf("sqlite: creating file: %w", err)
	}

	f.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading file id: %w", err)
	}
	return nil
}

func (db *DB) GetFile(ctx context.Context, id int64) (*model.File, error) {
	var f model.File
	err := db.q.QueryRowContext(ctx,
		`SELECT id, filename, path, work_item_id, created_at FROM files WHERE id = ?`, id,
	).Scan(&f.ID, &f.Filename, &f.Path, &f.WorkItemID, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("file", id)
		}
		return nil, fmt.Errorf("sqlite: getting file %d: %w", id, err)
	}
	return &f, nil
}

// ListFiles returns the work item's files in upload order.
func (db *DB) ListFiles(ctx context.Context, workItemID int64) ([]model.File, error) {
	return db.listFilesWhere(ctx, `work_item_id = ?`, workItemID)
}

func (db *DB) listFilesWhere(ctx context.Context, where string, args ...any) ([]model.File, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT id, filename, path, work_item_id, created_at FROM files WHERE `+where+` ORDER BY id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing files: %w", err)
	}
	defer rows.Close()

	out := []model.File{}
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.ID, &f.Filename, &f.Path, &f.WorkItemID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning file: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating files: %w", err)
	}
	return out, nil
}
