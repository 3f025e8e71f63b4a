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

const projectColumns = `id, name, description, owner_id, created_at, updated_at`

// CreateProject inserts the project and fills in ID and timestamps.
func (db *DB) CreateProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	result, err := db.q.ExecContext(ctx,
		`INSERT INTO projects (name, description, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.OwnerID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", p.OwnerID)
		}
		return fmt.Errorf("sqlite: creating project: %w", err)
	}

	p.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading project id: %w", err)
	}
	return nil
}

// GetProject retrieves a single project by id.
func (db *DB) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	var p model.Project
	err := db.q.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("project", id)
		}
		return nil, fmt.Errorf("sqlite: getting project %d: %w", id, err)
	}
	return &p, nil
}

// ListProjectsForUser returns the union of owned and member projects,
// oldest first. UNION (not UNION ALL) collapses an owner who is also listed
// as a member into a single entry.
func (db *DB) ListProjectsForUser(ctx context.Context, userID int64) ([]model.Project, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = ?
		 UNION
		 SELECT p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at
		 FROM projects p JOIN project_members m ON m.project_id = p.id
		 WHERE m.user_id = ?
		 ORDER BY id`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects for user %d: %w", userID, err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating projects: %w", err)
	}
	return projects, nil
}

// UpdateProject persists name and description. Ownership never changes.
func (db *DB) UpdateProject(ctx context.Context, p *model.Project) error {
	p.UpdatedAt = time.Now().UTC()

	result, err := db.q.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Description, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating project %d: %w", p.ID, err)
	}
	return checkAffected(result, "project", p.ID)
}

// DeleteProject removes the project and everything beneath it in one
// transaction: comments and files, work items, rows, memberships, then the
// project itself.
func (db *DB) DeleteProject(ctx context.Context, id int64) ([]model.File, error) {
	var removed []model.File
	err := db.atomic(ctx, func(tx *DB) error {
		var err error
		removed, err = tx.cascadeWorkItems(ctx,
			`SELECT id FROM work_items WHERE row_id IN (SELECT id FROM board_rows WHERE project_id = ?)`, id)
		if err != nil {
			return err
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM board_rows WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting rows of project %d: %w", id, err)
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting members of project %d: %w", id, err)
		}
		result, err := tx.q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting project %d: %w", id, err)
		}
		return checkAffected(result, "project", id)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// GetProjectWithRows loads the project board: rows in creation order, each
// with its work items, plus the member list. All reads share one
// transaction so the board is a consistent snapshot.
func (db *DB) GetProjectWithRows(ctx context.Context, id int64) (*model.ProjectBoard, error) {
	var board *model.ProjectBoard
	err := db.atomic(ctx, func(tx *DB) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}

		rowList, err := tx.ListRows(ctx, id)
		if err != nil {
			return err
		}

		items, err := tx.listWorkItemsWhere(ctx,
			`row_id IN (SELECT id FROM board_rows WHERE project_id = ?)`, id)
		if err != nil {
			return err
		}
		byRow := make(map[int64][]model.WorkItem, len(rowList))
		for _, it := range items {
			byRow[it.RowID] = append(byRow[it.RowID], it)
		}

		members, err := tx.ListMembers(ctx, id)
		if err != nil {
			return err
		}

		board = &model.ProjectBoard{
			Project: *p,
			Rows:    make([]model.RowWithItems, 0, len(rowList)),
			Members: members,
		}
		for _, r := range rowList {
			wi := byRow[r.ID]
			if wi == nil {
				wi = []model.WorkItem{}
			}
			board.Rows = append(board.Rows, model.RowWithItems{Row: r, WorkItems: wi})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// AddMember grants userID read access to the project. Adding an existing
// member is a no-op.
func (db *DB) AddMember(ctx context.Context, projectID, userID int64) error {
	_, err := db.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO project_members (project_id, user_id) VALUES (?, ?)`,
		projectID, userID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("project", projectID)
		}
		return fmt.Errorf("sqlite: adding member %d to project %d: %w", userID, projectID, err)
	}
	return nil
}

// RemoveMember revokes membership. Returns NotFound if userID was not a member.
func (db *DB) RemoveMember(ctx context.Context, projectID, userID int64) error {
	result, err := db.q.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing member %d from project %d: %w", userID, projectID, err)
	}
	return checkAffected(result, "member", userID)
}

func (db *DB) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	var n int
	err := db.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking membership: %w", err)
	}
	return n > 0, nil
}

// ListMembers returns the public summaries of the project's members, by user id.
func (db *DB) ListMembers(ctx context.Context, projectID int64) ([]model.PublicUser, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT u.id, u.email, u.name
		 FROM users u JOIN project_members m ON m.user_id = u.id
		 WHERE m.project_id = ?
		 ORDER BY u.id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members of project %d: %w", projectID, err)
	}
	defer rows.Close()

	members := []model.PublicUser{}
	for rows.Next() {
		var u model.PublicUser
		if err := rows.Scan(&u.ID, &u.Email, &u.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning member row: %w", err)
		}
		members = append(members, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating members: %w", err)
	}
	return members, nil
}
