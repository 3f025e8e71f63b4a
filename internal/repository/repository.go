// Package repository declares the storage contracts the service layer depends on.
//
// Services receive these interfaces, never *sqlite.DB, so the persistence
// backend can be swapped (or faked in tests) without touching business rules.
package repository

import (
	"context"

	"github.com/sakif/obsidian/internal/model"
)

// UserRepository is the identity store.
type UserRepository interface {
	// CreateUser inserts the user and fills in ID and CreatedAt.
	// Returns apperror.ErrConflict if the email is already registered.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// ProjectRepository stores projects and their membership.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	// ListProjectsForUser returns projects the user owns or is a member of.
	ListProjectsForUser(ctx context.Context, userID int64) ([]model.Project, error)
	UpdateProject(ctx context.Context, project *model.Project) error
	// DeleteProject removes the project and every descendant. It returns the
	// file records that were removed so their blobs can be cleaned up.
	DeleteProject(ctx context.Context, id int64) ([]model.File, error)
	// GetProjectWithRows loads the board aggregate in one consistent read.
	GetProjectWithRows(ctx context.Context, id int64) (*model.ProjectBoard, error)

	AddMember(ctx context.Context, projectID, userID int64) error
	RemoveMember(ctx context.Context, projectID, userID int64) error
	IsMember(ctx context.Context, projectID, userID int64) (bool, error)
	ListMembers(ctx context.Context, projectID int64) ([]model.PublicUser, error)
}

// RowRepository stores rows.
type RowRepository interface {
	CreateRow(ctx context.Context, row *model.Row) error
	GetRow(ctx context.Context, id int64) (*model.Row, error)
	ListRows(ctx context.Context, projectID int64) ([]model.Row, error)
	UpdateRow(ctx context.Context, row *model.Row) error
	// DeleteRow removes the row, its work items, and their comments and files.
	DeleteRow(ctx context.Context, id int64) ([]model.File, error)
}

// WorkItemRepository stores work items.
type WorkItemRepository interface {
	CreateWorkItem(ctx context.Context, item *model.WorkItem) error
	GetWorkItem(ctx context.Context, id int64) (*model.WorkItem, error)
	// UpdateWorkItem persists title, description and row assignment.
	UpdateWorkItem(ctx context.Context, item *model.WorkItem) error
	// DeleteWorkItem removes comments and files first, then the work item.
	DeleteWorkItem(ctx context.Context, id int64) ([]model.File, error)
	GetWorkItemWithDetails(ctx context.Context, id int64) (*model.WorkItemDetails, error)
}

// AttachmentRepository stores comments and file records.
type AttachmentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id int64) (*model.Comment, error)
	// ListComments returns the work item's comments, most recent first.
	ListComments(ctx context.Context, workItemID int64) ([]model.Comment, error)

	CreateFile(ctx context.Context, file *model.File) error
	GetFile(ctx context.Context, id int64) (*model.File, error)
	ListFiles(ctx context.Context, workItemID int64) ([]model.File, error)
}

// BoardRepository is everything the board service needs, plus transactions.
type BoardRepository interface {
	UserRepository
	ProjectRepository
	RowRepository
	WorkItemRepository
	AttachmentRepository

	// WithinTx runs fn against a repository bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	// Calling WithinTx on a repository that is already inside a transaction
	// reuses that transaction.
	WithinTx(ctx context.Context, fn func(tx BoardRepository) error) error
}
