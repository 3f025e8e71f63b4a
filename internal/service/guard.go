package service

import (
	"context"
	"fmt"

	"github.com/sakif/obsidian/internal/apperror"
	"github.com/sakif/obsidian/internal/model"
)

// Kind names the type of entity a Resource refers to.
type Kind int

const (
	KindProject Kind = iota
	KindRow
	KindWorkItem
	KindComment
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindRow:
		return "row"
	case KindWorkItem:
		return "work item"
	case KindComment:
		return "comment"
	case KindFile:
		return "file"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Resource identifies one entity on a board.
type Resource struct {
	Kind Kind
	ID   int64
}

// Access is the level of access a caller asks for.
type Access int

const (
	// AccessRead is granted to the project owner and its members.
	AccessRead Access = iota
	// AccessWrite is granted to the project owner only.
	AccessWrite
)

// errNotOwner is the message existing web clients expect.
var errNotOwner = apperror.Forbidden("Unauthorized")

// GuardRepository is the read-only slice of the store Authorize needs.
type GuardRepository interface {
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	GetRow(ctx context.Context, id int64) (*model.Row, error)
	GetWorkItem(ctx context.Context, id int64) (*model.WorkItem, error)
	GetComment(ctx context.Context, id int64) (*model.Comment, error)
	GetFile(ctx context.Context, id int64) (*model.File, error)
	IsMember(ctx context.Context, projectID, userID int64) (bool, error)
}

// Authorize resolves res to the project it belongs to by following parent
// references (comment or file → work item → row → project) and checks that callerID
// holds the requested access to it.
//
// A broken link anywhere on the way returns apperror.ErrNotFound for that
// link; a failed check returns apperror.ErrForbidden. On success the owning
// project is returned so callers do not have to load it again.
//
// Run it on the same transaction as the mutation it protects.
func Authorize(ctx context.Context, repo GuardRepository, callerID int64, res Resource, access Access) (*model.Project, error) {
	projectID, err := resolveProjectID(ctx, repo, res)
	if err != nil {
		return nil, err
	}

	project, err := repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if project.OwnerID == callerID {
		return project, nil
	}
	if access == AccessWrite {
		return nil, errNotOwner
	}

	member, err := repo.IsMember(ctx, project.ID, callerID)
	if err != nil {
		return nil, fmt.Errorf("service/guard: checking membership: %w", err)
	}
	if !member {
		return nil, errNotOwner
	}
	return project, nil
}

// resolveProjectID walks up from res to its project id.
func resolveProjectID(ctx context.Context, repo GuardRepository, res Resource) (int64, error) {
	kind, id := res.Kind, res.ID
	for {
		switch kind {
		case KindProject:
			return id, nil

		case KindRow:
			row, err := repo.GetRow(ctx, id)
			if err != nil {
				return 0, err
			}
			kind, id = KindProject, row.ProjectID

		case KindWorkItem:
			item, err := repo.GetWorkItem(ctx, id)
			if err != nil {
				return 0, err
			}
			kind, id = KindRow, item.RowID

		case KindComment:
			comment, err := repo.GetComment(ctx, id)
			if err != nil {
				return 0, err
			}
			kind, id = KindWorkItem, comment.WorkItemID

		case KindFile:
			file, err := repo.GetFile(ctx, id)
			if err != nil {
				return 0, err
			}
			kind, id = KindWorkItem, file.WorkItemID

		default:
			return 0, fmt.Errorf("service/guard: unknown resource kind %v", kind)
		}
	}
}
