// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, authorizes, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// BoardService owns every project, row, work item, comment and file
// operation. Each mutation follows the same shape:
//
//  1. validate input (no database access)
//  2. open a transaction with repo.WithinTx
//  3. Authorize the caller against the resource's project
//  4. perform the write (and any cascade) on the same transaction
//  5. after commit, remove blobs of deleted files
//
// Because steps 3 and 4 share the transaction, a project cannot change owner
// or disappear between the check and the write.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/obsidian/internal/apperror"
	"github.com/sakif/obsidian/internal/model"
	"github.com/sakif/obsidian/internal/repository"
)

// Validation limits. Lengths are in bytes.
const (
	MaxProjectNameLength = 100
	MaxRowNameLength     = 100
	MaxTitleLength       = 200
	MaxDescriptionLength = 10000
	MaxCommentLength     = 10000
)

// BlobStore persists uploaded file contents. storage.Disk implements it.
type BlobStore interface {
	// Save stores r and returns the public path recorded in model.File.Path.
	Save(ctx context.Context, r io.Reader, original string) (string, error)
	// Remove deletes the blob behind a path returned by Save.
	Remove(publicPath string) error
}

// BoardService handles business logic for boards.
//
// STRUCT FIELDS:
//   - repo: the store, including transactions (injected, not created here)
//   - blobs: where upload contents live
//   - logger: for structured logging of business events
type BoardService struct {
	repo   repository.BoardRepository
	blobs  BlobStore
	logger *slog.Logger
}

// NewBoardService creates a new BoardService.
func NewBoardService(repo repository.BoardRepository, blobs BlobStore, logger *slog.Logger) *BoardService {
	return &BoardService{
		repo:   repo,
		blobs:  blobs,
		logger: logger,
	}
}

// =========================================================================
// ROWS
// =========================================================================

// CreateRow adds a row to a project the caller owns.
func (s *BoardService) CreateRow(ctx context.Context, callerID, projectID int64, name string) (*model.Row, error) {
	name, err := requireText("name", name, MaxRowNameLength)
	if err != nil {
		return nil, err
	}

	row := &model.Row{Name: name, ProjectID: projectID}
	err = s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := Authorize(ctx, tx, callerID, Resource{KindProject, projectID}, AccessWrite); err != nil {
			return err
		}
		return tx.CreateRow(ctx, row)
	})
	if err != nil {
		return nil, fmt.Errorf("creating row: %w", err)
	}

	s.logger.Info("row created",
		slog.Int64("rowID", row.ID),
		slog.Int64("projectID", projectID),
	)
	return row, nil
}

// GetRow returns the row with its project. Rows are an editing view, so
// only the owner may load one on its own.
func (s *BoardService) GetRow(ctx context.Context, callerID, rowID int64) (*model.RowDetails, error) {
	var details *model.RowDetails
	err := s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		project, err := Authorize(ctx, tx, callerID, Resource{KindRow, rowID}, AccessWrite)
		if err != nil {
			return err
		}
		row, err := tx.GetRow(ctx, rowID)
		if err != nil {
			return err
		}
		details = &model.RowDetails{Row: *row, Project: *project}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// RenameRow changes a row's name.
func (s *BoardService) RenameRow(ctx context.Context, callerID, rowID int64, name string) (*model.Row, error) {
	name, err := requireText("name", name, MaxRowNameLength)
	if err != nil {
		return nil, err
	}

	var row *model.Row
	err = s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := Authorize(ctx, tx, callerID, Resource{KindRow, rowID}, AccessWrite); err != nil {
			return err
		}
		var err error
		if row, err = tx.GetRow(ctx, rowID); err != nil {
			return err
		}
		row.Name = name
		return tx.UpdateRow(ctx, row)
	})
	if err != nil {
		return nil, fmt.Errorf("renaming row %d: %w", rowID, err)
	}
	return row, nil
}

// DeleteRow removes the row and every work item, comment and file in it.
func (s *BoardService) DeleteRow(ctx context.Context, callerID, rowID int64) error {
	var removed []model.File
	err := s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := Authorize(ctx, tx, callerID, Resource{KindRow, rowID}, AccessWrite); err != nil {
			return err
		}
		var err error
		removed, err = tx.DeleteRow(ctx, rowID)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting row %d: %w", rowID, err)
	}

	s.logger.Info("row deleted", slog.Int64("rowID", rowID), slog.Int("files", len(removed)))
	s.removeBlobs(removed)
	return nil
}

// =========================================================================
// WORK ITEMS
// =========================================================================

// WorkItemUpdate carries the fields of a partial work item update.
// Nil fields are left unchanged. Setting RowID moves the item.
type WorkItemUpdate struct {
	Title       *string
	Description *string
	RowID       *int64
}

// CreateWorkItem adds a work item to a row of a project the caller owns.
func (s *BoardService) CreateWorkItem(ctx context.Context, callerID, rowID int64, title, description string) (*model.WorkItem, error) {
	title, err := requireText("title", title, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	description, err = optionalText("description", description, MaxDescriptionLength)
	if err != nil {
		return nil, err
	}

	item := &model.WorkItem{Title: title, Description: description, RowID: rowID}
	err = s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := Authorize(ctx, tx, callerID, Resource{KindRow, rowID}, AccessWrite); err != nil {
			return err
		}
		return tx.CreateWorkItem(ctx, item)
	})
	if err != nil {
		return nil, fmt.Errorf("creating work item: %w", err)
	}

	s.logger.Info("work item created",
		slog.Int64("workItemID", item.ID),
		slog.Int64("rowID", rowID),
	)
	return item, nil
}

// GetWorkItem returns the work item with its files and comments.
// Members of the project may read it as well as the owner.
func (s *BoardService) GetWorkItem(ctx context.Context, callerID, id int64) (*model.WorkItemDetails, error) {
	var details *model.WorkItemDetails
	err := s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := Authorize(ctx, tx, callerID, Resource{KindWorkItem, id}, AccessRead); err != nil {
			return err
		}
		var err error
		details, err = tx.GetWorkItemWithDetails(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// UpdateWorkItem applies a partial update.
//
// MOVING:
// A non-nil RowID moves the item. The target row must exist and belong to
// the same project as the item's current row; a card never leaves its board.
func (s *BoardService) UpdateWorkItem(ctx context.Context, callerID, id int64, upd WorkItemUpdate) (*model.WorkItem, error) {
	var title, description string
	var err error
	if upd.Title != nil {
		if title, err = requireText("title", *upd.Title, MaxTitleLength); err != nil {
			return nil, err
		}
	}
	if upd.Description != nil {
		if description, err = optionalText("description", *upd.Description, MaxDescriptionLength); err != nil {
			return nil, err
		}
	}
	if upd.RowID != nil && *upd.RowID <= 0 {
		return nil, apperror.ValidationFailed("rowId", "rowId must be a positive integer")
	}

	var item *model.WorkItem
	err = s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		project, err := Authorize(ctx, tx, callerID, Resource{KindWorkItem, id}, AccessWrite)
		if err != nil {
			return err
		}
		if item, err = tx.GetWorkItem(ctx, id); err != nil {
			return err
		}

		if upd.RowID != nil && *upd.RowID != item.RowID {
			target, err := tx.GetRow(ctx, *upd.RowID)
			if err != nil {
				return err
			}
			if target.ProjectID != project.ID {
				return apperror.ValidationFailed("rowId", "target row belongs to a different project")
			}
			item.RowID = target.ID
		}
		if upd.Title != nil {
			item.Title = title
		}
		if upd.Description != nil {
			item.Description = description
		}

		return tx.UpdateWorkItem(ctx, item)
	})
	if err != nil {
		return nil, fmt.Errorf("updating work item %d: %w", id, err)
	}

	s.logger.Info("work item updated",
		slog.Int64("workItemID", item.ID),
		slog.Int64("rowID", item.RowID),
	)
	return item, nil
}

// DeleteWorkItem removes the work item with its comments and files.
func (s *BoardService) DeleteWorkItem(ctx context.Context, callerID, id int64) error {
	var removed []model.File
	err := s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := Authorize(ctx, tx, callerID, Resource{KindWorkItem, id}, AccessWrite); err != nil {
			return err
		}
		var err error
		removed, err = tx.DeleteWorkItem(ctx, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting work item %d: %w", id, err)
	}

	s.logger.Info("work item deleted", slog.Int64("workItemID", id), slog.Int("files", len(removed)))
	s.removeBlobs(removed)
	return nil
}

// =========================================================================
// COMMENTS AND FILES
// =========================================================================

// AddComment records a comment by the caller. The returned comment carries
// its author.
func (s *BoardService) AddComment(ctx context.Context, callerID, workItemID int64, content string) (*model.Comment, error) {
	content, err := requireText("content", content, MaxCommentLength)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{Content: content, UserID: callerID, WorkItemID: workItemID}
	err = s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := Authorize(ctx, tx, callerID, Resource{KindWorkItem, workItemID}, AccessWrite); err != nil {
			return err
		}
		author, err := tx.GetUserByID(ctx, callerID)
		if err != nil {
			return err
		}
		if err := tx.CreateComment(ctx, comment); err != nil {
			return err
		}
		public := author.Public()
		comment.User = &public
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adding comment to work item %d: %w", workItemID, err)
	}

	s.logger.Info("comment added",
		slog.Int64("commentID", comment.ID),
		slog.Int64("workItemID", workItemID),
	)
	return comment, nil
}

// AttachFile stores r as a blob and records it on the work item.
//
// The blob is written outside any transaction so a slow upload never holds
// the database. Authorization is checked before the write and again when
// the record is inserted; if the insert fails the blob is removed.
func (s *BoardService) AttachFile(ctx context.Context, callerID, workItemID int64, filename string, r io.Reader) (*model.File, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, apperror.ValidationFailed("file", "file is required")
	}

	if _, err := Authorize(ctx, s.repo, callerID, Resource{KindWorkItem, workItemID}, AccessWrite); err != nil {
		return nil, fmt.Errorf("attaching file to work item %d: %w", workItemID, err)
	}

	publicPath, err := s.blobs.Save(ctx, r, filename)
	if err != nil {
		return nil, fmt.Errorf("attaching file to work item %d: %w", workItemID, err)
	}

	file := &model.File{Filename: filename, Path: publicPath, WorkItemID: workItemID}
	err = s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := Authorize(ctx, tx, callerID, Resource{KindWorkItem, workItemID}, AccessWrite); err != nil {
			return err
		}
		return tx.CreateFile(ctx, file)
	})
	if err != nil {
		s.removeBlobs([]model.File{*file})
		return nil, fmt.Errorf("attaching file to work item %d: %w", workItemID, err)
	}

	s.logger.Info("file attached",
		slog.Int64("fileID", file.ID),
		slog.Int64("workItemID", workItemID),
		slog.String("path", file.Path),
	)
	return file, nil
}

// removeBlobs deletes the stored contents of files whose records are gone.
// Failures are logged and otherwise ignored: the records are already
// deleted, and an orphaned blob is harmless.
func (s *BoardService) removeBlobs(files []model.File) {
	for _, f := range files {
		if err := s.blobs.Remove(f.Path); err != nil {
			s.logger.Warn("failed to remove blob",
				slog.Int64("fileID", f.ID),
				slog.String("path", f.Path),
				slog.String("error", err.Error()),
			)
		}
	}
}

// requireText trims value and checks it is non-empty and at most max bytes.
func requireText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperror.ValidationFailed(field, field+" is required")
	}
	return optionalText(field, value, max)
}

// optionalText trims value and checks it is at most max bytes.
func optionalText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if len(value) > max {
		return "", apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d characters or less", field, max))
	}
	return value, nil
}
