package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/obsidian/internal/apperror"
	"github.com/sakif/obsidian/internal/model"
	"github.com/sakif/obsidian/internal/repository"
)

// ProjectUpdate carries the fields of a partial project update.
// Nil fields are left unchanged.
type ProjectUpdate struct {
	Name        *string
	Description *string
}

// CreateProject creates a project owned by the caller.
func (s *BoardService) CreateProject(ctx context.Context, callerID int64, name, description string) (*model.Project, error) {
	name, err := requireText("name", name, MaxProjectNameLength)
	if err != nil {
		return nil, err
	}
	description, err = optionalText("description", description, MaxDescriptionLength)
	if err != nil {
		return nil, err
	}

	project := &model.Project{Name: name, Description: description, OwnerID: callerID}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		s.logger.Error("failed to create project",
			slog.Int64("ownerID", callerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Info("project created",
		slog.Int64("projectID", project.ID),
		slog.Int64("ownerID", callerID),
	)
	return project, nil
}

// ListProjects returns every project the caller owns or is a member of.
func (s *BoardService) ListProjects(ctx context.Context, callerID int64) ([]model.Project, error) {
	projects, err := s.repo.ListProjectsForUser(ctx, callerID)
	if err != nil {
		s.logger.Error("failed to list projects", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// GetProject returns the whole board: rows with their work items, and members.
func (s *BoardService) GetProject(ctx context.Context, callerID, projectID int64) (*model.ProjectBoard, error) {
	var board *model.ProjectBoard
	err := s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := Authorize(ctx, tx, callerID, Resource{KindProject, projectID}, AccessRead); err != nil {
			return err
		}
		var err error
		board, err = tx.GetProjectWithRows(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// UpdateProject changes name and/or description.
func (s *BoardService) UpdateProject(ctx context.Context, callerID, projectID int64, upd ProjectUpdate) (*model.Project, error) {
	var name, description string
	var err error
	if upd.Name != nil {
		if name, err = requireText("name", *upd.Name, MaxProjectNameLength); err != nil {
			return nil, err
		}
	}
	if upd.Description != nil {
		if description, err = optionalText("description", *upd.Description, MaxDescriptionLength); err != nil {
			return nil, err
		}
	}

	var project *model.Project
	err = s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		var err error
		project, err = Authorize(ctx, tx, callerID, Resource{KindProject, projectID}, AccessWrite)
		if err != nil {
			return err
		}
		if upd.Name != nil {
			project.Name = name
		}
		if upd.Description != nil {
			project.Description = description
		}
		return tx.UpdateProject(ctx, project)
	})
	if err != nil {
		return nil, fmt.Errorf("updating project %d: %w", projectID, err)
	}

	s.logger.Info("project updated", slog.Int64("projectID", projectID))
	return project, nil
}

// DeleteProject removes the project with all rows, work items, comments,
// files and memberships beneath it.
func (s *BoardService) DeleteProject(ctx context.Context, callerID, projectID int64) error {
	var removed []model.File
	err := s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := Authorize(ctx, tx, callerID, Resource{KindProject, projectID}, AccessWrite); err != nil {
			return err
		}
		var err error
		removed, err = tx.DeleteProject(ctx, projectID)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting project %d: %w", projectID, err)
	}

	s.logger.Info("project deleted", slog.Int64("projectID", projectID), slog.Int("files", len(removed)))
	s.removeBlobs(removed)
	return nil
}

// AddMember grants read access to the user registered under email and
// returns the updated member list. Adding an existing member is a no-op.
func (s *BoardService) AddMember(ctx context.Context, callerID, projectID int64, email string) ([]model.PublicUser, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}

	var members []model.PublicUser
	err := s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		project, err := Authorize(ctx, tx, callerID, Resource{KindProject, projectID}, AccessWrite)
		if err != nil {
			return err
		}

		user, err := tx.GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return apperror.ValidationFailed("email", "no user registered with that email")
			}
			return err
		}
		if user.ID == project.OwnerID {
			return apperror.ValidationFailed("email", "the owner is already part of the project")
		}

		if err := tx.AddMember(ctx, projectID, user.ID); err != nil {
			return err
		}
		members, err = tx.ListMembers(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("adding member to project %d: %w", projectID, err)
	}

	s.logger.Info("member added", slog.Int64("projectID", projectID), slog.Int("members", len(members)))
	return members, nil
}

// RemoveMember revokes a member's access.
func (s *BoardService) RemoveMember(ctx context.Context, callerID, projectID, userID int64) error {
	err := s.repo.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := Authorize(ctx, tx, callerID, Resource{KindProject, projectID}, AccessWrite); err != nil {
			return err
		}
		return tx.RemoveMember(ctx, projectID, userID)
	})
	if err != nil {
		return fmt.Errorf("removing member %d from project %d: %w", userID, projectID, err)
	}

	s.logger.Info("member removed", slog.Int64("projectID", projectID), slog.Int64("userID", userID))
	return nil
}
