package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/obsidian/internal/apperror"
	"github.com/sakif/obsidian/internal/model"
	"github.com/sakif/obsidian/internal/repository"
)

// fixture is a small board: one owner, one project, two rows, one work item
// in the first row carrying a comment and a file.
type fixture struct {
	owner   *model.User
	project *model.Project
	todo    *model.Row
	done    *model.Row
	item    *model.WorkItem
	comment *model.Comment
	file    *model.File
}

// workItemsIn lists the work items currently assigned to rowID.
func workItemsIn(t *testing.T, db *DB, rowID int64) []model.WorkItem {
	t.Helper()
	items, err := db.listWorkItemsWhere(context.Background(), `row_id = ?`, rowID)
	if err != nil {
		t.Fatalf("listing work items of row %d: %v", rowID, err)
	}
	return items
}

func seedBoard(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{owner: createTestUser(t, db, "owner@x.com")}

	f.project = &model.Project{Name: "P1", OwnerID: f.owner.ID}
	if err := db.CreateProject(ctx, f.project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	f.todo = &model.Row{Name: "Todo", ProjectID: f.project.ID}
	if err := db.CreateRow(ctx, f.todo); err != nil {
		t.Fatalf("CreateRow(todo) error = %v", err)
	}
	f.done = &model.Row{Name: "Done", ProjectID: f.project.ID}
	if err := db.CreateRow(ctx, f.done); err != nil {
		t.Fatalf("CreateRow(done) error = %v", err)
	}
	f.item = &model.WorkItem{Title: "Task A", RowID: f.todo.ID}
	if err := db.CreateWorkItem(ctx, f.item); err != nil {
		t.Fatalf("CreateWorkItem() error = %v", err)
	}
	f.comment = &model.Comment{Content: "first", UserID: f.owner.ID, WorkItemID: f.item.ID}
	if err := db.CreateComment(ctx, f.comment); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	f.file = &model.File{Filename: "a.txt", Path: "/uploads/1-a.txt", WorkItemID: f.item.ID}
	if err := db.CreateFile(ctx, f.file); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	return f
}

func TestSeedBoard_AssignsSequentialIDs(t *testing.T) {
	db := newTestDB(t)
	f := seedBoard(t, db)

	if f.project.ID != 1 || f.todo.ID != 1 || f.done.ID != 2 || f.item.ID != 1 {
		t.Errorf("ids = project %d, rows %d/%d, item %d; want 1, 1/2, 1",
			f.project.ID, f.todo.ID, f.done.ID, f.item.ID)
	}
	if f.item.RowID != f.todo.ID {
		t.Errorf("item.RowID = %d, want %d", f.item.RowID, f.todo.ID)
	}
}

func TestCreateRow_UnknownProject(t *testing.T) {
	db := newTestDB(t)

	err := db.CreateRow(context.Background(), &model.Row{Name: "orphan", ProjectID: 42})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("CreateRow() error = %v, want ErrNotFound", err)
	}
}

func TestCreateWorkItem_UnknownRow(t *testing.T) {
	db := newTestDB(t)

	err := db.CreateWorkItem(context.Background(), &model.WorkItem{Title: "orphan", RowID: 42})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("CreateWorkItem() error = %v, want ErrNotFound", err)
	}
}

func TestListProjectsForUser_OwnedAndMember(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedBoard(t, db)
	guest := createTestUser(t, db, "guest@x.com")

	other := &model.Project{Name: "Guest's own", OwnerID: guest.ID}
	if err := db.CreateProject(ctx, other); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	got, err := db.ListProjectsForUser(ctx, guest.ID)
	if err != nil {
		t.Fatalf("ListProjectsForUser() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != other.ID {
		t.Fatalf("before membership got %+v, want only project %d", got, other.ID)
	}

	if err := db.AddMember(ctx, f.project.ID, guest.ID); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	// Adding twice is a no-op.
	if err := db.AddMember(ctx, f.project.ID, guest.ID); err != nil {
		t.Fatalf("AddMember() second call error = %v", err)
	}

	got, err = db.ListProjectsForUser(ctx, guest.ID)
	if err != nil {
		t.Fatalf("ListProjectsForUser() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("after membership got %d projects, want 2", len(got))
	}
	if got[0].ID != f.project.ID || got[1].ID != other.ID {
		t.Errorf("projects = [%d %d], want [%d %d]", got[0].ID, got[1].ID, f.project.ID, other.ID)
	}

	ok, err := db.IsMember(ctx, f.project.ID, guest.ID)
	if err != nil || !ok {
		t.Errorf("IsMember() = %v, %v; want true, nil", ok, err)
	}

	if err := db.RemoveMember(ctx, f.project.ID, guest.ID); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if err := db.RemoveMember(ctx, f.project.ID, guest.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("RemoveMember() twice error = %v, want ErrNotFound", err)
	}
}

func TestGetProjectWithRows(t *testing.T) {
	db := newTestDB(t)
	f := seedBoard(t, db)

	board, err := db.GetProjectWithRows(context.Background(), f.project.ID)
	if err != nil {
		t.Fatalf("GetProjectWithRows() error = %v", err)
	}

	if board.Name != "P1" {
		t.Errorf("Name = %q, want P1", board.Name)
	}
	if len(board.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(board.Rows))
	}
	if board.Rows[0].Name != "Todo" || board.Rows[1].Name != "Done" {
		t.Errorf("rows out of creation order: %q, %q", board.Rows[0].Name, board.Rows[1].Name)
	}
	if len(board.Rows[0].WorkItems) != 1 || board.Rows[0].WorkItems[0].ID != f.item.ID {
		t.Errorf("Todo work items = %+v, want [%d]", board.Rows[0].WorkItems, f.item.ID)
	}
	if board.Rows[1].WorkItems == nil || len(board.Rows[1].WorkItems) != 0 {
		t.Errorf("Done work items = %#v, want empty non-nil slice", board.Rows[1].WorkItems)
	}
	if board.Members == nil {
		t.Error("Members should be an empty slice, not nil")
	}
}

func TestUpdateWorkItem_MovesBetweenRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedBoard(t, db)

	f.item.RowID = f.done.ID
	if err := db.UpdateWorkItem(ctx, f.item); err != nil {
		t.Fatalf("UpdateWorkItem() error = %v", err)
	}

	inTodo := workItemsIn(t, db, f.todo.ID)
	inDone := workItemsIn(t, db, f.done.ID)
	if len(inTodo) != 0 {
		t.Errorf("Todo still holds %d items after move", len(inTodo))
	}
	if len(inDone) != 1 || inDone[0].ID != f.item.ID {
		t.Errorf("Done holds %+v, want item %d", inDone, f.item.ID)
	}
}

func TestUpdateWorkItem_UnknownRowIsRejected(t *testing.T) {
	db := newTestDB(t)
	f := seedBoard(t, db)

	f.item.RowID = 999
	err := db.UpdateWorkItem(context.Background(), f.item)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateWorkItem() error = %v, want ErrNotFound", err)
	}
}

func TestListComments_MostRecentFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedBoard(t, db)

	time.Sleep(2 * time.Millisecond)
	second := &model.Comment{Content: "second", UserID: f.owner.ID, WorkItemID: f.item.ID}
	if err := db.CreateComment(ctx, second); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}

	comments, err := db.ListComments(ctx, f.item.ID)
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("len = %d, want 2", len(comments))
	}
	if comments[0].Content != "second" || comments[1].Content != "first" {
		t.Errorf("order = [%q %q], want [second first]", comments[0].Content, comments[1].Content)
	}
	if comments[0].User == nil || comments[0].User.Email != "owner@x.com" {
		t.Errorf("comment author = %+v, want owner@x.com", comments[0].User)
	}
}

func TestDeleteWorkItem_CascadesToCommentsAndFiles(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedBoard(t, db)

	removed, err := db.DeleteWorkItem(ctx, f.item.ID)
	if err != nil {
		t.Fatalf("DeleteWorkItem() error = %v", err)
	}
	if len(removed) != 1 || removed[0].Path != f.file.Path {
		t.Errorf("removed files = %+v, want [%s]", removed, f.file.Path)
	}

	if _, err := db.GetWorkItem(ctx, f.item.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("work item still present: %v", err)
	}
	if _, err := db.GetComment(ctx, f.comment.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("comment still present: %v", err)
	}
	if _, err := db.GetFile(ctx, f.file.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("file still present: %v", err)
	}
}

func TestDeleteWorkItem_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.DeleteWorkItem(context.Background(), 7)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteWorkItem() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRow_Cascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedBoard(t, db)

	removed, err := db.DeleteRow(ctx, f.todo.ID)
	if err != nil {
		t.Fatalf("DeleteRow() error = %v", err)
	}
	if len(removed) != 1 {
		t.Errorf("removed %d files, want 1", len(removed))
	}

	if _, err := db.GetRow(ctx, f.todo.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("row still present: %v", err)
	}
	if _, err := db.GetWorkItem(ctx, f.item.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("work item still present: %v", err)
	}
	if _, err := db.GetComment(ctx, f.comment.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("comment still present: %v", err)
	}
	// The sibling row is untouched.
	if _, err := db.GetRow(ctx, f.done.ID); err != nil {
		t.Errorf("sibling row was deleted: %v", err)
	}
}

func TestDeleteProject_Cascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedBoard(t, db)
	guest := createTestUser(t, db, "guest@x.com")
	if err := db.AddMember(ctx, f.project.ID, guest.ID); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	if _, err := db.DeleteProject(ctx, f.project.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}

	if _, err := db.GetProject(ctx, f.project.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("project still present: %v", err)
	}
	for _, id := range []int64{f.todo.ID, f.done.ID} {
		if _, err := db.GetRow(ctx, id); !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("row %d still present: %v", id, err)
		}
	}
	if _, err := db.GetFile(ctx, f.file.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("file still present: %v", err)
	}
	if ok, _ := db.IsMember(ctx, f.project.ID, guest.ID); ok {
		t.Error("membership survived project deletion")
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedBoard(t, db)
	boom := errors.New("boom")

	err := db.WithinTx(ctx, func(tx repository.BoardRepository) error {
		if _, err := tx.DeleteWorkItem(ctx, f.item.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx() error = %v, want boom", err)
	}

	if _, err := db.GetWorkItem(ctx, f.item.ID); err != nil {
		t.Errorf("work item deleted despite rollback: %v", err)
	}
	if _, err := db.GetComment(ctx, f.comment.ID); err != nil {
		t.Errorf("comment deleted despite rollback: %v", err)
	}
}
