package service

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/sakif/obsidian/internal/model"
	sqliteRepo "github.com/sakif/obsidian/internal/repository/sqlite"
)

// memBlobs is an in-memory BlobStore that records what was saved and removed.
type memBlobs struct {
	saved   map[string]string
	removed []string
	n       int
	saveErr error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{saved: make(map[string]string)}
}

func (m *memBlobs) Save(ctx context.Context, r io.Reader, original string) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.n++
	path := fmt.Sprintf("/uploads/%d-%s", m.n, original)
	m.saved[path] = string(data)
	return path, nil
}

func (m *memBlobs) Remove(path string) error {
	m.removed = append(m.removed, path)
	delete(m.saved, path)
	return nil
}

// boardEnv is a BoardService on a fresh in-memory database with three
// users: alice (owner of everything the tests create), bob (added as a
// member where a test needs one) and carol (a stranger).
type boardEnv struct {
	db    *sqliteRepo.DB
	svc   *BoardService
	blobs *memBlobs

	alice, bob, carol int64
}

func newBoardEnv(t *testing.T) *boardEnv {
	t.Helper()

	db, err := sqliteRepo.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &boardEnv{db: db, blobs: newMemBlobs()}
	env.svc = NewBoardService(db, env.blobs, discardLogger())

	env.alice = env.createUser(t, "alice@x.com", "Alice")
	env.bob = env.createUser(t, "bob@x.com", "Bob")
	env.carol = env.createUser(t, "carol@x.com", "Carol")
	return env
}

func (e *boardEnv) createUser(t *testing.T, email, name string) int64 {
	t.Helper()
	u := &model.User{Email: email, Name: name, PasswordHash: "$2a$04$not-used-by-these-tests"}
	if err := e.db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u.ID
}

// board is the ids of a small board owned by alice: one project with rows
// "Todo" and "Done" and one work item in "Todo".
type board struct {
	project, todo, done, item int64
}

func (e *boardEnv) seedBoard(t *testing.T) board {
	t.Helper()
	ctx := context.Background()

	p, err := e.svc.CreateProject(ctx, e.alice, "Launch", "ship it")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	todo, err := e.svc.CreateRow(ctx, e.alice, p.ID, "Todo")
	if err != nil {
		t.Fatalf("CreateRow(Todo): %v", err)
	}
	done, err := e.svc.CreateRow(ctx, e.alice, p.ID, "Done")
	if err != nil {
		t.Fatalf("CreateRow(Done): %v", err)
	}
	item, err := e.svc.CreateWorkItem(ctx, e.alice, todo.ID, "Write docs", "")
	if err != nil {
		t.Fatalf("CreateWorkItem: %v", err)
	}
	return board{project: p.ID, todo: todo.ID, done: done.ID, item: item.ID}
}

func ptr[T any](v T) *T { return &v }
