// Package repositorytest runs the same behavioural checks against every
// board store backend.
package repositorytest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/taskboard/internal/board/repository"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// Factory returns a fresh, empty repository for one subtest.
type Factory func(t *testing.T) repository.Repository

// Run exercises the repository contract.
func Run(t *testing.T, newRepo Factory) {
	t.Run("CreateAppliesDefaults", func(t *testing.T) { testCreateDefaults(t, newRepo(t)) })
	t.Run("SaveThenLoadRoundTrips", func(t *testing.T) { testSaveLoad(t, newRepo(t)) })
	t.Run("LoadReturnsCopies", func(t *testing.T) { testCopies(t, newRepo(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newRepo(t)) })
	t.Run("DeleteRemoves", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("ListNewestFirst", func(t *testing.T) { testList(t, newRepo(t)) })
	t.Run("LastWriteWins", func(t *testing.T) { testLastWriteWins(t, newRepo(t)) })
}

func testCreateDefaults(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	b, err := repo.Create(ctx, &v1.Board{})
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, v1.DefaultBoardName, b.Name)
	require.Len(t, b.Columns, 3)
	assert.Equal(t, v1.ColumnTodo, b.Columns[0].ID)
	assert.Equal(t, v1.ColumnInProgress, b.Columns[1].ID)
	assert.Equal(t, v1.ColumnDone, b.Columns[2].ID)
	assert.Empty(t, b.Users)
	assert.False(t, b.CreatedAt.IsZero())

	loaded, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, loaded)
}

func testSaveLoad(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	b, err := repo.Create(ctx, &v1.Board{Name: "Sprint", Users: []v1.User{{ID: "u1", Name: "Alice", Email: "a@example.com"}}})
	require.NoError(t, err)

	at := b.CreatedAt.Add(time.Minute)
	u1 := "u1"
	b.Columns[0].Tasks = []v1.Task{
		{ID: "t1", Title: "first", AssignedTo: &u1, CreatedAt: at, UpdatedAt: at},
		{ID: "t2", Title: "second", Description: "d", CreatedAt: at, UpdatedAt: at},
	}
	b.Columns[2].Tasks = []v1.Task{{ID: "t3", Title: "third", CreatedAt: at, UpdatedAt: at}}
	b.UpdatedAt = at

	saved, err := repo.Save(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, b, saved)

	loaded, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, loaded)
	assert.Equal(t, []string{"t1", "t2"}, []string{loaded.Columns[0].Tasks[0].ID, loaded.Columns[0].Tasks[1].ID})
}

func testCopies(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	b, err := repo.Create(ctx, &v1.Board{})
	require.NoError(t, err)

	first, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	first.Columns[0].Tasks = append(first.Columns[0].Tasks, v1.Task{ID: "x", Title: "x"})
	first.Name = "mutated"

	second, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.DefaultBoardName, second.Name)
	assert.Empty(t, second.Columns[0].Tasks)
}

func testNotFound(t *testing.T, repo repository.Repository) {
	ctx := context.Background()

	_, err := repo.Load(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrBoardNotFound)

	_, err = repo.Save(ctx, &v1.Board{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, repository.ErrBoardNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "missing"), repository.ErrBoardNotFound)
}

func testDelete(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	b, err := repo.Create(ctx, &v1.Board{})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, b.ID))
	_, err = repo.Load(ctx, b.ID)
	assert.ErrorIs(t, err, repository.ErrBoardNotFound)
}

func testList(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		b, err := repo.Create(ctx, &v1.Board{Name: name})
		require.NoError(t, err)
		ids = append(ids, b.ID)
		// distinct millisecond timestamps
		time.Sleep(3 * time.Millisecond)
	}

	boards, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{boards[0].ID, boards[1].ID, boards[2].ID})
}

func testLastWriteWins(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	b, err := repo.Create(ctx, &v1.Board{})
	require.NoError(t, err)

	a, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	c, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)

	a.Columns[0].Tasks = []v1.Task{{ID: "from-a", Title: "a"}}
	c.Columns[2].Tasks = []v1.Task{{ID: "from-c", Title: "c"}}

	_, err = repo.Save(ctx, a)
	require.NoError(t, err)
	_, err = repo.Save(ctx, c)
	require.NoError(t, err)

	final, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, final.Columns[0].Tasks, "earlier save is fully overwritten")
	require.Len(t, final.Columns[2].Tasks, 1)
	assert.Equal(t, "from-c", final.Columns[2].Tasks[0].ID)
}
