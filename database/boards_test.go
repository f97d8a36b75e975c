package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestUser(t *testing.T, db *sqlx.DB, username string) *User {
	t.Helper()
	user, err := NewUserService(db).Create(context.Background(), username, username+"@example.com", "hash")
	require.NoError(t, err)
	return user
}

func TestCreateBoardDefaultColumns(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	boards := NewBoardService(db)
	owner := createTestUser(t, db, "alice")

	board, err := boards.CreateBoard(ctx, owner.ID, "Sprint", "first sprint")
	require.NoError(t, err)
	assert.Equal(t, "Sprint", board.Title)
	assert.Equal(t, "first sprint", board.Description)
	assert.Equal(t, owner.ID, board.UserID)

	require.Len(t, board.Columns, 3)
	for i, title := range []string{"To Do", "In Progress", "Done"} {
		assert.Equal(t, title, board.Columns[i].Title)
		assert.Equal(t, int64(i), board.Columns[i].Position)
		assert.Empty(t, board.Columns[i].Tasks)
	}

	// Same shape on first read
	loaded, err := boards.GetBoard(ctx, owner.ID, board.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Columns, 3)
	assert.Equal(t, "To Do", loaded.Columns[0].Title)
}

func TestListBoards(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	boards := NewBoardService(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	var created []*Board
	for i := 0; i < 3; i++ {
		b, err := boards.CreateBoard(ctx, alice.ID, fmt.Sprintf("Board %d", i), "")
		require.NoError(t, err)
		created = append(created, b)
	}
	bobBoard, err := boards.CreateBoard(ctx, bob.ID, "Bob's board", "")
	require.NoError(t, err)

	t.Run("most recent first, owner only", func(t *testing.T) {
		list, err := boards.ListBoards(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, created[2].ID, list[0].ID)
		assert.Equal(t, created[0].ID, list[2].ID)
		for _, b := range list {
			assert.NotEqual(t, bobBoard.ID, b.ID)
		}
	})

	t.Run("shared boards are included", func(t *testing.T) {
		require.NoError(t, boards.AddMember(ctx, bob.ID, bobBoard.ID, alice.ID))

		list, err := boards.ListBoards(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, list, 4)
		assert.Equal(t, bobBoard.ID, list[0].ID)
	})
}

func TestGetBoardNesting(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	boards := NewBoardService(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	board, err := boards.CreateBoard(ctx, alice.ID, "Sprint", "")
	require.NoError(t, err)
	todo := board.Columns[0]
	doing := board.Columns[1]

	for _, title := range []string{"first", "second", "third"} {
		_, err := boards.CreateTask(ctx, alice.ID, todo.ID, title, "", "")
		require.NoError(t, err)
	}
	_, err = boards.CreateTask(ctx, alice.ID, doing.ID, "in flight", "", PriorityHigh)
	require.NoError(t, err)

	loaded, err := boards.GetBoard(ctx, alice.ID, board.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Columns, 3)

	todoTasks := loaded.Columns[0].Tasks
	require.Len(t, todoTasks, 3)
	for i, title := range []string{"first", "second", "third"} {
		assert.Equal(t, title, todoTasks[i].Title)
		assert.Equal(t, int64(i), todoTasks[i].Position)
		assert.Equal(t, board.ID, todoTasks[i].BoardID)
	}

	require.Len(t, loaded.Columns[1].Tasks, 1)
	assert.Equal(t, PriorityHigh, loaded.Columns[1].Tasks[0].Priority)
	assert.Empty(t, loaded.Columns[2].Tasks)

	t.Run("inaccessible board reads as absent", func(t *testing.T) {
		_, err := boards.GetBoard(ctx, bob.ID, board.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown board", func(t *testing.T) {
		_, err := boards.GetBoard(ctx, alice.ID, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateColumnPositions(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	boards := NewBoardService(db)
	alice := createTestUser(t, db, "alice")

	board, err := boards.CreateBoard(ctx, alice.ID, "Sprint", "")
	require.NoError(t, err)

	col, err := boards.CreateColumn(ctx, alice.ID, board.ID, "Blocked")
	require.NoError(t, err)
	assert.Equal(t, int64(3), col.Position)
	assert.Equal(t, board.ID, col.BoardID)

	col2, err := boards.CreateColumn(ctx, alice.ID, board.ID, "Review")
	require.NoError(t, err)
	assert.Equal(t, int64(4), col2.Position)

	t.Run("foreign board", func(t *testing.T) {
		bob := createTestUser(t, db, "bob")
		_, err := boards.CreateColumn(ctx, bob.ID, board.ID, "Nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateTaskDefaults(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	boards := NewBoardService(db)
	alice := createTestUser(t, db, "alice")

	board, err := boards.CreateBoard(ctx, alice.ID, "Sprint", "")
	require.NoError(t, err)
	todo := board.Columns[0]

	task, err := boards.CreateTask(ctx, alice.ID, todo.ID, "Fix bug", "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), task.Position)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, todo.ID, task.ColumnID)
	assert.Equal(t, board.ID, task.BoardID)

	for i := 1; i < 5; i++ {
		task, err := boards.CreateTask(ctx, alice.ID, todo.ID, fmt.Sprintf("task %d", i), "", "")
		require.NoError(t, err)
		assert.Equal(t, int64(i), task.Position)
	}
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	boards := NewBoardService(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	board, err := boards.CreateBoard(ctx, alice.ID, "Sprint", "")
	require.NoError(t, err)
	todo := board.Columns[0]
	done := board.Columns[2]

	task, err := boards.CreateTask(ctx, alice.ID, todo.ID, "Fix bug", "repro attached", "")
	require.NoError(t, err)

	t.Run("empty update is rejected", func(t *testing.T) {
		_, err := boards.UpdateTask(ctx, alice.ID, task.ID, TaskUpdate{})
		assert.ErrorIs(t, err, ErrNoUpdates)
	})

	t.Run("only supplied fields change", func(t *testing.T) {
		priority := PriorityHigh
		updated, err := boards.UpdateTask(ctx, alice.ID, task.ID, TaskUpdate{Priority: &priority})
		require.NoError(t, err)
		assert.Equal(t, PriorityHigh, updated.Priority)
		assert.Equal(t, "Fix bug", updated.Title)
		assert.Equal(t, "repro attached", updated.Description)
		assert.Equal(t, todo.ID, updated.ColumnID)
	})

	t.Run("move between columns keeps position", func(t *testing.T) {
		updated, err := boards.UpdateTask(ctx, alice.ID, task.ID, TaskUpdate{ColumnID: &done.ID})
		require.NoError(t, err)
		assert.Equal(t, done.ID, updated.ColumnID)
		assert.Equal(t, int64(0), updated.Position)
	})

	t.Run("move to a foreign column is rejected", func(t *testing.T) {
		bobBoard, err := boards.CreateBoard(ctx, bob.ID, "Bob's", "")
		require.NoError(t, err)

		_, err = boards.UpdateTask(ctx, alice.ID, task.ID, TaskUpdate{ColumnID: &bobBoard.Columns[0].ID})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("foreign task is invisible", func(t *testing.T) {
		title := "hijack"
		_, err := boards.UpdateTask(ctx, bob.ID, task.ID, TaskUpdate{Title: &title})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	boards := NewBoardService(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	board, err := boards.CreateBoard(ctx, alice.ID, "Sprint", "")
	require.NoError(t, err)
	task, err := boards.CreateTask(ctx, alice.ID, board.Columns[0].ID, "Fix bug", "", "")
	require.NoError(t, err)

	t.Run("foreign task is invisible", func(t *testing.T) {
		_, err := boards.DeleteTask(ctx, bob.ID, task.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	boardID, err := boards.DeleteTask(ctx, alice.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, board.ID, boardID)

	loaded, err := boards.GetBoard(ctx, alice.ID, board.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Columns[0].Tasks)

	t.Run("second delete", func(t *testing.T) {
		_, err := boards.DeleteTask(ctx, alice.ID, task.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteBoardCascades(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	boards := NewBoardService(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	board, err := boards.CreateBoard(ctx, alice.ID, "Sprint", "")
	require.NoError(t, err)
	for _, col := range board.Columns {
		_, err := boards.CreateTask(ctx, alice.ID, col.ID, "task", "", "")
		require.NoError(t, err)
	}
	require.NoError(t, boards.AddMember(ctx, alice.ID, board.ID, bob.ID))

	t.Run("members may not delete", func(t *testing.T) {
		err := boards.DeleteBoard(ctx, bob.ID, board.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	require.NoError(t, boards.DeleteBoard(ctx, alice.ID, board.ID))

	_, err = boards.GetBoard(ctx, alice.ID, board.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM columns WHERE board_id = ?", board.ID))
	assert.Zero(t, count)
	require.NoError(t, db.Get(&count,
		"SELECT COUNT(*) FROM tasks t JOIN columns c ON t.column_id = c.id WHERE c.board_id = ?", board.ID))
	assert.Zero(t, count)
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM board_members WHERE board_id = ?", board.ID))
	assert.Zero(t, count)
}

func TestMembership(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	boards := NewBoardService(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")

	board, err := boards.CreateBoard(ctx, alice.ID, "Sprint", "")
	require.NoError(t, err)

	t.Run("only the owner may add members", func(t *testing.T) {
		err := boards.AddMember(ctx, bob.ID, board.ID, carol.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	require.NoError(t, boards.AddMember(ctx, alice.ID, board.ID, bob.ID))

	t.Run("adding twice is idempotent", func(t *testing.T) {
		require.NoError(t, boards.AddMember(ctx, alice.ID, board.ID, bob.ID))
	})

	t.Run("owner cannot be a member of their own board", func(t *testing.T) {
		err := boards.AddMember(ctx, alice.ID, board.ID, alice.ID)
		assert.ErrorIs(t, err, ErrOwnerMember)

		ids, err := boards.AccessorIDs(ctx, board.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{alice.ID, bob.ID}, ids)
	})

	t.Run("members get content access", func(t *testing.T) {
		loaded, err := boards.GetBoard(ctx, bob.ID, board.ID)
		require.NoError(t, err)

		task, err := boards.CreateTask(ctx, bob.ID, loaded.Columns[0].ID, "from bob", "", "")
		require.NoError(t, err)

		_, err = boards.DeleteTask(ctx, bob.ID, task.ID)
		require.NoError(t, err)
	})

	t.Run("non-members see nothing", func(t *testing.T) {
		_, err := boards.GetBoard(ctx, carol.ID, board.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
