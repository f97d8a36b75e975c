package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// DefaultColumns are created with every new board, at positions 0..2.
var DefaultColumns = []string{"To Do", "In Progress", "Done"}

// BoardService is the board/column/task repository. Every method that
// reads or mutates an entity takes the requesting user's id and resolves
// access before touching anything: owners and members may read a board
// and work with its columns and tasks, while structural operations
// (deleting the board, managing members) are owner-only.
type BoardService struct {
	db *sqlx.DB
}

func NewBoardService(db *sqlx.DB) *BoardService {
	return &BoardService{db: db}
}

// accessClause matches boards the user owns or is a member of. The two
// trailing args are both the user id.
const accessClause = `(b.user_id = ? OR EXISTS (
	SELECT 1 FROM board_members m WHERE m.board_id = b.id AND m.user_id = ?))`

// CreateBoard inserts a board and its default columns in one transaction,
// so a failure mid-sequence leaves no orphaned rows.
func (s *BoardService) CreateBoard(ctx context.Context, ownerID int64, title, description string) (*Board, error) {
	var board Board
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO boards (title, description, user_id) VALUES (?, ?, ?)",
			title, description, ownerID)
		if err != nil {
			return fmt.Errorf("failed to insert board: %w", err)
		}

		boardID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read board id: %w", err)
		}

		for i, columnTitle := range DefaultColumns {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO columns (title, board_id, position) VALUES (?, ?, ?)",
				columnTitle, boardID, i)
			if err != nil {
				return fmt.Errorf("failed to insert default column: %w", err)
			}
		}

		if err := tx.GetContext(ctx, &board, "SELECT * FROM boards WHERE id = ?", boardID); err != nil {
			return fmt.Errorf("failed to load created board: %w", err)
		}

		columns := []Column{}
		err = tx.SelectContext(ctx, &columns,
			"SELECT * FROM columns WHERE board_id = ? ORDER BY position", boardID)
		if err != nil {
			return fmt.Errorf("failed to load default columns: %w", err)
		}
		for i := range columns {
			columns[i].Tasks = []Task{}
		}
		board.Columns = columns

		return nil
	})
	if err != nil {
		return nil, err
	}
	return &board, nil
}

// ListBoards returns the boards the user owns or is a member of, most
// recently created first.
func (s *BoardService) ListBoards(ctx context.Context, userID int64) ([]Board, error) {
	query, args, err := sq.Select("b.*").
		From("boards b").
		Where(accessClause, userID, userID).
		OrderBy("b.created_at DESC", "b.id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	boards := []Board{}
	if err := s.db.SelectContext(ctx, &boards, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	return boards, nil
}

// GetBoard returns a board with its columns and their tasks nested,
// columns ordered by position and tasks ordered by position within each
// column. Returns ErrNotFound when the board is absent or inaccessible.
func (s *BoardService) GetBoard(ctx context.Context, userID, boardID int64) (*Board, error) {
	board, err := s.authorizeBoard(ctx, userID, boardID, false)
	if err != nil {
		return nil, err
	}

	columns := []Column{}
	err = s.db.SelectContext(ctx, &columns,
		"SELECT * FROM columns WHERE board_id = ? ORDER BY position, id", boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load columns: %w", err)
	}

	tasks := []Task{}
	err = s.db.SelectContext(ctx, &tasks, `
		SELECT t.*, c.board_id AS board_id
		FROM tasks t
		JOIN columns c ON t.column_id = c.id
		WHERE c.board_id = ?
		ORDER BY t.position, t.id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	byColumn := make(map[int64][]Task, len(columns))
	for _, t := range tasks {
		byColumn[t.ColumnID] = append(byColumn[t.ColumnID], t)
	}
	for i := range columns {
		columns[i].Tasks = byColumn[columns[i].ID]
		if columns[i].Tasks == nil {
			columns[i].Tasks = []Task{}
		}
	}
	board.Columns = columns

	return board, nil
}

// CreateColumn appends a column to the board at the next free position.
func (s *BoardService) CreateColumn(ctx context.Context, userID, boardID int64, title string) (*Column, error) {
	if _, err := s.authorizeBoard(ctx, userID, boardID, false); err != nil {
		return nil, err
	}

	var column Column
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var position int64
		err := tx.GetContext(ctx, &position,
			"SELECT COALESCE(MAX(position) + 1, 0) FROM columns WHERE board_id = ?", boardID)
		if err != nil {
			return fmt.Errorf("failed to compute column position: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO columns (title, board_id, position) VALUES (?, ?, ?)",
			title, boardID, position)
		if err != nil {
			return fmt.Errorf("failed to insert column: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read column id: %w", err)
		}

		if err := tx.GetContext(ctx, &column, "SELECT * FROM columns WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to load created column: %w", err)
		}
		column.Tasks = []Task{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &column, nil
}

// CreateTask appends a task to the column at the next free position.
// Priority defaults to medium when empty.
func (s *BoardService) CreateTask(ctx context.Context, userID, columnID int64, title, description, priority string) (*Task, error) {
	column, err := s.authorizeColumn(ctx, userID, columnID)
	if err != nil {
		return nil, err
	}

	if priority == "" {
		priority = PriorityMedium
	}

	var task Task
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var position int64
		err := tx.GetContext(ctx, &position,
			"SELECT COALESCE(MAX(position) + 1, 0) FROM tasks WHERE column_id = ?", columnID)
		if err != nil {
			return fmt.Errorf("failed to compute task position: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO tasks (title, description, column_id, position, priority) VALUES (?, ?, ?, ?, ?)",
			title, description, columnID, position, priority)
		if err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read task id: %w", err)
		}

		if err := tx.GetContext(ctx, &task, "SELECT * FROM tasks WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to load created task: %w", err)
		}
		task.BoardID = column.BoardID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies a partial update to a task. Only supplied fields are
// modified; an empty update fails with ErrNoUpdates. Moving a task to
// another column re-checks access on the destination; positions in
// neither column are renumbered.
func (s *BoardService) UpdateTask(ctx context.Context, userID, taskID int64, upd TaskUpdate) (*Task, error) {
	if upd.Empty() {
		return nil, ErrNoUpdates
	}

	if _, err := s.authorizeTask(ctx, userID, taskID); err != nil {
		return nil, err
	}

	sets := map[string]interface{}{}
	if upd.Title != nil {
		sets["title"] = *upd.Title
	}
	if upd.Description != nil {
		sets["description"] = *upd.Description
	}
	if upd.Priority != nil {
		sets["priority"] = *upd.Priority
	}
	if upd.ColumnID != nil {
		dest, err := s.authorizeColumn(ctx, userID, *upd.ColumnID)
		if err != nil {
			return nil, err
		}
		sets["column_id"] = dest.ID
	}
	if upd.Position != nil {
		sets["position"] = *upd.Position
	}

	query, args, err := sq.Update("tasks").SetMap(sets).Where(sq.Eq{"id": taskID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return s.authorizeTask(ctx, userID, taskID)
}

// DeleteTask removes a single task. Returns the board id the task
// belonged to, for change notification.
func (s *BoardService) DeleteTask(ctx context.Context, userID, taskID int64) (int64, error) {
	task, err := s.authorizeTask(ctx, userID, taskID)
	if err != nil {
		return 0, err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", taskID); err != nil {
		return 0, fmt.Errorf("failed to delete task: %w", err)
	}
	return task.BoardID, nil
}

// DeleteBoard removes a board with everything under it: tasks, columns,
// memberships, then the board row, all in one transaction. Owner only.
func (s *BoardService) DeleteBoard(ctx context.Context, userID, boardID int64) error {
	if _, err := s.authorizeBoard(ctx, userID, boardID, true); err != nil {
		return err
	}

	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		stmts := []string{
			"DELETE FROM tasks WHERE column_id IN (SELECT id FROM columns WHERE board_id = ?)",
			"DELETE FROM columns WHERE board_id = ?",
			"DELETE FROM board_members WHERE board_id = ?",
			"DELETE FROM boards WHERE id = ?",
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, boardID); err != nil {
				return fmt.Errorf("failed to delete board: %w", err)
			}
		}
		return nil
	})
}

// AddMember grants another user shared access to a board. Owner only;
// adding an already-present member is a no-op, adding the owner
// themselves fails with ErrOwnerMember.
func (s *BoardService) AddMember(ctx context.Context, ownerID, boardID, memberID int64) error {
	board, err := s.authorizeBoard(ctx, ownerID, boardID, true)
	if err != nil {
		return err
	}
	if memberID == board.UserID {
		return ErrOwnerMember
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO board_members (board_id, user_id) VALUES (?, ?)",
		boardID, memberID)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// AccessorIDs returns the user ids with access to a board (owner first),
// used to target change notifications.
func (s *BoardService) AccessorIDs(ctx context.Context, boardID int64) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids, `
		SELECT user_id FROM boards WHERE id = ?
		UNION
		SELECT user_id FROM board_members WHERE board_id = ?`, boardID, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load board accessors: %w", err)
	}
	return ids, nil
}

// authorizeBoard resolves a board the user may act on. With ownerOnly a
// membership row is not enough.
func (s *BoardService) authorizeBoard(ctx context.Context, userID, boardID int64, ownerOnly bool) (*Board, error) {
	builder := sq.Select("b.*").From("boards b").Where(sq.Eq{"b.id": boardID})
	if ownerOnly {
		builder = builder.Where(sq.Eq{"b.user_id": userID})
	} else {
		builder = builder.Where(accessClause, userID, userID)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build board query: %w", err)
	}

	var board Board
	err = s.db.GetContext(ctx, &board, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query board: %w", err)
	}
	return &board, nil
}

// authorizeColumn resolves a column by joining through its board to the
// requesting user.
func (s *BoardService) authorizeColumn(ctx context.Context, userID, columnID int64) (*Column, error) {
	query, args, err := sq.Select("c.*").
		From("columns c").
		Join("boards b ON c.board_id = b.id").
		Where(sq.Eq{"c.id": columnID}).
		Where(accessClause, userID, userID).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build column query: %w", err)
	}

	var column Column
	err = s.db.GetContext(ctx, &column, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query column: %w", err)
	}
	return &column, nil
}

// authorizeTask resolves a task by joining task → column → board → user.
func (s *BoardService) authorizeTask(ctx context.Context, userID, taskID int64) (*Task, error) {
	query, args, err := sq.Select("t.*", "c.board_id AS board_id").
		From("tasks t").
		Join("columns c ON t.column_id = c.id").
		Join("boards b ON c.board_id = b.id").
		Where(sq.Eq{"t.id": taskID}).
		Where(accessClause, userID, userID).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build task query: %w", err)
	}

	var task Task
	err = s.db.GetContext(ctx, &task, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return &task, nil
}
