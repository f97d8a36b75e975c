package database

import "time"

// User is a registered account. The password hash never leaves the server.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Board is a top-level container owned by one user. Columns is populated
// only by GetBoard and CreateBoard; list queries leave it nil.
type Board struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	UserID      int64     `db:"user_id" json:"user_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	Columns []Column `db:"-" json:"columns,omitempty"`
}

// Column is an ordered lane within a board.
type Column struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	BoardID   int64     `db:"board_id" json:"board_id"`
	Position  int64     `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Tasks []Task `db:"-" json:"tasks"`
}

// Task is a unit of work within a column. BoardID is not a tasks column;
// it is filled in from the owning column by queries that join through it.
type Task struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	ColumnID    int64     `db:"column_id" json:"column_id"`
	Position    int64     `db:"position" json:"position"`
	Priority    string    `db:"priority" json:"priority"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	BoardID int64 `db:"board_id" json:"board_id,omitempty"`
}

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidPriority reports whether p is one of the known priority levels.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// TaskUpdate carries the optional fields of a partial task update.
// Nil means "leave unchanged".
type TaskUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	ColumnID    *int64  `json:"column_id"`
	Position    *int64  `json:"position"`
}

// Empty reports whether the update carries no fields at all.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Priority == nil &&
		u.ColumnID == nil && u.Position == nil
}
