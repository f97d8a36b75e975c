package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/snowdrift/kanban-app/database"
	"github.com/snowdrift/kanban-app/services"
)

const (
	maxBoardTitleLen  = 100
	maxTitleLen       = 255
	maxDescriptionLen = 500
)

// BoardHandler handles board, column, task and membership endpoints and
// pushes change events to the websocket hub.
type BoardHandler struct {
	boardService *database.BoardService
	userService  *database.UserService
	authService  *services.AuthService
	hub          *services.Hub
	log          zerolog.Logger
}

func NewBoardHandler(boardService *database.BoardService, userService *database.UserService, authService *services.AuthService, hub *services.Hub, log zerolog.Logger) *BoardHandler {
	return &BoardHandler{
		boardService: boardService,
		userService:  userService,
		authService:  authService,
		hub:          hub,
		log:          log,
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// ListBoards returns the caller's boards, owned and shared, newest first.
func (h *BoardHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	boards, err := h.boardService.ListBoards(r.Context(), claims.UserID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, boards)
}

// CreateBoard creates a board with its three default columns.
func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.Title == "" || len(req.Title) > maxBoardTitleLen {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if len(req.Description) > maxDescriptionLen {
		writeError(w, http.StatusBadRequest, "description too long")
		return
	}

	board, err := h.boardService.CreateBoard(r.Context(), claims.UserID, req.Title, req.Description)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	h.notify(r, board.ID, "board_created", board)
	writeJSON(w, http.StatusOK, board)
}

// GetBoard returns a board with nested columns and tasks.
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	boardID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid board id")
		return
	}

	board, err := h.boardService.GetBoard(r.Context(), claims.UserID, boardID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// DeleteBoard removes a board and everything under it. Owner only.
func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	boardID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid board id")
		return
	}

	// Capture the audience before the membership rows go away.
	accessors, err := h.boardService.AccessorIDs(r.Context(), boardID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	if err := h.boardService.DeleteBoard(r.Context(), claims.UserID, boardID); err != nil {
		handleError(w, h.log, err)
		return
	}

	h.hub.BroadcastBoardEvent(services.BoardEvent{Type: "board_deleted", BoardID: boardID}, accessors)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Board deleted successfully"})
}

// CreateColumn appends a column to a board.
func (h *BoardHandler) CreateColumn(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	boardID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid board id")
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.Title == "" || len(req.Title) > maxTitleLen {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	column, err := h.boardService.CreateColumn(r.Context(), claims.UserID, boardID, req.Title)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	h.notify(r, boardID, "column_created", column)
	writeJSON(w, http.StatusOK, column)
}

// CreateTask appends a task to a column.
func (h *BoardHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	columnID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid column id")
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.Title == "" || len(req.Title) > maxTitleLen {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if len(req.Description) > maxDescriptionLen {
		writeError(w, http.StatusBadRequest, "description too long")
		return
	}
	if req.Priority != "" && !database.ValidPriority(req.Priority) {
		writeError(w, http.StatusBadRequest, "priority must be low, medium or high")
		return
	}

	task, err := h.boardService.CreateTask(r.Context(), claims.UserID, columnID, req.Title, req.Description, req.Priority)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	h.notify(r, task.BoardID, "task_created", task)
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask applies a partial update, including moves between columns.
func (h *BoardHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	taskID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var upd database.TaskUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if upd.Title != nil && (*upd.Title == "" || len(*upd.Title) > maxTitleLen) {
		writeError(w, http.StatusBadRequest, "title must not be empty")
		return
	}
	if upd.Description != nil && len(*upd.Description) > maxDescriptionLen {
		writeError(w, http.StatusBadRequest, "description too long")
		return
	}
	if upd.Priority != nil && !database.ValidPriority(*upd.Priority) {
		writeError(w, http.StatusBadRequest, "priority must be low, medium or high")
		return
	}

	task, err := h.boardService.UpdateTask(r.Context(), claims.UserID, taskID, upd)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	h.notify(r, task.BoardID, "task_updated", task)
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask removes a single task.
func (h *BoardHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	taskID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	boardID, err := h.boardService.DeleteTask(r.Context(), claims.UserID, taskID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	h.notify(r, boardID, "task_deleted", map[string]int64{"id": taskID})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

// AddMember shares a board with another user by username. Owner only.
func (h *BoardHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	boardID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid board id")
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	member, err := h.userService.FindByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "no such user")
			return
		}
		handleError(w, h.log, err)
		return
	}

	if err := h.boardService.AddMember(r.Context(), claims.UserID, boardID, member.ID); err != nil {
		handleError(w, h.log, err)
		return
	}

	h.notify(r, boardID, "member_added", map[string]any{"username": member.Username})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Member added successfully"})
}

// HandleWebSocket upgrades the connection and registers it with the hub.
// Browsers cannot set headers on websocket requests, so the token rides
// in the query string instead.
func (h *BoardHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authService.VerifyJWT(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusForbidden, "invalid token")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := services.NewClient(h.hub, conn, claims.UserID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// notify fans a board event out to everyone with access to the board.
func (h *BoardHandler) notify(r *http.Request, boardID int64, eventType string, data any) {
	accessors, err := h.boardService.AccessorIDs(r.Context(), boardID)
	if err != nil {
		h.log.Error().Err(err).Int64("board_id", boardID).Msg("failed to resolve event audience")
		return
	}
	h.hub.BroadcastBoardEvent(services.BoardEvent{Type: eventType, BoardID: boardID, Data: data}, accessors)
}
