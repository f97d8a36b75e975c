package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowdrift/kanban-app/services"
)

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + token
}

func TestWebSocketUpgrade(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	token := ts.register("al")

	// The upgrade must succeed through the logging middleware.
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// Give the hub a moment to register the connection before mutating.
	time.Sleep(100 * time.Millisecond)

	rec := ts.do("POST", "/api/boards", token, map[string]string{"title": "Sprint"})
	require.Equal(t, http.StatusOK, rec.Code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event services.BoardEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "board_created", event.Type)
	assert.NotZero(t, event.BoardID)
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "not.a.token"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
