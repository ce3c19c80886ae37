package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/complaint-hub/internal/domain"
	"github.com/complaint-hub/internal/infrastructure/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestStream_Unauthorized(t *testing.T) {
	p := newTestJWTProvider(t)
	h := NewStreamHandler(realtime.NewRegistry(), p, 8, []string{"*"})

	r := httptest.NewRequest(http.MethodGet, "/v1/stream?token=garbage", nil)
	rr := httptest.NewRecorder()
	h.Stream(rr, r)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStream_NoJWTProvider_RefusesUpgrade(t *testing.T) {
	h := NewStreamHandler(realtime.NewRegistry(), nil, 8, []string{"*"})

	// A well-formed token signed by some other party must not reach token
	// verification when no provider is configured.
	other := newTestJWTProvider(t)
	token, err := other.Sign("u1", domain.RoleUser, "sess1")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/v1/stream?token="+token, nil)
	rr := httptest.NewRecorder()
	h.Stream(rr, r)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestStream_DeliversPublishedEvents(t *testing.T) {
	p := newTestJWTProvider(t)
	registry := realtime.NewRegistry()
	h := NewStreamHandler(registry, p, 8, []string{"*"})

	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	token, err := p.Sign("u1", domain.RoleUser, "sess1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// The registration happens inside the handler goroutine; wait for the
	// session to appear before publishing.
	require.Eventually(t, func() bool {
		return registry.ActiveSessions("u1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	registry.PublishToUser("u1", domain.EventNewComment, domain.Notification{
		NotificationID: "n-1",
		UserID:         "u1",
		Type:           domain.EventNewComment,
		SubjectID:      "c-1",
	})

	var env realtime.Envelope
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	assert.Equal(t, string(domain.EventNewComment), env.Event)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "n-1", data["id"])
}

func TestStream_BearerHeaderAccepted(t *testing.T) {
	p := newTestJWTProvider(t)
	registry := realtime.NewRegistry()
	h := NewStreamHandler(registry, p, 8, []string{"*"})

	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	token, err := p.Sign("u2", domain.RoleStaff, "sess1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + token}},
	})
	require.NoError(t, err)
	conn.Close(websocket.StatusNormalClosure, "done")
}
