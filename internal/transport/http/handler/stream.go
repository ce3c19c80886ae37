package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	jwtinfra "github.com/complaint-hub/internal/infrastructure/jwt"
	"github.com/complaint-hub/internal/infrastructure/realtime"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 10 * time.Second

// StreamHandler upgrades a client to a WebSocket session and registers it
// with the live connection registry. One outbound stream per session, so
// events reach the client in publish order.
type StreamHandler struct {
	registry *realtime.Registry
	jwt      *jwtinfra.Provider
	buffer   int
	origins  []string
}

func NewStreamHandler(registry *realtime.Registry, jwt *jwtinfra.Provider, buffer int, origins []string) *StreamHandler {
	return &StreamHandler{registry: registry, jwt: jwt, buffer: buffer, origins: origins}
}

// Stream is the GET /stream endpoint. Browsers cannot set an Authorization
// header on a WebSocket upgrade, so a token query parameter is accepted as
// a fallback.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	// The server boots without a JWT provider when key files are missing;
	// every other authenticated route falls through to a claims check, but
	// this handler verifies tokens itself, so it must refuse explicitly.
	if h.jwt == nil {
		writeError(w, http.StatusServiceUnavailable, "stream unavailable")
		return
	}
	claims, err := h.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		return
	}

	sess := realtime.NewSession(claims.UserID, claims.Role, h.buffer)
	h.registry.Register(sess)
	defer h.registry.Unregister(sess)

	// The client never sends application data; CloseRead watches the
	// connection and cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case env, ok := <-sess.Outbound():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, env)
			cancel()
			if err != nil {
				conn.Close(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client disconnected")
			return
		}
	}
}

func (h *StreamHandler) authenticate(r *http.Request) (*jwtinfra.Claims, error) {
	token := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	return h.jwt.Verify(token)
}
