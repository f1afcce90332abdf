package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-spy/pkg/core/discussion"
	"github.com/vango-go/vai-spy/pkg/gateway/config"
	"github.com/vango-go/vai-spy/pkg/gateway/mw"
)

// StateHandler returns the current orchestrator snapshot.
type StateHandler struct {
	Hub *discussion.StateHub
}

func (h StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Hub.Snapshot())
}

// StateStreamHandler pushes every snapshot change over a websocket. The
// current snapshot is sent on connect.
type StateStreamHandler struct {
	Hub    *discussion.StateHub
	Config config.Config
	Logger *slog.Logger
}

func (h StateStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return mw.OriginAllowed(h.Config, r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("state stream upgrade failed", "request_id", reqID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Clients never send data frames; reading only surfaces close and pong.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	updates, unsubscribe := h.Hub.Subscribe()
	defer unsubscribe()

	pingInterval := h.Config.WSPingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	writeTimeout := h.Config.WSWriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				logger.Debug("state stream write failed", "request_id", reqID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
