package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prepdesk/examtake/internal/attempt"
	"github.com/prepdesk/examtake/internal/middleware"
	"github.com/prepdesk/examtake/internal/service"
	ws "github.com/prepdesk/examtake/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the attempt clock over WebSocket.
type WSHandler struct {
	svc      *service.AttemptService
	tick     time.Duration
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(svc *service.AttemptService, tick time.Duration, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	if tick <= 0 {
		tick = time.Second
	}
	return &WSHandler{
		svc:      svc,
		tick:     tick,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream
// Pushes timer views every tick and a single submitted event when the
// attempt reaches its terminal state. The only client message is ping.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	credential := middleware.GetCredential(c)

	id, err := strconv.ParseInt(c.Param("attempt_id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	ctrl, err := h.svc.Session(c.Request.Context(), credential, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Int64("attempt_id", id).Logger()
	wsLog.Info().Msg("Stream connected")

	// All writes happen in the push loop below; the reader only forwards
	// pings through the channel so the connection never has two writers.
	pings := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg ws.RequestPayload
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				return
			}
			switch msg.Action {
			case ws.ActionPing:
				select {
				case pings <- struct{}{}:
				default:
				}
			default:
				wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			}
		}
	}()

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	submittedSent := false
	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case now := <-ticker.C:
			if ctrl.Closed() {
				ws.WriteError(conn, "session closed")
				return
			}
			h.svc.Touch(id)

			if tv := ctrl.Timer(now); tv != nil {
				if err := ws.WriteTyped(conn, ws.TimerEvent{Event: ws.EventTimer, Timer: tv}); err != nil {
					return
				}
			}

			view := ctrl.Snapshot(now, 0)
			if view.Submission == attempt.StateSubmitted && !submittedSent {
				submittedSent = true
				if err := ws.WriteTyped(conn, ws.SubmittedEvent{Event: ws.EventSubmitted, AutoSubmitted: view.AutoSubmitted}); err != nil {
					return
				}
				wsLog.Info().Bool("auto_submitted", view.AutoSubmitted).Msg("Submitted event pushed")
			}
		}
	}
}
