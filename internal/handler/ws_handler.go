package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/openexam/openexam-backend/internal/config"
	"github.com/openexam/openexam-backend/internal/middleware"
	"github.com/openexam/openexam-backend/internal/service"
	ws "github.com/openexam/openexam-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
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

// WSHandler handles the WebSocket exam stream: answer autosave, proctoring
// events and progress polling over one connection.
type WSHandler struct {
	rdb            *redis.Client
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// behaviorEvent is what gets queued for the behavior worker and published to
// the live monitor channel.
type behaviorEvent struct {
	SessionID   string `json:"session_id"`
	UserID      int    `json:"user_id"`
	PaperID     string `json:"paper_id"`
	Timestamp   int64  `json:"timestamp"`
	Description string `json:"description"`
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:id/stream
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil || session.UserID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case ws.ActionAnswer:
			h.handleAnswer(conn, sessionID, &msg)
		case ws.ActionBehavior:
			h.handleBehavior(conn, session.PaperID, sessionID, claims.UserID, &msg)
		case ws.ActionProgress:
			h.handleProgress(conn, sessionID)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

// handleAnswer saves one answer through the session service, so the same
// state and timeout rules apply as on the HTTP path.
func (h *WSHandler) handleAnswer(conn *websocket.Conn, sessionID uuid.UUID, msg *ws.RequestPayload) {
	if msg.QID == "" {
		ws.WriteError(conn, "q_id is required")
		return
	}
	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		ws.WriteError(conn, "invalid q_id format")
		return
	}

	if err := h.sessionService.SaveAnswer(context.Background(), sessionID, questionID, msg.Answer); err != nil {
		ws.WriteError(conn, "save failed: "+err.Error())
		return
	}

	ws.WriteTyped(conn, ws.SuccessResponse{Event: ws.EventSuccess, Status: "saved"})
}

// handleBehavior queues a proctoring event for the behavior worker and
// publishes it to the paper's monitor channel.
func (h *WSHandler) handleBehavior(conn *websocket.Conn, paperID, sessionID uuid.UUID, userID int, msg *ws.RequestPayload) {
	if msg.Description == "" {
		ws.WriteError(conn, "description is required")
		return
	}

	ctx := context.Background()
	payload, _ := json.Marshal(behaviorEvent{
		SessionID:   sessionID.String(),
		UserID:      userID,
		PaperID:     paperID.String(),
		Timestamp:   time.Now().Unix(),
		Description: msg.Description,
	})

	if err := h.rdb.RPush(ctx, config.WorkerKey.BehaviorQueue, payload).Err(); err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Behavior enqueue failed")
		ws.WriteError(conn, "event not recorded")
		return
	}
	h.rdb.Publish(ctx, config.CacheKey.SessionMonitorChannel(paperID.String()), payload)

	ws.WriteTyped(conn, ws.SuccessResponse{Event: ws.EventSuccess, Status: "recorded"})
}

// handleProgress pushes the current countdown and answered counts.
func (h *WSHandler) handleProgress(conn *websocket.Conn, sessionID uuid.UUID) {
	progress, err := h.sessionService.GetProgress(context.Background(), sessionID)
	if err != nil {
		ws.WriteError(conn, "progress unavailable")
		return
	}

	ws.WriteTyped(conn, ws.ProgressResponse{
		Event:             ws.EventProgress,
		TotalQuestions:    progress.TotalQuestions,
		AnsweredQuestions: progress.AnsweredQuestions,
		RemainingMinutes:  progress.RemainingMinutes,
		IsTimeout:         progress.IsTimeout,
	})
}
