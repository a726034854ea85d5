package websocket

import (
	"context"
	"encoding/json"

	domainAgent "github.com/JarvisJ/plex-ai/domains/agent"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	"github.com/JarvisJ/plex-ai/pkg/metrics"
	"github.com/JarvisJ/plex-ai/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const sessionKey = "ws_session"

// RegisterRoutes serves /agent/ws. Each text frame from the client is a chat
// request; the reply is the event sequence of that turn, one JSON frame per
// event, ending with done. Turns on one connection run one at a time.
func RegisterRoutes(app fiber.Router, service domainAgent.IAgentUsecase, requireAuth fiber.Handler) {
	app.Use("/agent/ws", requireAuth, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.SendStatus(fiber.StatusUpgradeRequired)
		}
		c.Locals(sessionKey, middleware.Session(c))
		return c.Next()
	})

	app.Get("/agent/ws", websocket.New(func(conn *websocket.Conn) {
		session, _ := conn.Locals(sessionKey).(domainMedia.Session)
		ctx, cancel := context.WithCancel(context.Background())
		defer func() {
			cancel()
			_ = conn.Close()
		}()

		logrus.WithField("user_id", session.UserID).Debug("[WS] chat connection opened")
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logrus.WithError(err).Warn("[WS] read error")
				}
				return
			}
			if messageType != websocket.TextMessage {
				logrus.Debugf("[WS] unsupported message type: %d", messageType)
				continue
			}
			if err := serveTurn(ctx, conn, service, session, message); err != nil {
				logrus.WithError(err).Debug("[WS] write failed, closing")
				return
			}
		}
	}))
}

func writeEvent(conn *websocket.Conn, ev domainAgent.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	metrics.StreamEvent("websocket", string(ev.Type))
	return nil
}

// rejectTurn reports a turn that never started with the same error, done pair
// a failed stream ends with.
func rejectTurn(conn *websocket.Conn, err error) error {
	if werr := writeEvent(conn, domainAgent.StreamEvent{Type: domainAgent.EventError, Error: err.Error()}); werr != nil {
		return werr
	}
	return writeEvent(conn, domainAgent.StreamEvent{Type: domainAgent.EventDone})
}

// serveTurn only returns an error when the connection can no longer be written.
func serveTurn(ctx context.Context, conn *websocket.Conn, service domainAgent.IAgentUsecase, session domainMedia.Session, message []byte) error {
	var request domainAgent.ChatRequest
	if err := json.Unmarshal(message, &request); err != nil {
		return rejectTurn(conn, err)
	}

	// Cancelling drops the remaining events; the turn still completes.
	deliveryCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := service.ChatStream(deliveryCtx, session, request)
	if err != nil {
		return rejectTurn(conn, err)
	}
	for ev := range events {
		if err := writeEvent(conn, ev); err != nil {
			cancel()
			for range events {
			}
			return err
		}
	}
	return nil
}
