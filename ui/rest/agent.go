package rest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	domainAgent "github.com/JarvisJ/plex-ai/domains/agent"
	"github.com/JarvisJ/plex-ai/pkg/agentmonitor"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/JarvisJ/plex-ai/pkg/metrics"
	"github.com/JarvisJ/plex-ai/pkg/utils"
	"github.com/JarvisJ/plex-ai/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

type Agent struct {
	Service domainAgent.IAgentUsecase
	Monitor *agentmonitor.Monitor
}

func InitRestAgent(app fiber.Router, service domainAgent.IAgentUsecase, monitor *agentmonitor.Monitor) Agent {
	rest := Agent{Service: service, Monitor: monitor}
	group := app.Group("/agent")
	group.Post("/chat", rest.ChatStream)
	group.Post("/chat/sync", rest.Chat)
	group.Get("/conversations", rest.ListConversations)
	group.Get("/conversations/:id", rest.GetConversation)
	group.Delete("/conversation/:id", rest.ClearConversation)
	group.Get("/activity", rest.Activity)

	return rest
}

func parseChatRequest(c *fiber.Ctx) domainAgent.ChatRequest {
	var request domainAgent.ChatRequest
	if err := c.BodyParser(&request); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body: " + err.Error()))
	}
	return request
}

// writeEvent frames one event as a server-sent "data:" line and flushes it.
func writeEvent(w *bufio.Writer, ev domainAgent.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

// ChatStream answers with text/event-stream. Validation and pool saturation
// fail before the stream starts; later failures arrive as an error event.
func (handler *Agent) ChatStream(c *fiber.Ctx) error {
	request := parseChatRequest(c)

	// The body writer runs after this handler returns, so delivery gets its
	// own context. Cancelling it when the client stops reading drops the
	// remaining events; the turn itself still finishes and persists.
	ctx, cancel := context.WithCancel(context.Background())
	events, err := handler.Service.ChatStream(ctx, middleware.Session(c), request)
	if err != nil {
		cancel()
		utils.PanicIfNeeded(err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for ev := range events {
			if err := writeEvent(w, ev); err != nil {
				logrus.WithError(err).Debug("[AGENT] client went away mid-stream")
				cancel()
				for range events {
				}
				return
			}
			metrics.StreamEvent("sse", string(ev.Type))
		}
	}))
	return nil
}

func (handler *Agent) Chat(c *fiber.Ctx) error {
	request := parseChatRequest(c)
	response, err := handler.Service.Chat(c.UserContext(), middleware.Session(c), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Chat completed",
		Results: response,
	})
}

func (handler *Agent) ListConversations(c *fiber.Ctx) error {
	summaries, err := handler.Service.ListConversations(c.UserContext(), middleware.Session(c), c.QueryInt("limit", 0))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Conversations retrieved",
		Results: summaries,
	})
}

func (handler *Agent) GetConversation(c *fiber.Ctx) error {
	history, err := handler.Service.GetConversation(c.UserContext(), middleware.Session(c), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Conversation retrieved",
		Results: history,
	})
}

func (handler *Agent) ClearConversation(c *fiber.Ctx) error {
	deleted, err := handler.Service.ClearConversation(c.UserContext(), middleware.Session(c), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Conversation cleared",
		Results: map[string]bool{"deleted": deleted},
	})
}

// Activity reports the caller's recent turns and tool calls.
func (handler *Agent) Activity(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Agent activity retrieved",
		Results: handler.Monitor.Stats(middleware.Session(c).UserID),
	})
}
