package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JarvisJ/plex-ai/agentengine/tools"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// LibraryHandler exposes the agent's library tools to MCP clients, bound to
// one account and one media server.
type LibraryHandler struct {
	media      domainMedia.IMediaUsecase
	search     tools.SearchProvider
	session    domainMedia.Session
	serverName string
}

func InitMcpLibrary(media domainMedia.IMediaUsecase, search tools.SearchProvider, session domainMedia.Session, serverName string) *LibraryHandler {
	return &LibraryHandler{
		media:      media,
		search:     search,
		session:    session,
		serverName: serverName,
	}
}

// toolset is rebuilt per call; the media cache keeps the snapshot warm.
func (h *LibraryHandler) toolset() *tools.PlexToolset {
	library := tools.NewLibrary(func(ctx context.Context) ([]domainMedia.MediaItem, error) {
		return h.media.GetAllLibraryItems(ctx, h.session, h.serverName, "")
	})
	return tools.NewPlexToolset(library, h.search)
}

func (h *LibraryHandler) AddLibraryTools(mcpServer *server.MCPServer) error {
	for _, t := range h.toolset().Tools() {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			return fmt.Errorf("tool %s schema: %w", t.Name, err)
		}
		tool := mcp.NewToolWithRawSchema(t.Name, t.Description, schema)
		tool.Annotations.ReadOnlyHint = mcp.ToBoolPtr(true)
		tool.Annotations.DestructiveHint = mcp.ToBoolPtr(false)
		mcpServer.AddTool(tool, h.handle(t.Name))
	}
	return nil
}

func (h *LibraryHandler) handle(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tool, ok := h.toolset().Lookup(name)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Tool %s not found", name)), nil
		}
		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		result, err := tool.Handler(ctx, args)
		if err != nil {
			logrus.WithError(err).WithField("tool", name).Warn("[MCP] tool failed")
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", name, err)), nil
		}
		return mcp.NewToolResultStructured(result, summarize(name, result)), nil
	}
}

func summarize(name string, result any) string {
	if items, ok := result.([]domainMedia.MediaItem); ok {
		return fmt.Sprintf("%s returned %d items", name, len(items))
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%s completed", name)
	}
	return string(data)
}
