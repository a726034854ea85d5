package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	coreconfig "github.com/JarvisJ/plex-ai/core/config"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	"github.com/JarvisJ/plex-ai/ui/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the library tools MCP server using SSE",
	Long:  `Expose the Plex library tools (search, recommendations, unwatched, recently added, details, stats) over the Model Context Protocol for one configured account and server.`,
	Run:   mcpServer,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("host", "", "Host for the SSE MCP server (default MCP_HOST)")
	mcpCmd.Flags().String("mcp-port", "", "Port for the SSE MCP server (default MCP_PORT)")
	mcpCmd.Flags().String("server", "", "Plex server name the tools query (default MCP_SERVER_NAME)")
}

func mcpServer(cmd *cobra.Command, _ []string) {
	cfg := coreconfig.Global.MCP
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Host = v
	}
	if v, _ := cmd.Flags().GetString("mcp-port"); v != "" {
		cfg.Port = v
	}
	if v, _ := cmd.Flags().GetString("server"); v != "" {
		cfg.Server = v
	}
	if cfg.PlexToken == "" || cfg.Server == "" {
		logrus.Fatal("[MCP] MCP_PLEX_TOKEN and MCP_SERVER_NAME are required")
	}

	session := domainMedia.Session{UserID: cfg.UserID, PlexToken: cfg.PlexToken}
	if cfg.UserID == 0 {
		user, err := authUsecase.CurrentUser(context.Background(), cfg.PlexToken)
		if err != nil {
			logrus.Fatalf("[MCP] could not resolve plex user: %v", err)
		}
		session.UserID = user.ID
		session.Username = user.Username
	}

	mcpServer := server.NewMCPServer(
		"Plex AI Library MCP Server",
		coreconfig.Global.App.Version,
		server.WithToolCapabilities(true),
	)

	libraryHandler := mcp.InitMcpLibrary(mediaUsecase, searchProvider, session, cfg.Server)
	if err := libraryHandler.AddLibraryTools(mcpServer); err != nil {
		logrus.Fatalf("[MCP] %v", err)
	}

	sseServer := server.NewSSEServer(
		mcpServer,
		server.WithBaseURL(fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port)),
		server.WithKeepAlive(true),
	)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	logrus.Printf("Starting library MCP SSE server on %s", addr)
	logrus.Printf("SSE endpoint: http://%s/sse", addr)
	logrus.Printf("Message endpoint: http://%s/message", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[MCP] Reception of termination signal, shutting down gracefully...")
		_ = sseServer.Shutdown(context.Background())
		StopApp()
		os.Exit(0)
	}()

	if err := sseServer.Start(addr); err != nil {
		logrus.Fatalf("Failed to start SSE server: %v", err)
	}
}
