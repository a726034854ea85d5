package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreconfig "github.com/JarvisJ/plex-ai/core/config"
	"github.com/JarvisJ/plex-ai/ui/rest"
	"github.com/JarvisJ/plex-ai/ui/rest/middleware"
	"github.com/JarvisJ/plex-ai/ui/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the media, auth and agent API over http",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

// NewRestApp builds the fiber app with every route registered. It is
// separate from restServer so the routing can be exercised without listening.
func NewRestApp(cfg *coreconfig.Config) *fiber.App {
	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: len(cfg.App.TrustedProxies) > 0,
		Network:                 "tcp",
		AppName:                 "Plex AI",
		DisableStartupMessage:   !cfg.App.Debug,
		ServerHeader:            "Hidden",
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedFor
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowCredentials: true,
	}))
	app.Use(middleware.Recovery())
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			// Poster grids fetch many thumbnails at once.
			return strings.HasSuffix(c.Path(), "/thumbnail")
		},
	}))
	if cfg.App.Debug {
		app.Use(logger.New())
	}

	rest.InitRestHealth(app, healthUsecase)

	apiGroup := app.Group(cfg.App.BasePath + "/api")
	requireAuth := middleware.Auth(tokenIssuer)

	rest.InitRestAuth(apiGroup, authUsecase, requireAuth)
	websocket.RegisterRoutes(apiGroup, agentUsecase, requireAuth)

	protected := apiGroup.Group("", requireAuth)
	rest.InitRestMedia(protected, mediaUsecase)
	rest.InitRestCache(protected, cacheUsecase)
	rest.InitRestAgent(protected, agentUsecase, agentMonitor)
	rest.InitRestWorkerPool(protected, turnPool)

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "API Endpoint not found",
			"path":  c.Path(),
		})
	})

	return app
}

func restServer(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global
	app := NewRestApp(cfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
		StopApp()
	}()

	logrus.Infof("[REST] listening on :%s", cfg.App.Port)
	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}
}
