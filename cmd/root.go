package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/JarvisJ/plex-ai/agentengine/application"
	domain "github.com/JarvisJ/plex-ai/agentengine/domain"
	"github.com/JarvisJ/plex-ai/agentengine/providers"
	"github.com/JarvisJ/plex-ai/agentengine/repository"
	"github.com/JarvisJ/plex-ai/agentengine/tools"
	coreconfig "github.com/JarvisJ/plex-ai/core/config"
	domainAgent "github.com/JarvisJ/plex-ai/domains/agent"
	domainAuth "github.com/JarvisJ/plex-ai/domains/auth"
	domainCache "github.com/JarvisJ/plex-ai/domains/cache"
	domainHealth "github.com/JarvisJ/plex-ai/domains/health"
	"github.com/JarvisJ/plex-ai/domains/kvstore"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	"github.com/JarvisJ/plex-ai/infrastructure/memstore"
	"github.com/JarvisJ/plex-ai/infrastructure/plex"
	"github.com/JarvisJ/plex-ai/infrastructure/search"
	"github.com/JarvisJ/plex-ai/infrastructure/valkey"
	"github.com/JarvisJ/plex-ai/pkg/agentmonitor"
	"github.com/JarvisJ/plex-ai/pkg/security"
	"github.com/JarvisJ/plex-ai/pkg/turnpool"
	"github.com/JarvisJ/plex-ai/pkg/utils"
	"github.com/JarvisJ/plex-ai/usecase"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Storage
	vkClient *valkey.Client
	kvStore  kvstore.Store

	// Usecase
	cacheUsecase  domainCache.ICacheUsecase
	mediaUsecase  domainMedia.IMediaUsecase
	authUsecase   domainAuth.IAuthUsecase
	agentUsecase  domainAgent.IAgentUsecase
	healthUsecase domainHealth.IHealthUsecase

	// Agent engine
	llmProvider    domain.LLMProvider
	searchProvider tools.SearchProvider
	turnPool       *turnpool.Pool
	agentMonitor   *agentmonitor.Monitor
	tokenIssuer    *security.TokenIssuer
)

var rootCmd = &cobra.Command{
	Use:   "plex-ai",
	Short: "Plex library assistant backend",
	Long:  `Serves the Plex media API, the PIN login flow and the library chat agent over REST, SSE, websockets and MCP.`,
}

func init() {
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

func initFlags() {
	rootCmd.PersistentFlags().StringP(
		"port", "p", "",
		"change port number with --port <number> | example: --port=8000",
	)
	rootCmd.PersistentFlags().BoolP(
		"debug", "d", false,
		"enable debug logging with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().String(
		"store", "",
		`key-value backend --store <valkey|memory> | example: --store=memory`,
	)

	_ = viper.BindPFlag("app_port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("app_debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("store_driver", rootCmd.PersistentFlags().Lookup("store"))
}

// initEnvConfig loads the environment and lets flags override it.
func initEnvConfig() {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}
	if v := viper.GetString("app_port"); v != "" {
		cfg.App.Port = v
	}
	if viper.GetBool("app_debug") {
		cfg.App.Debug = true
	}
	if v := viper.GetString("store_driver"); v != "" {
		cfg.Valkey.Driver = v
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if cfg.App.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	logrus.WithFields(logrus.Fields(coreconfig.GetAllSettings())).Debug("[CONFIG] loaded")
}

func initStore(cfg *coreconfig.Config) {
	if cfg.Valkey.Driver == "memory" {
		logrus.Warn("[STORE] using in-memory store; cache and conversations are lost on restart")
		kvStore = memstore.New()
		return
	}

	client, err := valkey.NewClient(valkey.Config{
		Address:   cfg.Valkey.Address,
		Password:  cfg.Valkey.Password,
		DB:        cfg.Valkey.DB,
		KeyPrefix: cfg.Valkey.KeyPrefix,
	})
	if err != nil {
		logrus.Fatalf("[STORE] %v", err)
	}
	vkClient = client
	kvStore = valkey.NewStore(client)
}

func initProvider(cfg *coreconfig.Config) {
	switch cfg.LLM.Provider {
	case "gemini":
		if cfg.LLM.GeminiKey == "" {
			logrus.Fatal("[LLM] GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
		provider, err := providers.NewGeminiProvider(context.Background(), cfg.LLM.GeminiKey)
		if err != nil {
			logrus.Fatalf("[LLM] %v", err)
		}
		llmProvider = provider
	case "openai":
		if cfg.LLM.OpenAIKey == "" {
			logrus.Warn("[LLM] OPENAI_API_KEY is empty; chat requests will fail")
		}
		llmProvider = providers.NewOpenAIProvider(cfg.LLM.OpenAIKey)
	default:
		logrus.Fatalf("[LLM] unknown provider %q", cfg.LLM.Provider)
	}
}

func initApp() {
	cfg := coreconfig.Global

	initStore(cfg)
	initProvider(cfg)

	if cfg.Search.TavilyAPIKey != "" {
		searchProvider = search.NewTavilyClient(cfg.Search.TavilyAPIKey, cfg.Search.TavilyURL, 0)
	}

	issuer, err := security.NewTokenIssuer(
		cfg.Security.SessionSecretKey,
		cfg.Security.JWTAlgorithm,
		time.Duration(cfg.Security.JWTExpirationHours)*time.Hour,
	)
	if err != nil {
		logrus.Fatalf("[AUTH] %v", err)
	}
	tokenIssuer = issuer

	plexClient := plex.NewClient(plex.Config{
		ClientIdentifier: cfg.Plex.ClientIdentifier,
		ProductName:      cfg.Plex.ProductName,
		Timeout:          cfg.Plex.Timeout,
		ForwardURL:       cfg.App.FrontendURL,
	})

	cacheUsecase = usecase.NewCacheService(kvStore, cfg.Cache.Namespace, cfg.Cache.DefaultTTL)
	mediaUsecase = usecase.NewMediaService(plexClient, cacheUsecase)
	authUsecase = usecase.NewAuthService(plexClient, tokenIssuer)

	turnPool = turnpool.New(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	turnPool.Start(context.Background())

	conversations := repository.NewKVConversationStore(kvStore, repository.ConversationStoreConfig{
		TTL:        cfg.Conversation.TTL,
		MaxPerUser: cfg.Conversation.MaxPerUser,
	})
	agentMonitor = agentmonitor.New(cfg.Conversation.MonitorBuffer, cfg.Conversation.MonitorTTL)
	agentUsecase = application.NewPlexAgentService(application.Deps{
		Provider: llmProvider,
		Media:    mediaUsecase,
		Search:   searchProvider,
		Store:    conversations,
		History:  repository.NewMemoryHistoryCache(),
		Pool:     turnPool,
		Monitor:  agentMonitor,
	}, application.Config{
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxIterations: cfg.Conversation.MaxIterations,
		StreamBuffer:  cfg.Conversation.StreamBufferSize,
		ListLimit:     cfg.Conversation.ListLimit,
	})

	healthUsecase = usecase.NewHealthService(kvStore, turnPool, usecase.HealthOptions{
		Version:     cfg.App.Version,
		ServerID:    utils.GetServerID(cfg.App.ServerID),
		StoreDriver: cfg.Valkey.Driver,
		LLMProvider: cfg.LLM.Provider,
		LLMModel:    cfg.LLM.Model,
		WebSearch:   searchProvider != nil,
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// StopApp drains in-flight turns and closes the store connection.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if turnPool != nil {
		turnPool.Stop()
	}
	if vkClient != nil {
		vkClient.Close()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
