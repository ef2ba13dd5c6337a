package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreconfig "github.com/AzielCF/az-crm/core/config"
	"github.com/AzielCF/az-crm/ui/rest"
	"github.com/AzielCF/az-crm/ui/rest/middleware"
	"github.com/AzielCF/az-crm/ui/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the CRM REST API, the WhatsApp webhook and the realtime channel",
	Run:   restServer,
}

func init() {
	restCmd.Flags().Bool("require-auth", false, "require a bearer token on every /api route except webhook and login")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	cfg := coreconfig.Global
	if requireAuth, _ := cmd.Flags().GetBool("require-auth"); requireAuth {
		cfg.App.RequireAuth = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := newAppContainer(ctx, cfg)
	if err != nil {
		logrus.Fatalf("[APP] Initialization failed: %v", err)
	}
	if err := container.Start(ctx); err != nil {
		logrus.Fatalf("[APP] Startup failed: %v", err)
	}

	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		Network:                 "tcp",
		AppName:                 "Az-CRM",
		ServerHeader:            "Hidden",
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedFor
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			// Meta retries webhooks in bursts from a handful of IPs
			return strings.HasSuffix(c.Path(), "/whatsapp/webhook")
		},
	}))
	if cfg.App.Debug {
		app.Use(logger.New())
	}

	root := app.Group(cfg.App.BasePath)
	rest.InitRestHealth(root, cfg.App.Version, container.hub)
	websocket.RegisterRoutes(root, container.hub)

	apiPrefix := cfg.App.BasePath + "/api"
	apiGroup := app.Group(apiPrefix)
	apiGroup.Use(middleware.Auth(middleware.AuthConfig{
		Tokens:   container.tokens,
		Required: cfg.App.RequireAuth,
		Next:     middleware.PublicPaths(apiPrefix, "/whatsapp/webhook", "/auth/login"),
	}))

	rest.InitRestWhatsapp(apiGroup, container.inbound, container.outbound, container.connections)
	rest.InitRestConversation(apiGroup, container.conversation, container.assignment)
	rest.InitRestMessage(apiGroup, container.ledger)
	rest.InitRestQueue(apiGroup, container.queueSvc, container.assignment)
	rest.InitRestContact(apiGroup, container.contactSvc)
	rest.InitRestUser(apiGroup, container.userSvc)
	rest.InitRestAuth(apiGroup, container.auth)
	rest.InitRestWorkerPool(apiGroup, container.inboundPool, container.assignPool)

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "API Endpoint not found",
			"path":  c.Path(),
		})
	})

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
	}()

	if !cfg.App.RequireAuth {
		logrus.Warn("[REST] APP_REQUIRE_AUTH is false; the API is open to anyone who can reach it")
	}
	logrus.Infof("[REST] Listening on :%s", cfg.App.Port)
	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Errorf("[REST] Failed to start: %v", err)
	}

	container.Stop()
}
