package cmd

import (
	"context"
	"fmt"

	coreconfig "github.com/AzielCF/az-crm/core/config"
	coreDB "github.com/AzielCF/az-crm/core/database"
	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/crm/repository"
	"github.com/AzielCF/az-crm/infrastructure/valkey"
	"github.com/AzielCF/az-crm/infrastructure/whatsapp/cloudapi"
	"github.com/AzielCF/az-crm/pkg/crypto"
	"github.com/AzielCF/az-crm/pkg/msgworker"
	"github.com/AzielCF/az-crm/pkg/security"
	"github.com/AzielCF/az-crm/ui/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// appContainer holds every long-lived component of a running server
type appContainer struct {
	cfg    *coreconfig.Config
	db     *gorm.DB
	valkey *valkey.Client

	contacts      *repository.ContactGormRepository
	conversations *repository.ConversationGormRepository
	queues        *repository.QueueGormRepository
	users         *repository.UserGormRepository
	messages      *repository.MessageGormRepository

	inboundPool *msgworker.KeyedPool
	assignPool  *msgworker.KeyedPool

	tokens *security.TokenIssuer
	hub    *websocket.Hub

	connections  *application.ConnectionService
	ledger       *application.Ledger
	assignment   *application.AssignmentEngine
	inbound      *application.InboundProcessor
	outbound     *application.OutboundSender
	conversation *application.ConversationService
	contactSvc   *application.ContactService
	queueSvc     *application.QueueService
	userSvc      *application.UserService
	auth         *application.AuthService
	closer       *application.InactivityCloser
}

func openDatabase(ctx context.Context, cfg *coreconfig.Config) (*gorm.DB, error) {
	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := repository.AutoMigrate(ctx, db); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	logrus.Infof("[DB] Connected (%s) and migrated", cfg.Database.Driver)
	return db, nil
}

func newAppContainer(ctx context.Context, cfg *coreconfig.Config) (*appContainer, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cipher, err := crypto.NewCipher(cfg.Security.SecretKey)
	if err != nil {
		return nil, err
	}

	c := &appContainer{
		cfg:           cfg,
		db:            db,
		contacts:      repository.NewContactGormRepository(db),
		conversations: repository.NewConversationGormRepository(db),
		queues:        repository.NewQueueGormRepository(db),
		users:         repository.NewUserGormRepository(db),
		messages:      repository.NewMessageGormRepository(db),
		tokens:        security.NewTokenIssuer(cfg.Security.SecretKey, cfg.Security.TokenTTL),
	}

	var seen domain.SeenStore = repository.NewMemorySeenStore(cfg.Whatsapp.WebhookDedupTTL)
	var typing domain.TypingStore = repository.NewMemoryTypingStore()
	if cfg.Valkey.Enabled {
		client, err := valkey.Connect(ctx, valkey.Options{
			Address:   cfg.Valkey.Address,
			Password:  cfg.Valkey.Password,
			DB:        cfg.Valkey.DB,
			KeyPrefix: cfg.Valkey.KeyPrefix,
		})
		if err != nil {
			// in-memory stores keep a single instance working
			logrus.WithError(err).Warn("[VALKEY] Falling back to in-memory dedup and typing stores")
		} else {
			c.valkey = client
			seen = repository.NewValkeySeenStore(client, cfg.Whatsapp.WebhookDedupTTL)
			typing = repository.NewValkeyTypingStore(client)
			logrus.Infof("[VALKEY] Connected to %s", cfg.Valkey.Address)
		}
	}

	c.hub = websocket.NewHub(websocket.Config{
		PingInterval:  cfg.Realtime.PingInterval,
		SweepInterval: cfg.Realtime.SweepInterval,
		IdleTimeout:   cfg.Realtime.IdleTimeout,
		RequireAuth:   cfg.App.RequireAuth,
	}, c.tokens, typing)

	c.inboundPool = msgworker.NewKeyedPool("inbound", cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	c.assignPool = msgworker.NewKeyedPool("assign", max(cfg.WorkerPool.Size/2, 1), cfg.WorkerPool.QueueSize)

	gateways := cloudapi.NewFactory(cloudapi.Config{
		BaseURL:    cfg.Whatsapp.APIBaseURL,
		APIVersion: cfg.Whatsapp.APIVersion,
		Timeout:    cfg.Whatsapp.HTTPTimeout,
	})

	connRepo := repository.NewConnectionGormRepository(db, cipher)
	resolver := application.NewResolver(c.contacts, c.conversations, c.queues)

	c.connections = application.NewConnectionService(connRepo, gateways, cfg.Whatsapp.VerifyToken, cfg.Whatsapp.ConnectionCacheTTL)
	c.ledger = application.NewLedger(c.conversations, c.messages, c.connections, gateways, c.hub)
	c.assignment = application.NewAssignmentEngine(c.conversations, c.queues, c.users, c.hub, c.assignPool)
	c.inbound = application.NewInboundProcessor(cloudapi.NewNormalizer(), seen, resolver, c.ledger, c.assignment, c.hub, c.inboundPool)
	c.outbound = application.NewOutboundSender(resolver, c.ledger, c.hub, c.inboundPool)
	c.conversation = application.NewConversationService(c.conversations, c.contacts, c.queues, c.messages, c.hub)
	c.contactSvc = application.NewContactService(c.contacts, c.conversations)
	c.queueSvc = application.NewQueueService(c.queues, c.conversations)
	c.userSvc = application.NewUserService(c.users, c.hub)
	c.auth = application.NewAuthService(c.users, c.tokens)
	c.closer = application.NewInactivityCloser(c.conversation, cfg.Conversation.InactivityTimeout, cfg.Conversation.AutoCloseSchedule)

	return c, nil
}

// Start launches the worker pools, the hub timers and the inactivity scheduler
func (c *appContainer) Start(ctx context.Context) error {
	c.inboundPool.Start(ctx)
	c.assignPool.Start(ctx)
	c.hub.Start()
	return c.closer.Start()
}

// Stop performs a clean shutdown of background work and connections.
func (c *appContainer) Stop() {
	logrus.Info("[APP] Stopping application...")

	c.closer.Stop()
	c.hub.Shutdown()
	c.inboundPool.Stop()
	c.assignPool.Stop()

	if c.valkey != nil {
		c.valkey.Close()
	}
	if sqlDB, err := c.db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
