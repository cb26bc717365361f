package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/printmesh/api/internal/handlers"
	"github.com/printmesh/api/internal/platform/config"
	"github.com/printmesh/api/internal/platform/events"
	pfirestore "github.com/printmesh/api/internal/platform/firestore"
	"github.com/printmesh/api/internal/platform/idempotency"
	"github.com/printmesh/api/internal/platform/observability"
	"github.com/printmesh/api/internal/repositories"
	firestoreRepo "github.com/printmesh/api/internal/repositories/firestore"
	"github.com/printmesh/api/internal/services"
)

// Services bundles the service-layer contracts the handlers rely upon.
type Services struct {
	Orders      services.OrderService
	AdminOrders services.AdminOrderService
	Partners    services.PartnerService
	AuditLogs   services.AuditLogService
}

// Container wires repositories, services, and handlers for runtime use.
type Container struct {
	Config       config.Config
	Logger       *zap.Logger
	Repositories repositories.Registry
	Services     Services
	Handlers     handlers.RouterDeps

	pubsubClient *pubsub.Client
}

// NewContainer constructs the runtime dependency graph from configuration. The
// caller owns the container lifecycle and must Close it on shutdown.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	registry, err := firestoreRepo.NewRegistry(provider)
	if err != nil {
		return nil, fmt.Errorf("build repository registry: %w", err)
	}

	container := &Container{
		Config:       cfg,
		Logger:       logger,
		Repositories: registry,
	}

	var publisher services.OrderEventPublisher
	if cfg.Events.Enabled {
		client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("build pubsub client: %w", err)
		}
		container.pubsubClient = client
		publisher, err = events.NewPubSubOrderPublisher(client.Topic(cfg.Events.Topic))
		if err != nil {
			return nil, fmt.Errorf("build order event publisher: %w", err)
		}
	}

	svc, err := buildServices(registry, publisher)
	if err != nil {
		return nil, err
	}
	container.Services = svc

	replayStore, err := idempotency.NewFirestoreStore(provider)
	if err != nil {
		return nil, fmt.Errorf("build idempotency store: %w", err)
	}

	container.Handlers = handlers.RouterDeps{
		Logger:      logger,
		ProjectID:   cfg.Firestore.ProjectID,
		Idempotency: idempotency.Middleware(replayStore),
		Health:      handlers.NewHealthHandlers(),
		Orders:      handlers.NewOrderHandlers(svc.Orders),
		AdminOrders: handlers.NewAdminOrderHandlers(svc.AdminOrders),
		Partners:    handlers.NewPartnerHandlers(svc.Partners),
		AuditLogs:   handlers.NewAuditLogHandlers(svc.AuditLogs),
	}

	return container, nil
}

// Close releases the Firestore client and the Pub/Sub connection.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close repositories: %w", err))
		}
	}
	return errors.Join(errs...)
}

func buildServices(reg repositories.Registry, publisher services.OrderEventPublisher) (Services, error) {
	eventLogger := observability.EventLogger()
	newID := func() string { return ulid.Make().String() }

	auditSvc, err := services.NewAuditLogService(services.AuditLogServiceDeps{
		AuditLogs:   reg.AuditLogs(),
		Clock:       time.Now,
		IDGenerator: newID,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build audit log service: %w", err)
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      reg.Orders(),
		Partners:    reg.Partners(),
		Counters:    reg.Counters(),
		Clock:       time.Now,
		IDGenerator: newID,
		Events:      publisher,
		Logger:      eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	adminSvc, err := services.NewAdminOrderService(services.AdminOrderServiceDeps{
		Orders:     reg.Orders(),
		Shippers:   reg.Shippers(),
		AuditLog:   auditSvc,
		UnitOfWork: reg,
		Clock:      time.Now,
		Events:     publisher,
		Logger:     eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build admin order service: %w", err)
	}

	partnerSvc, err := services.NewPartnerService(services.PartnerServiceDeps{
		Partners:   reg.Partners(),
		AuditLog:   auditSvc,
		UnitOfWork: reg,
		Clock:      time.Now,
		Logger:     eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build partner service: %w", err)
	}

	return Services{
		Orders:      orderSvc,
		AdminOrders: adminSvc,
		Partners:    partnerSvc,
		AuditLogs:   auditSvc,
	}, nil
}
