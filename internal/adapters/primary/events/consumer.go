package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
)

const (
	DurableName    = "social-cache-invalidator"
	handlerTimeout = 30 * time.Second
	nakDelay       = 2 * time.Second
)

// AuthorPostsInvalidator est la seule capacité dont le consumer a besoin.
type AuthorPostsInvalidator interface {
	InvalidateAuthorPosts(ctx context.Context, authorID string) error
}

// CacheInvalidator rafraîchit les vues de posts quand un auteur change de profil.
type CacheInvalidator struct {
	js      jetstream.JetStream
	service AuthorPostsInvalidator
	tracer  trace.Tracer
	cc      jetstream.ConsumeContext
}

func NewCacheInvalidator(js jetstream.JetStream, service AuthorPostsInvalidator) *CacheInvalidator {
	return &CacheInvalidator{
		js:      js,
		service: service,
		tracer:  otel.Tracer("social-service/events"),
	}
}

// Start crée (ou met à jour) le consumer durable puis consomme en arrière-plan.
func (c *CacheInvalidator) Start(ctx context.Context) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, eventbroker.StreamName, jetstream.ConsumerConfig{
		Durable:       DurableName,
		FilterSubject: eventbroker.SubjectUserUpdated,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       handlerTimeout + 5*time.Second,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", DurableName, err)
	}

	cc, err := cons.Consume(c.handle)
	if err != nil {
		return fmt.Errorf("consume %s: %w", DurableName, err)
	}
	c.cc = cc
	slog.Info("📥 Event consumer started", "durable", DurableName, "subject", eventbroker.SubjectUserUpdated)
	return nil
}

func (c *CacheInvalidator) Stop() {
	if c.cc != nil {
		c.cc.Stop()
		c.cc = nil
	}
}

func (c *CacheInvalidator) handle(msg jetstream.Msg) {
	// Contexte de trace propagé par le publisher
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Headers()))
	ctx, span := c.tracer.Start(ctx, "process_user_updated", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var event eventbroker.UserUpdatedEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil || event.UserID == "" {
		if err == nil {
			err = domain.ErrInvalidID
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payload")
		slog.Error("❌ Invalid event format", "subject", msg.Subject(), "error", err)
		// Un message illisible ne deviendra jamais lisible : pas de redelivery
		_ = msg.Term()
		return
	}
	span.SetAttributes(attribute.String("user.id", event.UserID))

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	if err := c.service.InvalidateAuthorPosts(ctx, event.UserID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalidation failed")
		slog.Error("❌ Post cache invalidation failed", "user_id", event.UserID, "error", err)
		_ = msg.NakWithDelay(nakDelay)
		return
	}

	if err := msg.Ack(); err != nil {
		slog.Warn("⚠️ Failed to ack event", "user_id", event.UserID, "error", err)
		return
	}
	slog.Debug("✅ Author posts invalidated", "user_id", event.UserID)
}
