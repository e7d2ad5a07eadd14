package eventbroker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// Connect ouvre la connexion NATS et le contexte JetStream.
func Connect(url, name string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("⚠️ NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("🔌 NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream init: %w", err)
	}
	return nc, js, nil
}

// EnsureStream crée ou met à jour le stream SOCIAL (idempotent).
func EnsureStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage, // Persistance sur disque
		Replicas: 1,                     // Mettre 3 en cluster
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	return stream, nil
}

type NatsPublisher struct {
	js  jetstream.JetStream
	now func() time.Time
}

var _ ports.EventPublisher = (*NatsPublisher)(nil)

func NewNatsPublisher(js jetstream.JetStream) *NatsPublisher {
	return &NatsPublisher{js: js, now: func() time.Time { return time.Now().UTC() }}
}

func (p *NatsPublisher) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, SubjectUserRegistered, UserRegisteredEvent{
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		OccurredAt: user.CreatedAt,
	})
}

func (p *NatsPublisher) PublishUserUpdated(ctx context.Context, userID string) error {
	return p.publish(ctx, SubjectUserUpdated, UserUpdatedEvent{UserID: userID, OccurredAt: p.now()})
}

func (p *NatsPublisher) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	return p.publish(ctx, SubjectPostCreated, PostCreatedEvent{
		PostID:    post.ID,
		AuthorID:  post.UserID,
		CreatedAt: post.CreatedAt,
	})
}

func (p *NatsPublisher) PublishPostLiked(ctx context.Context, post *domain.Post, userID string) error {
	return p.publish(ctx, SubjectPostLiked, p.likeEvent(post, userID))
}

func (p *NatsPublisher) PublishPostUnliked(ctx context.Context, post *domain.Post, userID string) error {
	return p.publish(ctx, SubjectPostUnliked, p.likeEvent(post, userID))
}

func (p *NatsPublisher) PublishFollowed(ctx context.Context, follow *domain.Follow) error {
	return p.publish(ctx, SubjectFollowed, FollowEvent{
		FollowerID:  follow.FollowerID,
		FollowingID: follow.FollowingID,
		OccurredAt:  follow.CreatedAt,
	})
}

func (p *NatsPublisher) PublishUnfollowed(ctx context.Context, followerID, followingID string) error {
	return p.publish(ctx, SubjectUnfollowed, FollowEvent{
		FollowerID:  followerID,
		FollowingID: followingID,
		OccurredAt:  p.now(),
	})
}

func (p *NatsPublisher) likeEvent(post *domain.Post, userID string) PostLikeEvent {
	return PostLikeEvent{
		PostID:     post.ID,
		AuthorID:   post.UserID,
		UserID:     userID,
		LikeCount:  post.LikeCount,
		OccurredAt: p.now(),
	}
}

// publish : JSON + trace context dans les headers, ACK JetStream attendu.
func (p *NatsPublisher) publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	// Injection du TraceID dans les headers NATS
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	ack, err := p.js.PublishMsg(ctx, msg)
	if err != nil {
		return domain.NewTransient("nats publish "+subject, err)
	}
	slog.Debug("📢 Event published", "subject", subject, "seq", ack.Sequence)
	return nil
}
