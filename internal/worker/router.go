package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/constants"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/models"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/services"
)

// FanoutHandler handles notification events.
type FanoutHandler interface {
	HandleBlogPublished(ctx context.Context, e models.BlogPublished) models.FanoutResult
	HandleBrandingKitReady(ctx context.Context, e models.BrandingKitReady) models.FanoutResult
	HandleTaskMessageAppended(ctx context.Context, e models.TaskMessageAppended) models.FanoutResult
}

// TaskRequestHandler handles new task requests.
type TaskRequestHandler interface {
	HandleTaskRequestCreated(ctx context.Context, e models.TaskRequestCreated) error
}

// NewPubSub creates the in-process event bus.
func NewPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)
}

// NewRouter wires one consumer handler per event topic. Every message is acked:
// failures are logged and never redelivered.
func NewRouter(
	subscriber message.Subscriber,
	fanout FanoutHandler,
	tasks TaskRequestHandler,
	metrics *services.Metrics,
	logger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Outer to inner: ack everything, then turn panics into errors.
	router.AddMiddleware(ackAlways, middleware.Recoverer)

	router.AddConsumerHandler("blog_published", constants.TopicBlogPublished, subscriber,
		consume(metrics, func(ctx context.Context, e models.BlogPublished) {
			fanout.HandleBlogPublished(ctx, e)
		}))
	router.AddConsumerHandler("branding_kit_ready", constants.TopicBrandingKitReady, subscriber,
		consume(metrics, func(ctx context.Context, e models.BrandingKitReady) {
			fanout.HandleBrandingKitReady(ctx, e)
		}))
	router.AddConsumerHandler("task_message_appended", constants.TopicTaskMessageAppended, subscriber,
		consume(metrics, func(ctx context.Context, e models.TaskMessageAppended) {
			fanout.HandleTaskMessageAppended(ctx, e)
		}))
	router.AddConsumerHandler("task_request_created", constants.TopicTaskRequestCreated, subscriber,
		consume(metrics, func(ctx context.Context, e models.TaskRequestCreated) {
			_ = tasks.HandleTaskRequestCreated(ctx, e)
		}))

	return router, nil
}

// consume decodes the payload into T and hands it to handle.
func consume[T any](metrics *services.Metrics, handle func(ctx context.Context, e T)) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		metrics.EventsReceived.Add(1)

		var e T
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable event")
			return nil
		}
		handle(msg.Context(), e)
		return nil
	}
}

func ackAlways(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		out, err := h(msg)
		if err != nil {
			logging.Error().Err(err).
				Str("handler", message.HandlerNameFromCtx(msg.Context())).
				Str("message_uuid", msg.UUID).
				Msg("event handler failed")
		}
		return out, nil
	}
}
