package worker

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
)

// EventSource publishes source events until ctx is done.
type EventSource interface {
	Run(ctx context.Context)
}

// Worker owns the event bus, the router and the event source of one process.
type Worker struct {
	id     string
	pubsub *gochannel.GoChannel
	router *message.Router
	source EventSource
}

func New(id string, pubsub *gochannel.GoChannel, router *message.Router, source EventSource) *Worker {
	return &Worker{
		id:     id,
		pubsub: pubsub,
		router: router,
		source: source,
	}
}

// Run starts the router, then the event source once the router is subscribed.
// It returns after ctx is cancelled and in-flight handlers finished.
func (w *Worker) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		if err := w.router.Run(ctx); err != nil {
			logging.Error().Err(err).Str("worker_id", w.id).Msg("router stopped with error")
		}
	}()

	// gochannel drops messages published before a subscriber exists.
	select {
	case <-w.router.Running():
	case <-ctx.Done():
	}

	var sourceWg sync.WaitGroup
	if ctx.Err() == nil && w.source != nil {
		sourceWg.Add(1)
		go func() {
			defer sourceWg.Done()
			w.source.Run(ctx)
		}()
	}

	logging.Info().Str("worker_id", w.id).Msg("worker started")

	<-ctx.Done()
	logging.Info().Str("worker_id", w.id).Msg("worker shutting down")

	sourceWg.Wait()
	if err := w.router.Close(); err != nil {
		logging.Warn().Err(err).Msg("router close")
	}
	<-routerDone
	if err := w.pubsub.Close(); err != nil {
		logging.Warn().Err(err).Msg("pubsub close")
	}
	logging.Info().Str("worker_id", w.id).Msg("worker stopped")
}
