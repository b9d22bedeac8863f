package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/chess-arena/models"
)

const (
	defaultDispatcherQueueSize = 256
	completionTimeout          = 30 * time.Second
)

// CompletionHandler is fed every MatchCompleted event, one at a time.
type CompletionHandler interface {
	OnMatchCompleted(ctx context.Context, matchID int) error
}

// Dispatcher sits between MatchService and the rest of the system:
// MatchChanged goes straight to the broadcaster, MatchCompleted is queued
// and handled serially by Run.
type Dispatcher struct {
	broadcaster Broadcaster
	handler     CompletionHandler
	queue       chan models.MatchCompleted
	stopped     chan struct{}
	logger      *slog.Logger

	// mu закрывает окно между последним drain и отказом в приёме:
	// публикаторы держат RLock, остановка берёт Lock.
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(broadcaster Broadcaster, handler CompletionHandler, queueSize int, logger *slog.Logger) *Dispatcher {
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	if queueSize <= 0 {
		queueSize = defaultDispatcherQueueSize
	}
	return &Dispatcher{
		broadcaster: broadcaster,
		handler:     handler,
		queue:       make(chan models.MatchCompleted, queueSize),
		stopped:     make(chan struct{}),
		logger:      loggerOrDefault(logger),
	}
}

func (d *Dispatcher) PublishMatchChanged(evt models.MatchChanged) {
	d.broadcaster.PublishMatchChanged(evt)
}

// PublishMatchCompleted blocks while the queue is full. After Run has
// returned the event is dropped and logged.
func (d *Dispatcher) PublishMatchCompleted(evt models.MatchCompleted) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped(evt)
		return
	}
	select {
	case d.queue <- evt:
	case <-d.stopped:
		d.dropped(evt)
	}
}

func (d *Dispatcher) dropped(evt models.MatchCompleted) {
	d.logger.Warn("dispatcher stopped, completion dropped", slog.Int("match_id", evt.MatchID))
}

// Run consumes completions until ctx is done, then drains what is already
// queued.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case evt := <-d.queue:
			d.handle(ctx, evt)
		case <-ctx.Done():
			d.shutdown()
			return
		}
	}
}

// shutdown stops accepting completions and handles every one that was
// accepted. Publishers blocked on a full queue are released and log a drop.
func (d *Dispatcher) shutdown() {
	close(d.stopped)
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.drain()
}

func (d *Dispatcher) drain() {
	for {
		select {
		case evt := <-d.queue:
			d.handle(context.Background(), evt)
		default:
			return
		}
	}
}

func (d *Dispatcher) handle(parent context.Context, evt models.MatchCompleted) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), completionTimeout)
	defer cancel()

	if err := d.handler.OnMatchCompleted(ctx, evt.MatchID); err != nil {
		d.logger.Error("match completion handling failed", slog.Int("match_id", evt.MatchID), slog.Any("error", err))
	}
}
