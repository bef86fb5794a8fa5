package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/mentor-queue/internal/events"
)

// Channel delivers a message to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Service fans ticket events out to the configured channels. Deliveries run
// in the background and never block or fail the publishing request.
type Service struct {
	channels []Channel
	timeout  time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// ServiceDependencies bundles constructor inputs.
type ServiceDependencies struct {
	Channels []Channel
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewService builds the notifier. Nil channels are ignored.
func NewService(deps ServiceDependencies) *Service {
	channels := make([]Channel, 0, len(deps.Channels))
	for _, ch := range deps.Channels {
		if ch != nil && !isNilChannel(ch) {
			channels = append(channels, ch)
		}
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{channels: channels, timeout: timeout, logger: logger}
}

// RegisterHandlers subscribes to events.
func (s *Service) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, s.handleTicketCreated)
}

// Channels lists the names of active channels.
func (s *Service) Channels() []string {
	names := make([]string, 0, len(s.channels))
	for _, ch := range s.channels {
		names = append(names, ch.Name())
	}
	return names
}

func (s *Service) handleTicketCreated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if len(s.channels) == 0 {
		s.logger.Debug("no notification channels configured", zap.Int64("ticket_id", event.TicketID))
		return nil
	}

	msg := TicketCreatedMessage(payload)
	for _, ch := range s.channels {
		s.wg.Add(1)
		go s.deliver(ch, event.TicketID, msg)
	}
	return nil
}

func (s *Service) deliver(ch Channel, ticketID int64, msg Message) {
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := ch.Send(ctx, msg); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("channel", ch.Name()),
			zap.Int64("ticket_id", ticketID),
			zap.Error(err))
		return
	}
	s.logger.Info("notification sent", zap.String("channel", ch.Name()), zap.Int64("ticket_id", ticketID))
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isNilChannel(ch Channel) bool {
	switch c := ch.(type) {
	case *GotifyChannel:
		return c == nil
	case *EmailChannel:
		return c == nil
	}
	return false
}
