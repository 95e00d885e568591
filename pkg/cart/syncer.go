package cart

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// RemoteCart is the per-user cart store on the server.
type RemoteCart interface {
	GetCart(ctx context.Context, token string) ([]LineItem, error)
	AddItem(ctx context.Context, token string, line LineItem) error
	UpdateItem(ctx context.Context, token, lineID string, quantity int) error
	RemoveItem(ctx context.Context, token, lineID string) error
	ClearCart(ctx context.Context, token string) error
}

type EffectKind int

const (
	EffectAdd EffectKind = iota
	EffectUpdate
	EffectRemove
	EffectClear
	// EffectReplace clears the remote cart and re-adds Items.
	EffectReplace
)

func (k EffectKind) String() string {
	switch k {
	case EffectAdd:
		return "add"
	case EffectUpdate:
		return "update"
	case EffectRemove:
		return "remove"
	case EffectClear:
		return "clear"
	case EffectReplace:
		return "replace"
	}
	return "unknown"
}

// Effect is one outbound mirror of a local cart mutation.
type Effect struct {
	Kind     EffectKind
	Token    string
	Line     LineItem
	LineID   string
	Quantity int
	Items    []LineItem
}

// EffectSink accepts effects without blocking the caller.
type EffectSink interface {
	Enqueue(e Effect) bool
}

// Syncer drains effects to the remote cart in order. Failures are logged and
// dropped; the next hydration reconciles.
type Syncer struct {
	remote  RemoteCart
	effects chan Effect
	breaker *gobreaker.CircuitBreaker[struct{}]
	timeout time.Duration
	logger  *zap.Logger
}

func NewSyncer(remote RemoteCart, buffer int, logger *zap.Logger) *Syncer {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		remote:  remote,
		effects: make(chan Effect, buffer),
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "cart-sync",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		timeout: 10 * time.Second,
		logger:  logger,
	}
}

func (s *Syncer) Enqueue(e Effect) bool {
	select {
	case s.effects <- e:
		return true
	default:
		s.logger.Warn("cart sync queue full, dropping effect", zap.Stringer("kind", e.Kind))
		return false
	}
}

// Run applies effects until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-s.effects:
			if err := s.apply(ctx, e); err != nil {
				s.logger.Warn("cart sync failed",
					zap.Stringer("kind", e.Kind),
					zap.String("line_id", e.LineID),
					zap.Error(err),
				)
			}
		}
	}
}

func (s *Syncer) apply(ctx context.Context, e Effect) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.send(ctx, e)
	})
	return err
}

func (s *Syncer) send(ctx context.Context, e Effect) error {
	switch e.Kind {
	case EffectAdd:
		return s.remote.AddItem(ctx, e.Token, e.Line)
	case EffectUpdate:
		return s.remote.UpdateItem(ctx, e.Token, e.LineID, e.Quantity)
	case EffectRemove:
		return s.remote.RemoveItem(ctx, e.Token, e.LineID)
	case EffectClear:
		return s.remote.ClearCart(ctx, e.Token)
	case EffectReplace:
		if err := s.remote.ClearCart(ctx, e.Token); err != nil {
			return err
		}
		var errs []error
		for _, line := range e.Items {
			errs = append(errs, s.remote.AddItem(ctx, e.Token, line))
		}
		return errors.Join(errs...)
	}
	return nil
}
