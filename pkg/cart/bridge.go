package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"shophub.store/storefront/pkg/pricing"
)

// ErrPaymentInProgress is returned by item mutations while a payment is pending.
var ErrPaymentInProgress = errors.New("cart is locked while a payment is in progress")

// Session identifies who owns the cart. A zero Session is anonymous.
type Session struct {
	Token  string
	UserID string
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Bridge owns the live cart state and keeps it in step with either the
// remote per-user store or local durable storage.
type Bridge struct {
	mu      sync.Mutex
	state   State
	session Session
	storage Storage
	remote  RemoteCart
	sink    EffectSink
	logger  *zap.Logger
}

func NewBridge(session Session, storage Storage, remote RemoteCart, sink EffectSink, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		state:   Empty(),
		session: session,
		storage: storage,
		remote:  remote,
		sink:    sink,
		logger:  logger,
	}
}

func (b *Bridge) Session() Session {
	return b.session
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Hydrate loads the cart at session start. Any failure leaves an empty cart.
// A leftover payment snapshot means the process is coming back from the
// gateway, so the cart is locked until the payment is resolved.
func (b *Bridge) Hydrate(ctx context.Context) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Empty()
	if b.session.Authenticated() {
		items, err := b.remote.GetCart(ctx, b.session.Token)
		if err != nil {
			b.logger.Warn("failed to fetch remote cart, starting empty", zap.Error(err))
		} else {
			s = b.reapplyCoupon(ctx, SetCart(s, items))
		}
	} else {
		var saved persisted
		found, err := b.storage.Load(ctx, StorageKey, &saved)
		if err != nil {
			b.logger.Warn("failed to read stored cart, starting empty", zap.Error(err))
		} else if found {
			s = SetCart(s, saved.Items)
			if saved.Coupon != nil {
				if next, err := ApplyCoupon(s, saved.Coupon.Code); err == nil {
					s = next
				}
			}
		}
	}

	var snap Snapshot
	if found, err := b.storage.Load(ctx, SnapshotKey, &snap); err == nil && found {
		s = BeginPayment(s)
	}

	b.state = s
	return s
}

func (b *Bridge) AddItem(ctx context.Context, p ProductSnapshot, quantity int, options map[string]string) (State, error) {
	return b.mutate(ctx, func(s State) (State, *Effect) {
		next := AddItem(s, p, quantity, options)
		line, _ := next.find(p.ID, options)
		if _, merged := s.find(p.ID, options); merged {
			return next, &Effect{Kind: EffectUpdate, LineID: line.LineID, Quantity: line.Quantity}
		}
		return next, &Effect{Kind: EffectAdd, Line: line, LineID: line.LineID}
	})
}

func (b *Bridge) RemoveItem(ctx context.Context, lineID string) (State, error) {
	return b.mutate(ctx, func(s State) (State, *Effect) {
		return RemoveItem(s, lineID), &Effect{Kind: EffectRemove, LineID: lineID}
	})
}

func (b *Bridge) UpdateQuantity(ctx context.Context, lineID string, quantity int) (State, error) {
	return b.mutate(ctx, func(s State) (State, *Effect) {
		if quantity <= 0 {
			return UpdateQuantity(s, lineID, quantity), &Effect{Kind: EffectRemove, LineID: lineID}
		}
		return UpdateQuantity(s, lineID, quantity), &Effect{Kind: EffectUpdate, LineID: lineID, Quantity: quantity}
	})
}

func (b *Bridge) Clear(ctx context.Context) (State, error) {
	return b.mutate(ctx, func(s State) (State, *Effect) {
		return ClearCart(s), &Effect{Kind: EffectClear}
	})
}

// ApplyCoupon returns the lookup error separately from the state; the state
// is unchanged when the code is unknown.
func (b *Bridge) ApplyCoupon(ctx context.Context, code string) (State, error) {
	var couponErr error
	s, err := b.mutate(ctx, func(s State) (State, *Effect) {
		var next State
		next, couponErr = ApplyCoupon(s, code)
		return next, nil
	})
	if err != nil {
		return s, err
	}
	return s, couponErr
}

func (b *Bridge) RemoveCoupon(ctx context.Context) (State, error) {
	return b.mutate(ctx, func(s State) (State, *Effect) {
		return RemoveCoupon(s), nil
	})
}

func (b *Bridge) ToggleOpen() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = ToggleOpen(b.state)
	return b.state
}

func (b *Bridge) mutate(ctx context.Context, fn func(State) (State, *Effect)) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state.IsPaymentInProgress {
		return b.state, ErrPaymentInProgress
	}

	next, effect := fn(b.state)
	b.state = next

	if b.session.Authenticated() {
		if effect != nil {
			effect.Token = b.session.Token
			b.emit(*effect)
		}
		b.persistCoupon(ctx)
	} else {
		b.persistLocal(ctx)
	}
	return b.state, nil
}

// reapplyCoupon puts a signed-in user's stored coupon back on a cart
// fetched from the remote store.
func (b *Bridge) reapplyCoupon(ctx context.Context, s State) State {
	var coupon pricing.Coupon
	found, err := b.storage.Load(ctx, CouponKey, &coupon)
	if err != nil {
		b.logger.Warn("failed to read stored coupon", zap.Error(err))
		return s
	}
	if !found || len(s.Items) == 0 {
		return s
	}
	next, err := ApplyCoupon(s, coupon.Code)
	if err != nil {
		return s
	}
	return next
}

func (b *Bridge) persistCoupon(ctx context.Context) {
	var err error
	if b.state.Coupon == nil || len(b.state.Items) == 0 {
		err = b.storage.Delete(ctx, CouponKey)
	} else {
		err = b.storage.Save(ctx, CouponKey, b.state.Coupon)
	}
	if err != nil {
		b.logger.Warn("failed to persist coupon", zap.Error(err))
	}
}

func (b *Bridge) emit(e Effect) {
	if b.sink == nil {
		return
	}
	b.sink.Enqueue(e)
}

// persistLocal writes the anonymous cart, or removes it when empty.
func (b *Bridge) persistLocal(ctx context.Context) {
	var err error
	if len(b.state.Items) == 0 {
		err = b.storage.Delete(ctx, StorageKey)
	} else {
		err = b.storage.Save(ctx, StorageKey, persisted{Items: b.state.Items, Coupon: b.state.Coupon})
	}
	if err != nil {
		b.logger.Warn("failed to persist cart locally", zap.Error(err))
	}
}

// SaveForPayment writes the snapshot and locks the cart. It must succeed
// before anything can navigate away to the gateway.
func (b *Bridge) SaveForPayment(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.storage.Save(ctx, SnapshotKey, b.state.Snapshot()); err != nil {
		return fmt.Errorf("failed to save cart snapshot: %w", err)
	}
	b.state = BeginPayment(b.state)
	return nil
}

// RestoreAfterPayment brings back the pre-payment cart. Without a snapshot
// only the lock is released.
func (b *Bridge) RestoreAfterPayment(ctx context.Context) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var snap Snapshot
	found, err := b.storage.Load(ctx, SnapshotKey, &snap)
	if err != nil {
		b.logger.Warn("failed to read cart snapshot", zap.Error(err))
		found = false
	}

	if !found {
		b.state = RestoreSnapshot(b.state, nil)
		return b.state, err
	}

	b.state = RestoreSnapshot(b.state, &snap)
	if err := b.storage.Delete(ctx, SnapshotKey); err != nil {
		b.logger.Warn("failed to delete cart snapshot", zap.Error(err))
	}

	if b.session.Authenticated() {
		// Order creation empties the server cart, so put the lines back.
		b.emit(Effect{Kind: EffectReplace, Token: b.session.Token, Items: cloneItems(b.state.Items)})
		b.persistCoupon(ctx)
	} else {
		b.persistLocal(ctx)
	}
	return b.state, nil
}

// ClearAfterPayment discards the snapshot and empties the cart.
func (b *Bridge) ClearAfterPayment(ctx context.Context) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.storage.Delete(ctx, SnapshotKey)
	if err != nil {
		err = fmt.Errorf("failed to delete cart snapshot: %w", err)
	}

	b.state = CompletePayment(b.state)
	if b.session.Authenticated() {
		b.emit(Effect{Kind: EffectClear, Token: b.session.Token})
		b.persistCoupon(ctx)
	} else {
		b.persistLocal(ctx)
	}
	return b.state, err
}
