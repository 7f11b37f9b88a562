package notifications

import (
	"context"
	"sync"

	"github.com/angelmondragon/momopay/internal/payments"
	"github.com/angelmondragon/momopay/pkg/logger"
)

const defaultFeedSize = 20

// LogBridge logs every transition and keeps the most recent notices for
// clients that poll for them.
type LogBridge struct {
	logg *logger.Logger
	size int

	mu      sync.Mutex
	notices []Notice
	sinks   []func(Notice)
}

// NewLogBridge keeps up to size notices; size <= 0 uses a default.
func NewLogBridge(logg *logger.Logger, size int) *LogBridge {
	if logg == nil {
		logg = logger.Nop()
	}
	if size <= 0 {
		size = defaultFeedSize
	}
	return &LogBridge{logg: logg, size: size}
}

// Attach subscribes the bridge to a payment session and returns the remover.
func (b *LogBridge) Attach(svc interface {
	Subscribe(payments.Listener) func()
}) func() {
	return svc.Subscribe(b.Handle)
}

// OnNotice registers fn to receive every notice after it is recorded.
func (b *LogBridge) OnNotice(fn func(Notice)) {
	b.mu.Lock()
	b.sinks = append(b.sinks, fn)
	b.mu.Unlock()
}

// Handle is a payments.Listener.
func (b *LogBridge) Handle(tr payments.Transition) {
	ctx := b.logg.WithFields(context.Background(), map[string]any{
		"from":  tr.From,
		"to":    tr.To,
		"event": tr.Event.Type,
	})
	if tr.Snapshot.PaymentID != "" {
		ctx = b.logg.WithPaymentID(ctx, tr.Snapshot.PaymentID)
	}
	if tr.Snapshot.ErrorCode != "" {
		ctx = b.logg.WithField(ctx, "error_code", tr.Snapshot.ErrorCode)
	}
	if tr.Event.Err != nil {
		ctx = b.logg.WithField(ctx, "error", tr.Event.Err.Error())
		b.logg.Warn(ctx, "payment transition")
	} else {
		b.logg.Info(ctx, "payment transition")
	}

	notice, ok := ForTransition(tr)
	if !ok {
		return
	}

	b.mu.Lock()
	b.notices = append(b.notices, notice)
	if len(b.notices) > b.size {
		b.notices = append([]Notice(nil), b.notices[len(b.notices)-b.size:]...)
	}
	sinks := append([]func(Notice){}, b.sinks...)
	b.mu.Unlock()

	for _, sink := range sinks {
		sink(notice)
	}
}

// Recent returns the retained notices, oldest first.
func (b *LogBridge) Recent() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notice{}, b.notices...)
}
