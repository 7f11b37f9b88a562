package payments

import (
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/momopay/pkg/enums"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
)

var transitions = map[enums.PaymentState]map[EventType]enums.PaymentState{
	enums.PaymentStateIdle: {
		EventUserSubmit:     enums.PaymentStateCreatedLocal,
		EventReconcileBegin: enums.PaymentStateReconcileProcessing,
	},
	enums.PaymentStateCreatedLocal: {
		EventSubmitRequest:  enums.PaymentStateSubmitting,
		EventReconcileBegin: enums.PaymentStateReconcileProcessing,
	},
	enums.PaymentStateSubmitting: {
		EventSubmitSucceeded: enums.PaymentStateProcessing,
		EventSubmitFailed:    enums.PaymentStateFailed,
	},
	enums.PaymentStateProcessing: {
		EventSettlementConfirmed: enums.PaymentStateSuccess,
		EventBackupConfirmed:     enums.PaymentStateSuccess,
		EventBackupRejected:      enums.PaymentStateFailed,
	},
	enums.PaymentStateReconcileProcessing: {
		EventSubmitRequest:      enums.PaymentStateSubmitting,
		EventReconcileBegin:     enums.PaymentStateReconcileProcessing,
		EventReconcileSucceeded: enums.PaymentStateSuccess,
		EventReconcileExpired:   enums.PaymentStateExpired,
		EventReconcileDeferred:  enums.PaymentStateReconcileProcessing,
		EventReconcileFailed:    enums.PaymentStateFailed,
	},
	enums.PaymentStateSuccess: {
		EventReset: enums.PaymentStateIdle,
	},
	enums.PaymentStateFailed: {
		EventSubmitRequest:  enums.PaymentStateSubmitting,
		EventReconcileBegin: enums.PaymentStateReconcileProcessing,
		EventReset:          enums.PaymentStateIdle,
	},
	enums.PaymentStateExpired: {
		EventReset: enums.PaymentStateIdle,
	},
}

// Machine holds the state of one session's payment intent.
type Machine struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex
	snap      Snapshot
	listeners map[int]Listener
	nextID    int
	now       func() time.Time
}

// NewMachine returns a machine in the idle state.
func NewMachine(now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{
		snap:      Snapshot{State: enums.PaymentStateIdle, UpdatedAt: now().UTC()},
		listeners: map[int]Listener{},
		now:       now,
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Subscribe registers l and returns a function that removes it.
func (m *Machine) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// CanDispatch reports whether ev would be accepted in the current state.
func (m *Machine) CanDispatch(ev EventType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := transitions[m.snap.State][ev]
	return ok
}

// Dispatch applies ev. An event that is not legal in the current state
// returns STATE_CONFLICT and leaves the state untouched.
func (m *Machine) Dispatch(ev Event) (Snapshot, error) {
	m.mu.Lock()
	from := m.snap.State
	to, ok := transitions[from][ev.Type]
	if !ok {
		snap := m.snap
		m.mu.Unlock()
		return snap, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("event %s is not allowed in state %s", ev.Type, from)).
			WithDetails(map[string]any{"state": from, "event": ev.Type})
	}

	at := m.now().UTC()
	m.snap = apply(m.snap, ev, to, at)
	snap := m.snap
	listeners := make([]Listener, 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if l, ok := m.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	// Taking notifyMu before releasing mu keeps listener delivery in dispatch order.
	m.notifyMu.Lock()
	m.mu.Unlock()
	defer m.notifyMu.Unlock()

	transition := Transition{From: from, To: to, Event: ev, Snapshot: snap, At: at}
	for _, l := range listeners {
		l(transition)
	}
	return snap, nil
}

func apply(snap Snapshot, ev Event, to enums.PaymentState, at time.Time) Snapshot {
	switch ev.Type {
	case EventReset:
		return Snapshot{State: enums.PaymentStateIdle, UpdatedAt: at}
	case EventUserSubmit:
		snap = Snapshot{}
	case EventSubmitRequest, EventReconcileBegin:
		// Identifiers belong to one key; a different key starts clean.
		if ev.Key != "" && ev.Key != snap.Key {
			snap.Key, snap.PaymentID, snap.ChargeID = ev.Key, "", ""
		}
		snap.Error, snap.ErrorCode = "", ""
	case EventSubmitSucceeded, EventReconcileSucceeded:
		snap.PaymentID = ev.PaymentID
		snap.Error, snap.ErrorCode = "", ""
	}
	if ev.ChargeID != "" {
		snap.ChargeID = ev.ChargeID
	}
	if ev.Err != nil {
		snap.Error = reason(ev.Err)
		snap.ErrorCode = pkgerrors.CodeOf(ev.Err)
	}
	snap.State = to
	snap.UpdatedAt = at
	return snap
}

// reason renders the typed message and its cause without the code prefix.
func reason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() == "" {
		return err.Error()
	}
	if cause := typed.Unwrap(); cause != nil {
		return typed.Message() + ": " + cause.Error()
	}
	return typed.Message()
}
