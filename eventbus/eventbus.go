// Package eventbus implements the EventBus: the registry of interest in
// named event kinds and the notification entry point external task-system
// producers use to feed the Tracer (spec §4.5), grounded on
// original_source/v03/tasklab.{h,cpp}'s TaskLab::{hasEvent,watchEvent,
// eventOccurred} and the TL_EVT environment coupling of spec §6.3.
package eventbus

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/gammazero/deque"
	"github.com/tasklab/tasklab/internal/cerr"
	"github.com/tasklab/tasklab/trace"
)

// ErrUnsupportedEvent is wrapped and returned by Deliver and Watch when
// called with a kind outside the closed {HTask, LTask} set.
const ErrUnsupportedEvent cerr.Error = "eventbus: unsupported event kind"

// Kind is a watchable event kind. The set is closed: EVENT_S in the source
// reserves slot 0 as unused, HTask = 1, LTask = 2.
type Kind uint8

const (
	HTask Kind = 1
	LTask Kind = 2

	// eventSlots mirrors the source's EVENT_S (3): the highest valid kind
	// plus one, used to size the watch table.
	eventSlots = 3
)

// envVar is the name of the environment variable external producers read
// to learn which kinds are being watched (TL_EVT, spec §6.3).
const envVar = "TL_EVT"

// Bus is the registry of watched kinds and the delivery entry point.
// HTask deliveries are forwarded to a bound *trace.Tracer; LTask
// deliveries are appended to a low-level word sequence backed by a deque
// for O(1) push, matching the source's std::vector<uint64_t> ll usage
// pattern without reallocation churn on repeated appends.
type Bus struct {
	mu      sync.Mutex
	watched [eventSlots]bool
	tracer  *trace.Tracer
	ll      deque.Deque[uint64]
}

// NewBus creates a Bus that forwards HTask deliveries to tracer.
func NewBus(tracer *trace.Tracer) *Bus {
	return &Bus{tracer: tracer}
}

// Watch arms kind so that Watching(kind) reports true afterward.
func (b *Bus) Watch(kind Kind) error {
	if !validKind(kind) {
		return fmt.Errorf("%w: kind=%d", ErrUnsupportedEvent, kind)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watched[kind] = true
	return nil
}

// Watching reports whether kind is currently armed. External producers
// poll this before emitting, per spec §4.5.
func (b *Bus) Watching(kind Kind) bool {
	if !validKind(kind) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.watched[kind]
}

// Deliver forwards payload for kind. For HTask, payload must be
// []trace.Record (the dependency records of the submitted task); for
// LTask, payload must be uint64. Deliveries are processed in the order
// Deliver is called and in no other order (spec §4.5: "no ordering
// guarantee beyond" that).
func (b *Bus) Deliver(ctx context.Context, kind Kind, payload any) error {
	switch kind {
	case HTask:
		records, ok := payload.([]trace.Record)
		if !ok {
			return fmt.Errorf("%w: HTask payload must be []trace.Record, got %T", ErrUnsupportedEvent, payload)
		}
		if b.tracer == nil {
			return fmt.Errorf("%w: HTask delivered but no tracer is bound", ErrUnsupportedEvent)
		}
		_, err := b.tracer.AddTask(ctx, records)
		return err

	case LTask:
		word, ok := payload.(uint64)
		if !ok {
			return fmt.Errorf("%w: LTask payload must be uint64, got %T", ErrUnsupportedEvent, payload)
		}
		b.mu.Lock()
		b.ll.PushBack(word)
		b.mu.Unlock()
		return nil

	default:
		return fmt.Errorf("%w: kind=%d", ErrUnsupportedEvent, kind)
	}
}

// LL returns a snapshot of the low-level word sequence accumulated so far.
func (b *Bus) LL() []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]uint64, b.ll.Len())
	for i := range out {
		out[i] = b.ll.At(i)
	}
	return out
}

// ExportEnv encodes the currently watched kinds as the string-valued
// TL_EVT environment coupling and sets it in the current process
// environment so external producers can read it (spec §6.3).
func (b *Bus) ExportEnv() error {
	b.mu.Lock()
	mask := 0
	for k := Kind(1); k < eventSlots; k++ {
		if b.watched[k] {
			mask |= 1 << k
		}
	}
	b.mu.Unlock()
	return os.Setenv(envVar, strconv.Itoa(mask))
}

// ClearEnv clears the TL_EVT environment coupling between runs.
func (b *Bus) ClearEnv() error {
	return os.Unsetenv(envVar)
}

func validKind(k Kind) bool {
	return k == HTask || k == LTask
}
