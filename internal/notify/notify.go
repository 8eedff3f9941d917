// Package notify delivers configuration change notifications.
//
// Observers subscribe to every change or to a position in the tree. A
// position subscription hears about changes at that position, below it,
// and above it, since replacing or removing an ancestor affects it too.
package notify

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dshills/plugconf/internal/diff"
	"github.com/dshills/plugconf/internal/value"
)

// ChangeType classifies a Change.
type ChangeType int

// Change types.
const (
	ChangeSet ChangeType = iota
	ChangeDelete

	// ChangeReload replaces the whole tree; it reaches every subscriber.
	ChangeReload
)

// String returns the lower case name of the type.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change describes one modification of a configuration tree.
type Change struct {
	// Position is the root for reloads.
	Position value.Position
	Type     ChangeType

	// Action is zero unless the change was built from a diff record.
	Action diff.Action

	// Old is nil for additions and New is nil for deletions.
	Old *value.Value
	New *value.Value

	// Source names the producer, such as "plugin" or "watch:<id>".
	Source string
}

// FromRecord converts a diff record into a change.
func FromRecord(r diff.Record, source string) Change {
	c := Change{
		Position: r.Position,
		Type:     ChangeSet,
		Action:   r.Action,
		Old:      r.Old,
		New:      r.New,
		Source:   source,
	}
	if r.Action == diff.Removed {
		c.Type = ChangeDelete
	}
	return c
}

// Observer receives changes.
type Observer func(change Change)

// Subscription is returned by Subscribe and SubscribePath.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe stops delivery to the subscription's observer. Changes
// already being delivered may still arrive.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

type subscriber struct {
	id       uint64
	global   bool
	pos      value.Position
	observer Observer
}

func (s subscriber) matches(change Change) bool {
	if s.global || change.Type == ChangeReload || change.Position.IsRoot() {
		return true
	}
	return change.Position.HasPrefix(s.pos) || s.pos.HasPrefix(change.Position)
}

// Notifier fans changes out to subscribers, synchronously by default.
type Notifier struct {
	// mu guards subs and nextID.
	mu     sync.RWMutex
	subs   []subscriber
	nextID uint64

	closed    atomic.Bool
	closeOnce sync.Once

	// Async delivery. overflow holds changes sent by a running observer
	// while queue is full; it is delivered after everything in queue.
	queue    chan Change
	stop     chan struct{}
	drained  chan struct{}
	busy     atomic.Bool
	overMu   sync.Mutex
	overflow []Change
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAsync delivers changes from a background goroutine through a queue
// of the given size. Notify blocks while the queue is full, except when an
// observer is running: its changes are held back and delivered in order
// once the queue drains, so observers may notify the same Notifier.
func WithAsync(bufferSize int) Option {
	return func(n *Notifier) {
		if bufferSize > 0 {
			n.queue = make(chan Change, bufferSize)
		}
	}
}

// New creates a Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{}
	for _, opt := range opts {
		opt(n)
	}
	if n.queue != nil {
		n.stop = make(chan struct{})
		n.drained = make(chan struct{})
		go n.run()
	}
	return n
}

func (n *Notifier) run() {
	defer close(n.drained)
	for {
		change, ok := n.next()
		if !ok {
			return
		}
		n.busy.Store(true)
		n.deliver(change)
		n.busy.Store(false)
	}
}

// next returns the next change to deliver, taking the queue before the
// overflow. After Close it reports false once both are empty.
func (n *Notifier) next() (Change, bool) {
	select {
	case change := <-n.queue:
		return change, true
	default:
	}
	if change, ok := n.popOverflow(); ok {
		return change, true
	}
	select {
	case change := <-n.queue:
		return change, true
	case <-n.stop:
		select {
		case change := <-n.queue:
			return change, true
		default:
		}
		return n.popOverflow()
	}
}

func (n *Notifier) popOverflow() (Change, bool) {
	n.overMu.Lock()
	defer n.overMu.Unlock()
	if len(n.overflow) == 0 {
		return Change{}, false
	}
	change := n.overflow[0]
	n.overflow[0] = Change{}
	n.overflow = n.overflow[1:]
	return change, true
}

// enqueue hands change to the delivery goroutine. Once anything is in the
// overflow, later changes follow it there to keep their order.
func (n *Notifier) enqueue(change Change) {
	n.overMu.Lock()
	if len(n.overflow) == 0 {
		select {
		case n.queue <- change:
			n.overMu.Unlock()
			return
		default:
		}
	}
	if len(n.overflow) > 0 || n.busy.Load() {
		n.overflow = append(n.overflow, change)
		n.overMu.Unlock()
		return
	}
	n.overMu.Unlock()

	select {
	case n.queue <- change:
	case <-n.stop:
	}
}

// Subscribe registers an observer for every change.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.add(subscriber{global: true, observer: observer})
}

// SubscribePath registers an observer for changes at pos, below it and
// above it: a subscription to [git] hears [git][enabled], and one to
// [git][enabled] hears the removal of [git].
func (n *Notifier) SubscribePath(pos value.Position, observer Observer) *Subscription {
	return n.add(subscriber{pos: slices.Clone(pos), observer: observer})
}

func (n *Notifier) add(s subscriber) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	s.id = n.nextID
	n.nextID++
	n.subs = append(n.subs, s)
	return &Subscription{id: s.id, notifier: n}
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.subs = slices.DeleteFunc(n.subs, func(s subscriber) bool {
		return s.id == id
	})
}

// Notify delivers change to the matching observers. It is a no-op after
// Close.
func (n *Notifier) Notify(change Change) {
	if n.closed.Load() {
		return
	}
	if n.queue != nil {
		n.enqueue(change)
		return
	}
	n.deliver(change)
}

// NotifySet announces that the value at pos changed from one value to
// another.
func (n *Notifier) NotifySet(pos value.Position, from, to *value.Value, source string) {
	n.Notify(Change{Position: pos, Type: ChangeSet, Old: from, New: to, Source: source})
}

// NotifyDelete announces that the value at pos was removed.
func (n *Notifier) NotifyDelete(pos value.Position, old *value.Value, source string) {
	n.Notify(Change{Position: pos, Type: ChangeDelete, Old: old, Source: source})
}

// NotifyReload announces that the whole configuration was replaced.
func (n *Notifier) NotifyReload(source string) {
	n.Notify(Change{Type: ChangeReload, Source: source})
}

// NotifyDiff sends one change per diff record, in record order. Removed
// records become deletes; everything else becomes a set.
func (n *Notifier) NotifyDiff(records []diff.Record, source string) {
	for _, r := range records {
		n.Notify(FromRecord(r, source))
	}
}

// Close stops accepting changes. In async mode it waits until queued
// changes have been delivered, so it must not be called from an observer.
// Close is idempotent.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		n.closed.Store(true)
		if n.queue != nil {
			close(n.stop)
			<-n.drained
		}
	})
}

// deliver calls the matching observers without holding any lock, so
// observers may subscribe or notify themselves.
func (n *Notifier) deliver(change Change) {
	n.mu.RLock()
	var observers []Observer
	for _, s := range n.subs {
		if s.matches(change) {
			observers = append(observers, s.observer)
		}
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(change)
	}
}

// Batch accumulates changes and sends them together on Commit.
type Batch struct {
	mu       sync.Mutex
	notifier *Notifier
	pending  []Change
}

// NewBatch returns an empty batch bound to n.
func (n *Notifier) NewBatch() *Batch {
	return &Batch{notifier: n}
}

// Add queues a change.
func (b *Batch) Add(change Change) {
	b.mu.Lock()
	b.pending = append(b.pending, change)
	b.mu.Unlock()
}

// AddDiff queues one change per diff record.
func (b *Batch) AddDiff(records []diff.Record, source string) {
	b.mu.Lock()
	for _, r := range records {
		b.pending = append(b.pending, FromRecord(r, source))
	}
	b.mu.Unlock()
}

// Commit sends the queued changes in order and empties the batch.
func (b *Batch) Commit() {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, change := range pending {
		b.notifier.Notify(change)
	}
}

// Discard empties the batch without sending anything.
func (b *Batch) Discard() {
	b.mu.Lock()
	b.pending = nil
	b.mu.Unlock()
}

// Len returns the number of queued changes.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
