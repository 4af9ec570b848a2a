package store

import (
	"context"
	"sync"
)

// Notifier fans committed snapshots out to subscribers.
type Notifier interface {
	Publish(ctx context.Context, snap Snapshot) error
	Subscribe(collection, id string) (<-chan Snapshot, func())
}

// Broker is an in-process Notifier keyed by "collection/id", with
// "collection/*" receiving every document of the collection.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Snapshot]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan Snapshot]struct{}),
	}
}

func key(collection, id string) string { return collection + "/" + id }

func (b *Broker) Subscribe(collection, id string) (<-chan Snapshot, func()) {
	k := key(collection, id)
	ch := make(chan Snapshot, 16)
	b.mu.Lock()
	if b.subs[k] == nil {
		b.subs[k] = make(map[chan Snapshot]struct{})
	}
	b.subs[k][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[k], ch)
			if len(b.subs[k]) == 0 {
				delete(b.subs, k)
			}
			b.mu.Unlock()
		})
	}
}

// Publish never blocks. A subscriber whose buffer is full loses its oldest
// pending snapshot so the newest one always gets through.
func (b *Broker) Publish(_ context.Context, snap Snapshot) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, k := range []string{key(snap.Collection, snap.ID), key(snap.Collection, "*")} {
		for ch := range b.subs[k] {
			select {
			case ch <- snap:
			default:
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- snap:
				default:
				}
			}
		}
	}
	return nil
}
