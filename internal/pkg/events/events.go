// Package events fans out role changes so every live session of the affected
// user re-resolves its role, on this instance and on its peers.
package events

import (
	"context"
	"sync"
)

// RoleChange names a user whose role row was written or removed.
type RoleChange struct {
	UserID string `json:"user_id"`
}

// Broadcaster publishes and delivers role changes.
type Broadcaster interface {
	PublishRoleChange(ctx context.Context, userID string) error
	// SubscribeRoleChanges registers fn and returns its cancel func.
	SubscribeRoleChanges(fn func(RoleChange)) (func(), error)
	Close() error
}

// LocalBroadcaster delivers role changes within the process, synchronously.
type LocalBroadcaster struct {
	mu        sync.RWMutex
	listeners map[uint64]func(RoleChange)
	nextID    uint64
}

func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{listeners: make(map[uint64]func(RoleChange))}
}

func (b *LocalBroadcaster) PublishRoleChange(_ context.Context, userID string) error {
	b.mu.RLock()
	fns := make([]func(RoleChange), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(RoleChange{UserID: userID})
	}
	return nil
}

func (b *LocalBroadcaster) SubscribeRoleChanges(fn func(RoleChange)) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}, nil
}

func (b *LocalBroadcaster) Close() error {
	b.mu.Lock()
	b.listeners = make(map[uint64]func(RoleChange))
	b.mu.Unlock()
	return nil
}
