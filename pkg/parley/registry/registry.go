// Package registry maps topic keys to the set of sessions interested in
// them and fans encoded frames out to those sessions.
//
// The hub builds three: user ids for chat membership events, chat ids for
// live messages, and user ids again for friend events.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/amir-yaghoubi/mqttpattern"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/protocol"
)

// Subscriber receives pre-encoded frames. Send must not block.
// *session.Session satisfies it.
type Subscriber interface {
	Send(frame []byte) error
}

// Registry is safe for concurrent use. Locks are held only while reading or
// mutating the maps; frames are handed to subscribers after the lock is
// released.
type Registry[K comparable] struct {
	name        string
	logger      *zap.Logger
	traceTopics []string

	mu     sync.RWMutex
	topics map[K]map[Subscriber]struct{}
	joined map[Subscriber]map[K]struct{}

	broadcastCounter o11y.Counter
	droppedCounter   o11y.Counter
	deliveredCounter o11y.Counter
	topicGauge       o11y.Gauge
}

// Stats is a snapshot of registry size.
type Stats struct {
	Name          string `json:"name"`
	Topics        int    `json:"topics"`
	Subscriptions int    `json:"subscriptions"`
	Subscribers   int    `json:"subscribers"`
}

// Subscribe adds sub to key's set. Subscribing twice is a no-op.
func (r *Registry[K]) Subscribe(key K, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[key]
	if !ok {
		set = make(map[Subscriber]struct{})
		r.topics[key] = set
	}
	set[sub] = struct{}{}

	keys, ok := r.joined[sub]
	if !ok {
		keys = make(map[K]struct{})
		r.joined[sub] = keys
	}
	keys[key] = struct{}{}

	r.updateGauge()
}

// Unsubscribe removes sub from key's set, deleting the key once its set is
// empty.
func (r *Registry[K]) Unsubscribe(key K, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remove(key, sub)
	r.updateGauge()
}

// UnsubscribeAll removes sub from every key it joined and returns how many
// keys that was.
func (r *Registry[K]) UnsubscribeAll(sub Subscriber) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.joined[sub]
	count := len(keys)
	for key := range keys {
		r.remove(key, sub)
	}
	r.updateGauge()

	return count
}

func (r *Registry[K]) remove(key K, sub Subscriber) {
	if set, ok := r.topics[key]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(r.topics, key)
		}
	}

	if keys, ok := r.joined[sub]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.joined, sub)
		}
	}
}

// Broadcast encodes msg once and sends it to every subscriber of key. It
// returns the number of subscribers whose queue accepted the frame.
func (r *Registry[K]) Broadcast(ctx context.Context, key K, msg protocol.Message) (int, error) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return 0, err
	}

	return r.BroadcastFrame(ctx, key, frame, msg.MessageType()), nil
}

// BroadcastToMany sends msg to the subscribers of each key in turn, encoding
// it only once. A subscriber present under two keys receives it twice.
func (r *Registry[K]) BroadcastToMany(ctx context.Context, keys []K, msg protocol.Message) (int, error) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, key := range keys {
		total += r.BroadcastFrame(ctx, key, frame, msg.MessageType())
	}
	return total, nil
}

// BroadcastFrame sends an already encoded frame to key's subscribers.
// kind only labels logs and metrics.
func (r *Registry[K]) BroadcastFrame(ctx context.Context, key K, frame []byte, kind string) int {
	subs := r.snapshot(key)

	delivered := 0
	dropped := 0
	for _, sub := range subs {
		if err := sub.Send(frame); err != nil {
			dropped++
			continue
		}
		delivered++
	}

	labels := []o11y.Label{{Key: "registry", Value: r.name}, {Key: "type", Value: kind}}
	if r.broadcastCounter != nil {
		r.broadcastCounter.Add(ctx, 1, labels...)
	}
	if r.deliveredCounter != nil && delivered > 0 {
		r.deliveredCounter.Add(ctx, int64(delivered), labels...)
	}
	if r.droppedCounter != nil && dropped > 0 {
		r.droppedCounter.Add(ctx, int64(dropped), labels...)
	}

	if dropped > 0 {
		r.logger.Debug("Broadcast not accepted by every subscriber",
			zap.String("type", kind),
			zap.Any("key", key),
			zap.Int("delivered", delivered),
			zap.Int("dropped", dropped))
	}
	if r.traced(key) {
		r.logger.Info("Broadcast",
			zap.String("type", kind),
			zap.Any("key", key),
			zap.Int("subscribers", len(subs)),
			zap.ByteString("frame", frame))
	}

	return delivered
}

func (r *Registry[K]) snapshot(key K) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.topics[key]
	subs := make([]Subscriber, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	return subs
}

// traced reports whether key matches one of the configured MQTT style
// trace patterns, e.g. "chat/+" or "user/#".
func (r *Registry[K]) traced(key K) bool {
	if len(r.traceTopics) == 0 {
		return false
	}

	topic := r.name + "/" + fmt.Sprint(key)
	for _, pattern := range r.traceTopics {
		if mqttpattern.Matches(pattern, topic) {
			return true
		}
	}
	return false
}

// IsSubscribed reports whether sub is in key's set.
func (r *Registry[K]) IsSubscribed(key K, sub Subscriber) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.topics[key][sub]
	return ok
}

// HasTopic reports whether key currently has any subscribers.
func (r *Registry[K]) HasTopic(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.topics[key]
	return ok
}

// SubscriberCount returns the size of key's set.
func (r *Registry[K]) SubscriberCount(key K) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[key])
}

// Keys returns the keys sub is subscribed to.
func (r *Registry[K]) Keys(sub Subscriber) []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]K, 0, len(r.joined[sub]))
	for key := range r.joined[sub] {
		keys = append(keys, key)
	}
	return keys
}

func (r *Registry[K]) Name() string { return r.name }

func (r *Registry[K]) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subscriptions := 0
	for _, set := range r.topics {
		subscriptions += len(set)
	}

	return Stats{
		Name:          r.name,
		Topics:        len(r.topics),
		Subscriptions: subscriptions,
		Subscribers:   len(r.joined),
	}
}

// updateGauge must be called with mu held.
func (r *Registry[K]) updateGauge() {
	if r.topicGauge != nil {
		r.topicGauge.Set(context.Background(), float64(len(r.topics)), o11y.Label{Key: "registry", Value: r.name})
	}
}
