// Package events is an in-memory pub/sub bus for configuration changes.
//
// Subscriptions are indexed by key: the wildcard, a provider, an event type,
// or a provider+type combination. Publish looks up every key the event
// matches and then applies each subscription's optional Filter.
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chatgate/model"
)

// EventType names the kind of configuration change.
type EventType string

const (
	Updated  EventType = "updated"
	Reset    EventType = "reset"
	Imported EventType = "imported"
	Migrated EventType = "migrated"
)

// ConfigEvent describes a configuration change. Provider is empty for
// events that affect every provider (reset-all, import, migration).
type ConfigEvent struct {
	Provider  model.ProviderID
	Type      EventType
	OldValue  any
	NewValue  any
	Timestamp time.Time
}

// Handler receives published events.
type Handler func(ConfigEvent)

// SubscribeOptions narrows which events reach a handler.
type SubscribeOptions struct {
	Provider   model.ProviderID
	EventTypes []EventType
	Filter     Filter
}

type subscription struct {
	id      string
	handler Handler
	filter  Filter
}

// Bus dispatches events synchronously on the publishing goroutine.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[string]*subscription // key -> subscription id -> sub
	now  func() time.Time
	log  logrus.FieldLogger
}

// NewBus creates an empty bus.
func NewBus(log logrus.FieldLogger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bus{
		subs: make(map[string]map[string]*subscription),
		now:  time.Now,
		log:  log.WithField("component", "events"),
	}
}

// WithClock replaces the timestamp source. Intended for tests.
func (b *Bus) WithClock(now func() time.Time) *Bus {
	b.now = now
	return b
}

const wildcardKey = "*"

func providerKey(p model.ProviderID) string {
	return "provider:" + string(p)
}

func typeKey(t EventType) string {
	return "type:" + string(t)
}

func comboKey(p model.ProviderID, t EventType) string {
	return fmt.Sprintf("provider:%s|type:%s", p, t)
}

func subscriptionKeys(opts SubscribeOptions) []string {
	switch {
	case opts.Provider != "" && len(opts.EventTypes) > 0:
		keys := make([]string, 0, len(opts.EventTypes))
		for _, t := range opts.EventTypes {
			keys = append(keys, comboKey(opts.Provider, t))
		}
		return keys
	case opts.Provider != "":
		return []string{providerKey(opts.Provider)}
	case len(opts.EventTypes) > 0:
		keys := make([]string, 0, len(opts.EventTypes))
		for _, t := range opts.EventTypes {
			keys = append(keys, typeKey(t))
		}
		return keys
	default:
		return []string{wildcardKey}
	}
}

func eventKeys(e ConfigEvent) []string {
	keys := []string{wildcardKey, typeKey(e.Type)}
	if e.Provider != "" {
		keys = append(keys, providerKey(e.Provider), comboKey(e.Provider, e.Type))
	}
	return keys
}

// Subscribe registers handler and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(handler Handler, opts SubscribeOptions) func() {
	sub := &subscription{
		id:      uuid.New().String(),
		handler: handler,
		filter:  opts.Filter,
	}
	keys := dedupe(subscriptionKeys(opts))

	b.mu.Lock()
	for _, k := range keys {
		if b.subs[k] == nil {
			b.subs[k] = make(map[string]*subscription)
		}
		b.subs[k][sub.id] = sub
	}
	b.mu.Unlock()

	b.log.Debugf("Subscribed %s to %v", sub.id, keys)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, k := range keys {
				delete(b.subs[k], sub.id)
				if len(b.subs[k]) == 0 {
					delete(b.subs, k)
				}
			}
		})
	}
}

// Publish stamps e with the current time and delivers it. The stamped event
// is returned. A panicking filter or handler is logged and does not stop
// delivery to other subscriptions.
func (b *Bus) Publish(e ConfigEvent) ConfigEvent {
	e.Timestamp = b.now()

	type delivery struct {
		key string
		sub *subscription
	}
	var targets []delivery

	b.mu.RLock()
	for _, k := range eventKeys(e) {
		for _, sub := range b.subs[k] {
			targets = append(targets, delivery{key: k, sub: sub})
		}
	}
	b.mu.RUnlock()

	for _, t := range targets {
		b.deliver(t.key, t.sub, e)
	}
	return e
}

// SubscriberCount returns the number of distinct subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, subs := range b.subs {
		for id := range subs {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

func (b *Bus) deliver(key string, sub *subscription, e ConfigEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{
				"subscription": sub.id,
				"key":          key,
				"event":        e.Type,
			}).Errorf("Event subscriber panicked: %v", r)
		}
	}()
	if !sub.filter.Match(e) {
		return
	}
	sub.handler(e)
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
