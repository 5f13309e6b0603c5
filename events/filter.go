package events

import (
	"bytes"
	"encoding/json"
	"time"

	"chatgate/model"
)

// Filter is a predicate over events. Filters compose with And, Or and Not.
type Filter func(ConfigEvent) bool

// Match reports whether e passes f. A nil filter matches everything.
func (f Filter) Match(e ConfigEvent) bool {
	if f == nil {
		return true
	}
	return f(e)
}

// And matches when every filter matches.
func And(filters ...Filter) Filter {
	return func(e ConfigEvent) bool {
		for _, f := range filters {
			if !f.Match(e) {
				return false
			}
		}
		return true
	}
}

// Or matches when at least one filter matches. Or() with no filters matches nothing.
func Or(filters ...Filter) Filter {
	return func(e ConfigEvent) bool {
		for _, f := range filters {
			if f.Match(e) {
				return true
			}
		}
		return false
	}
}

// Not inverts f.
func Not(f Filter) Filter {
	return func(e ConfigEvent) bool {
		return !f.Match(e)
	}
}

// ByProvider matches events for any of the given providers.
func ByProvider(providers ...model.ProviderID) Filter {
	set := make(map[model.ProviderID]struct{}, len(providers))
	for _, p := range providers {
		set[p] = struct{}{}
	}
	return func(e ConfigEvent) bool {
		_, ok := set[e.Provider]
		return ok
	}
}

// ByType matches events of any of the given types.
func ByType(types ...EventType) Filter {
	set := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return func(e ConfigEvent) bool {
		_, ok := set[e.Type]
		return ok
	}
}

// InTimeRange matches events stamped within [from, to]. A zero bound is open.
func InTimeRange(from, to time.Time) Filter {
	return func(e ConfigEvent) bool {
		if !from.IsZero() && e.Timestamp.Before(from) {
			return false
		}
		if !to.IsZero() && e.Timestamp.After(to) {
			return false
		}
		return true
	}
}

// ValueChanged matches events whose serialized old and new values differ.
func ValueChanged() Filter {
	return func(e ConfigEvent) bool {
		oldJSON, err := json.Marshal(e.OldValue)
		if err != nil {
			return true
		}
		newJSON, err := json.Marshal(e.NewValue)
		if err != nil {
			return true
		}
		return !bytes.Equal(oldJSON, newJSON)
	}
}

// FilterConfig declares a filter. Empty fields do not constrain.
type FilterConfig struct {
	Providers    []model.ProviderID
	EventTypes   []EventType
	From         time.Time
	To           time.Time
	ValueChanged bool
	Custom       Filter
}

// NewFilter builds the conjunction of everything set in cfg.
func NewFilter(cfg FilterConfig) Filter {
	var parts []Filter
	if len(cfg.Providers) > 0 {
		parts = append(parts, ByProvider(cfg.Providers...))
	}
	if len(cfg.EventTypes) > 0 {
		parts = append(parts, ByType(cfg.EventTypes...))
	}
	if !cfg.From.IsZero() || !cfg.To.IsZero() {
		parts = append(parts, InTimeRange(cfg.From, cfg.To))
	}
	if cfg.ValueChanged {
		parts = append(parts, ValueChanged())
	}
	if cfg.Custom != nil {
		parts = append(parts, cfg.Custom)
	}
	return And(parts...)
}
