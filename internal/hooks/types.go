package hooks

import (
	"context"
	"sort"
	"sync/atomic"
)

// ActionFunc is a fire-and-forget subscriber. Returning an error aborts the
// remaining subscribers of the same trigger.
type ActionFunc func(ctx context.Context, args ...any) error

// FilterFunc receives the current value and returns the value handed to the
// next subscriber.
type FilterFunc func(ctx context.Context, value any, args ...any) (any, error)

// Options configures a subscription
type Options struct {
	// Priority orders subscribers of one name; lower runs first.
	Priority int
	// ID identifies the subscription for Off. Registering the same ID twice
	// under one name replaces the earlier subscription.
	ID string
	// Once removes the subscription after its first invocation. A chain
	// aborted before reaching it leaves it registered.
	Once bool
}

// subscription is one registered action or filter
type subscription struct {
	id       string
	priority int
	seq      uint64
	once     bool
	fired    atomic.Bool
	action   ActionFunc
	filter   FilterFunc
}

// registry holds the subscriptions of one pipeline keyed by hook name.
// Slices are kept sorted by (priority, seq).
type registry struct {
	subs map[string][]*subscription
}

func newRegistry() *registry {
	return &registry{subs: make(map[string][]*subscription)}
}

// add inserts s, replacing any subscription with the same id
func (r *registry) add(name string, s *subscription) {
	list := r.subs[name]
	for i, existing := range list {
		if existing.id == s.id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}

	idx := sort.Search(len(list), func(i int) bool {
		if list[i].priority != s.priority {
			return list[i].priority > s.priority
		}
		return list[i].seq > s.seq
	})
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = s
	r.subs[name] = list
}

// remove deletes the subscription with the given id. Reports whether one was found.
func (r *registry) remove(name, id string) bool {
	return r.removeWhere(name, func(s *subscription) bool { return s.id == id })
}

// drop deletes exactly the subscription sub, leaving a later replacement
// registered under the same id in place
func (r *registry) drop(name string, sub *subscription) {
	r.removeWhere(name, func(s *subscription) bool { return s == sub })
}

func (r *registry) removeWhere(name string, match func(*subscription) bool) bool {
	list := r.subs[name]
	for i, s := range list {
		if match(s) {
			list = append(list[:i:i], list[i+1:]...)
			if len(list) == 0 {
				delete(r.subs, name)
			} else {
				r.subs[name] = list
			}
			return true
		}
	}
	return false
}

// snapshot returns a copy of the ordered subscribers for name
func (r *registry) snapshot(name string) []*subscription {
	list := r.subs[name]
	if len(list) == 0 {
		return nil
	}
	out := make([]*subscription, len(list))
	copy(out, list)
	return out
}

func (r *registry) has(name string) bool {
	return len(r.subs[name]) > 0
}

func (r *registry) count(name string) int {
	return len(r.subs[name])
}
