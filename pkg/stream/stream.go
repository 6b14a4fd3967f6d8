// Package stream provides the small push-based stream abstraction used for
// reactive expression sources and the form change feed. Emissions are
// delivered synchronously on the emitting goroutine.
package stream

// Stream delivers values to subscribers until the returned Subscription is
// cancelled. Implementations must be comparable (pointer types) so the engine
// can tell whether an expression returned the same stream again.
type Stream[T any] interface {
	Subscribe(fn func(T)) *Subscription
}

// Subscription cancels a Subscribe call.
type Subscription struct {
	cancel func()
	closed bool
}

// NewSubscription wraps cancel in a Subscription.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Unsubscribe stops delivery. It is safe to call repeatedly.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Closed reports whether Unsubscribe has been called.
func (s *Subscription) Closed() bool {
	return s == nil || s.closed
}

// Subject is a multicast stream that emits whatever is passed to Next.
type Subject[T any] struct {
	nextID int
	subs   map[int]func(T)
	order  []int
}

// NewSubject constructs an empty Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{subs: make(map[int]func(T))}
}

// Subscribe implements Stream.
func (s *Subject[T]) Subscribe(fn func(T)) *Subscription {
	if fn == nil {
		return NewSubscription(nil)
	}
	if s.subs == nil {
		s.subs = make(map[int]func(T))
	}
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.order = append(s.order, id)
	return NewSubscription(func() {
		delete(s.subs, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				return
			}
		}
	})
}

// Next emits value to every current subscriber in subscription order.
func (s *Subject[T]) Next(value T) {
	if s == nil {
		return
	}
	for _, id := range append([]int(nil), s.order...) {
		if fn, ok := s.subs[id]; ok {
			fn(value)
		}
	}
}

// Observers reports the number of active subscribers.
func (s *Subject[T]) Observers() int {
	if s == nil {
		return 0
	}
	return len(s.subs)
}

type ofStream[T any] struct {
	values []T
}

// Of returns a stream that replays values synchronously to each subscriber.
func Of[T any](values ...T) Stream[T] {
	return &ofStream[T]{values: append([]T(nil), values...)}
}

func (o *ofStream[T]) Subscribe(fn func(T)) *Subscription {
	sub := NewSubscription(nil)
	if fn == nil {
		return sub
	}
	for _, v := range o.values {
		if sub.Closed() {
			break
		}
		fn(v)
	}
	return sub
}
