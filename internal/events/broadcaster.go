// Package events fans out state-change events to lot- and user-scoped
// subscribers. Publishing never blocks: a subscriber whose buffer is full
// loses the event, matching the at-most-once contract.
package events

import (
	"fmt"
	"sync"

	"parkhub/internal/entities"
)

const subscriberBuffer = 16

// LotTopic names the room carrying slot and lot status events for one lot.
func LotTopic(lotID int) string {
	return fmt.Sprintf("parking-lot-%d", lotID)
}

// UserTopic names the room carrying booking and notification events for one
// user's own bookings.
func UserTopic(userID int) string {
	return fmt.Sprintf("user-%d", userID)
}

type Subscription struct {
	Topic string
	C     chan entities.Event
}

type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

func (b *Broadcaster) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		Topic: topic,
		C:     make(chan entities.Event, subscriberBuffer),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to call
// more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room, ok := b.subs[sub.Topic]
	if !ok {
		return
	}
	if _, ok := room[sub]; !ok {
		return
	}
	delete(room, sub)
	if len(room) == 0 {
		delete(b.subs, sub.Topic)
	}
	close(sub.C)
}

// Publish delivers ev to every current subscriber of topic. Fire-and-forget:
// it never blocks and never reports failure to the caller.
func (b *Broadcaster) Publish(topic string, ev entities.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[topic] {
		select {
		case sub.C <- ev:
		default:
		}
	}
}
