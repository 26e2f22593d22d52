// Package broadcast fans game events out to topic subscribers.
package broadcast

import (
	"sync"
)

// Publisher sends a payload to every subscriber of topic. Implementations
// must not block the caller on slow subscribers.
type Publisher interface {
	Publish(topic string, payload any)
}

// Lobby-wide topics.
const (
	TopicGames       = "games"
	TopicGameRemoved = "game-removed"
	TopicPublicChat  = "chat/public"
)

// GameTopic carries full game snapshots.
func GameTopic(gameID string) string { return "game/" + gameID }

// GameCreatedTopic announces a new game to its creator.
func GameCreatedTopic(gameID string) string { return "game-created/" + gameID }

// GameStartedTopic announces that a game filled up and started.
func GameStartedTopic(gameID string) string { return "game-started/" + gameID }

// GameWatchTopic carries the saved board state to spectators.
func GameWatchTopic(gameID string) string { return "game-watch/" + gameID }

// AuctionBidTopic carries auction openings and accepted bids.
func AuctionBidTopic(gameID string) string { return "auction/bid/" + gameID }

// AuctionEndTopic carries auction results.
func AuctionEndTopic(gameID string) string { return "auction/end/" + gameID }

// ContractTopic carries trade proposals.
func ContractTopic(gameID string) string { return "game/" + gameID + "/contract" }

// ChatTopic carries a game's chat room.
func ChatTopic(gameID string) string { return "game/" + gameID + "/chat" }

// Event is one recorded publication.
type Event struct {
	Topic   string
	Payload any
}

// Recorder is a Publisher that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish records the event.
func (r *Recorder) Publish(topic string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Topic: topic, Payload: payload})
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// On returns the events published to topic.
func (r *Recorder) On(topic string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent event on topic.
func (r *Recorder) Last(topic string) (Event, bool) {
	events := r.On(topic)
	if len(events) == 0 {
		return Event{}, false
	}
	return events[len(events)-1], true
}

// Reset forgets every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
