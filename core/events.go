package core

import "time"

// EventType enumerates leaderboard events.
type EventType string

const (
	EventScoreCreated  EventType = "score_created"
	EventScoreImproved EventType = "score_improved"
	EventScoreRejected EventType = "score_rejected"
	EventNewLeader     EventType = "new_leader"
)

// Event represents an immutable leaderboard event.
type Event struct {
	Type          EventType      `json:"type"`
	Time          time.Time      `json:"time"`
	Pseudo        Pseudo         `json:"pseudo"`
	Score         int64          `json:"score"`
	PreviousScore int64          `json:"previous_score,omitempty"`
	Rank          int64          `json:"rank,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewSubmissionEvent builds the event matching an upsert outcome.
func NewSubmissionEvent(p Pseudo, r UpsertResult) Event {
	ev := Event{Time: time.Now().UTC(), Pseudo: p, Score: r.Score}
	switch r.Outcome {
	case OutcomeCreated:
		ev.Type = EventScoreCreated
	case OutcomeUpdated:
		ev.Type = EventScoreImproved
		ev.PreviousScore = r.PreviousScore
	default:
		ev.Type = EventScoreRejected
		ev.PreviousScore = r.PreviousScore
	}
	return ev
}

func NewLeader(p Pseudo, score int64) Event {
	return Event{Type: EventNewLeader, Time: time.Now().UTC(), Pseudo: p, Score: score, Rank: 1}
}
