package core

import (
	"encoding/json"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// Pseudo is the player-chosen display name; it is the unique key of the leaderboard.
type Pseudo string

// MaxPseudoLen is the maximum pseudo length in runes.
const MaxPseudoLen = 50

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxScore is the largest score every backend stores exactly; Redis keeps
	// scores as doubles.
	MaxScore int64 = 1<<53 - 1
)

// PlayerScore is the persisted best score of a single pseudo.
type PlayerScore struct {
	Pseudo      Pseudo    `json:"pseudo"`
	BestScore   int64     `json:"score"`
	LastUpdated time.Time `json:"date"`
}

// Outcome describes what an upsert did to the stored best score.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// RejectReason explains a rejected upsert. NotBetter is the only reason today.
type RejectReason string

const ReasonNotBetter RejectReason = "not_better"

// UpsertResult is returned by a ratcheting upsert.
// PreviousScore is set for Updated and Rejected outcomes.
type UpsertResult struct {
	Outcome       Outcome
	Score         int64
	PreviousScore int64
	Reason        RejectReason
}

// Created builds a result for a brand new pseudo.
func Created(score int64) UpsertResult {
	return UpsertResult{Outcome: OutcomeCreated, Score: score}
}

// Updated builds a result for an improved best score.
func Updated(score, previous int64) UpsertResult {
	return UpsertResult{Outcome: OutcomeUpdated, Score: score, PreviousScore: previous}
}

// Rejected builds a result for a submission that did not beat the stored best.
func Rejected(score, stored int64) UpsertResult {
	return UpsertResult{Outcome: OutcomeRejected, Score: score, PreviousScore: stored, Reason: ReasonNotBetter}
}

// RankInfo is the ranking of a single player.
type RankInfo struct {
	Rank   int64  `json:"rank"`
	Pseudo Pseudo `json:"pseudo"`
	Score  int64  `json:"score"`
}

// SubmitResult is the client-facing shape of a score submission.
type SubmitResult struct {
	Success  bool   `json:"success"`
	New      bool   `json:"new,omitempty"`
	Updated  *bool  `json:"updated,omitempty"`
	OldScore *int64 `json:"oldScore,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewSubmitResult maps a store outcome onto the response shape.
func NewSubmitResult(r UpsertResult) SubmitResult {
	switch r.Outcome {
	case OutcomeCreated:
		return SubmitResult{Success: true, New: true}
	case OutcomeUpdated:
		updated, old := true, r.PreviousScore
		return SubmitResult{Success: true, Updated: &updated, OldScore: &old}
	default:
		updated := false
		return SubmitResult{Success: true, Updated: &updated, Message: "existing score is better"}
	}
}

// IsNew reports whether the submission created a new entry.
func (r SubmitResult) IsNew() bool { return r.New }

// IsImproved reports whether the submission beat a previous best.
func (r SubmitResult) IsImproved() bool { return r.Updated != nil && *r.Updated }

// NormalizePseudo trims the pseudo and checks its length. Case is preserved.
func NormalizePseudo(p string) (Pseudo, error) {
	s := strings.TrimSpace(p)
	if s == "" {
		return "", &ValidationError{Field: "pseudo", Reason: "pseudo is required"}
	}
	if utf8.RuneCountInString(s) > MaxPseudoLen {
		return "", &ValidationError{Field: "pseudo", Reason: "pseudo must be at most 50 characters"}
	}
	return Pseudo(s), nil
}

// ValidateScore rejects negative scores and scores above MaxScore.
func ValidateScore(score int64) error {
	if score < 0 {
		return &ValidationError{Field: "score", Reason: "score must be a non-negative integer"}
	}
	if score > MaxScore {
		return &ValidationError{Field: "score", Reason: "score must not exceed 9007199254740991"}
	}
	return nil
}

// ParseScore converts a decoded JSON value into a score. Only JSON numbers with an
// integral, finite, non-negative value are accepted.
func ParseScore(v any) (int64, error) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			if err := ValidateScore(i); err != nil {
				return 0, err
			}
			return i, nil
		}
		parsed, err := n.Float64()
		if err != nil {
			return 0, &ValidationError{Field: "score", Reason: "score must be an integer"}
		}
		f = parsed
	case float64:
		f = n
	default:
		return 0, &ValidationError{Field: "score", Reason: "score must be a number"}
	}
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, &ValidationError{Field: "score", Reason: "score must be an integer"}
	}
	score := int64(f)
	if err := ValidateScore(score); err != nil {
		return 0, err
	}
	return score, nil
}

// ValidateLimit clamps a requested list size. Non-positive limits are invalid.
func ValidateLimit(limit int) (int, error) {
	if limit <= 0 {
		return 0, &ValidationError{Field: "limit", Reason: "limit must be a positive integer"}
	}
	if limit > MaxLimit {
		return MaxLimit, nil
	}
	return limit, nil
}

// Less orders leaderboard entries: best score first, then earliest achievement,
// then pseudo.
func Less(a, b PlayerScore) bool {
	if a.BestScore != b.BestScore {
		return a.BestScore > b.BestScore
	}
	if !a.LastUpdated.Equal(b.LastUpdated) {
		return a.LastUpdated.Before(b.LastUpdated)
	}
	return a.Pseudo < b.Pseudo
}
