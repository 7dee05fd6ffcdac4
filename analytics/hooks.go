package analytics

import (
	"fmt"
	"sync"
	"time"

	"partyboard/core"
)

// Hook receives leaderboard events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// Improvement is the largest single jump of a best score.
type Improvement struct {
	Pseudo core.Pseudo `json:"pseudo"`
	From   int64       `json:"from"`
	To     int64       `json:"to"`
}

func (i Improvement) Gain() int64 { return i.To - i.From }

// Stats is a point-in-time view served on /stats.
type Stats struct {
	Day                  string       `json:"day"`
	SubmissionsToday     int64        `json:"submissions_today"`
	PlayersToday         int          `json:"players_today"`
	PlayersThisWeek      int          `json:"players_this_week"`
	PlayersThisMonth     int          `json:"players_this_month"`
	Created              int64        `json:"created"`
	Improved             int64        `json:"improved"`
	Rejected             int64        `json:"rejected"`
	LeaderChanges        int64        `json:"leader_changes"`
	BiggestImprovement   *Improvement `json:"biggest_improvement,omitempty"`
	CurrentLeader        core.Pseudo  `json:"current_leader,omitempty"`
	CurrentLeaderScore   int64        `json:"current_leader_score,omitempty"`
	RejectionRatePercent float64      `json:"rejection_rate_percent"`
}

// SubmissionMetrics aggregates submission outcomes and player activity.
type SubmissionMetrics struct {
	mu sync.RWMutex

	submissionsByDay map[string]int64
	playersByDay     map[string]map[core.Pseudo]struct{}
	playersByWeek    map[string]map[core.Pseudo]struct{}
	playersByMonth   map[string]map[core.Pseudo]struct{}

	outcomes      map[core.EventType]int64
	leaderChanges int64
	leader        core.Pseudo
	leaderScore   int64
	biggest       *Improvement
}

func NewSubmissionMetrics() *SubmissionMetrics {
	return &SubmissionMetrics{
		submissionsByDay: make(map[string]int64),
		playersByDay:     make(map[string]map[core.Pseudo]struct{}),
		playersByWeek:    make(map[string]map[core.Pseudo]struct{}),
		playersByMonth:   make(map[string]map[core.Pseudo]struct{}),
		outcomes:         make(map[core.EventType]int64),
	}
}

func (m *SubmissionMetrics) OnEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Type == core.EventNewLeader {
		if e.Pseudo != m.leader {
			m.leaderChanges++
		}
		m.leader = e.Pseudo
		m.leaderScore = e.Score
		return
	}
	if !isSubmission(e.Type) {
		return
	}

	day := dayKey(e.Time)
	m.submissionsByDay[day]++
	m.outcomes[e.Type]++
	addPlayer(m.playersByDay, day, e.Pseudo)
	addPlayer(m.playersByWeek, weekKey(e.Time), e.Pseudo)
	addPlayer(m.playersByMonth, monthKey(e.Time), e.Pseudo)

	if e.Type == core.EventScoreImproved {
		imp := Improvement{Pseudo: e.Pseudo, From: e.PreviousScore, To: e.Score}
		if m.biggest == nil || imp.Gain() > m.biggest.Gain() {
			m.biggest = &imp
		}
	}
}

// SubmissionsOn returns submissions recorded on day (YYYY-MM-DD, UTC).
func (m *SubmissionMetrics) SubmissionsOn(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.submissionsByDay[day]
}

// Outcome returns the number of submissions that produced typ.
func (m *SubmissionMetrics) Outcome(typ core.EventType) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.outcomes[typ]
}

// Snapshot summarizes activity relative to now.
func (m *SubmissionMetrics) Snapshot(now time.Time) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day := dayKey(now)
	s := Stats{
		Day:                day,
		SubmissionsToday:   m.submissionsByDay[day],
		PlayersToday:       len(m.playersByDay[day]),
		PlayersThisWeek:    len(m.playersByWeek[weekKey(now)]),
		PlayersThisMonth:   len(m.playersByMonth[monthKey(now)]),
		Created:            m.outcomes[core.EventScoreCreated],
		Improved:           m.outcomes[core.EventScoreImproved],
		Rejected:           m.outcomes[core.EventScoreRejected],
		LeaderChanges:      m.leaderChanges,
		CurrentLeader:      m.leader,
		CurrentLeaderScore: m.leaderScore,
	}
	if m.biggest != nil {
		b := *m.biggest
		s.BiggestImprovement = &b
	}
	if total := s.Created + s.Improved + s.Rejected; total > 0 {
		s.RejectionRatePercent = float64(s.Rejected) * 100 / float64(total)
	}
	return s
}

func isSubmission(t core.EventType) bool {
	switch t {
	case core.EventScoreCreated, core.EventScoreImproved, core.EventScoreRejected:
		return true
	}
	return false
}

func addPlayer(m map[string]map[core.Pseudo]struct{}, key string, p core.Pseudo) {
	if m[key] == nil {
		m[key] = make(map[core.Pseudo]struct{})
	}
	m[key][p] = struct{}{}
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func monthKey(t time.Time) string { return t.UTC().Format("2006-01") }
