package leaderboard

import "partyboard/core"

// Board is an in-memory ranking index over best scores.
// Entries are kept in core.Less order.
type Board interface {
	Update(entry core.PlayerScore)
	Remove(pseudo core.Pseudo)
	TopN(n int) []core.PlayerScore
	Get(pseudo core.Pseudo) (core.PlayerScore, bool)
	// CountAbove returns how many players have a strictly greater score.
	CountAbove(score int64) int
	Len() int
}
