package quiz

import (
	"cmp"
	"slices"

	"toohak-backend/api"

	"github.com/samber/lo"
)

const LeaderboardSize = 3

// Leaderboard ranks scores by descending score and keeps the n best.
// Equal scores are ordered by player id.
func Leaderboard(scores map[string]int, n int) []api.LeaderboardEntry {
	entries := lo.MapToSlice(scores, func(playerID string, score int) api.LeaderboardEntry {
		return api.LeaderboardEntry{PlayerID: playerID, Score: score}
	})

	slices.SortFunc(entries, func(a, b api.LeaderboardEntry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})

	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
