package game

import "sort"

// FinalScores starts every player at 0 and adds one point per vote whose
// token equals that player's name, across every round in order. The match is
// literal and ignores the round's vote type, so an "options" answer that
// happens to equal a player name scores too.
func FinalScores(players []Player, votes map[int]map[string]string) map[string]int {
	scores := make(map[string]int, len(players))
	for _, p := range players {
		scores[p.Name] = 0
	}
	for _, r := range sortedRounds(votes) {
		for _, choice := range votes[r] {
			if _, ok := scores[choice]; ok {
				scores[choice]++
			}
		}
	}
	return scores
}

// tally counts votes per distinct choice.
func tally(votes map[string]string) map[string]int {
	out := make(map[string]int)
	for _, choice := range votes {
		out[choice]++
	}
	return out
}

func sortedRounds(votes map[int]map[string]string) []int {
	rounds := make([]int, 0, len(votes))
	for r := range votes {
		rounds = append(rounds, r)
	}
	sort.Ints(rounds)
	return rounds
}
