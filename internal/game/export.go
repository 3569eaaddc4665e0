package game

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ExportResults appends a finished room's results to a text file.
func ExportResults(room *Room, filename string) error {
	if room == nil || room.GameData == nil {
		return ErrNotInitialized
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(FormatResults(room, time.Now())); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

// FormatResults renders the export block for one room.
func FormatResults(room *Room, at time.Time) string {
	var sb strings.Builder

	title := room.GameData.Title
	if title == "" {
		title = DefaultTitle
	}
	sb.WriteString(fmt.Sprintf("%s - Room %s\n", title, room.Code))
	sb.WriteString(fmt.Sprintf("Started: %s\n", room.CreatedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	sb.WriteString("Players:\n")
	for _, p := range room.Players {
		if p.IsHost {
			sb.WriteString(fmt.Sprintf("- %s (host)\n", p.Name))
		} else {
			sb.WriteString(fmt.Sprintf("- %s\n", p.Name))
		}
	}
	sb.WriteString("\n")

	for i, r := range room.GameData.Rounds {
		sb.WriteString(fmt.Sprintf("Round %d: \"%s\"\n", i+1, r.Question))
		sb.WriteString(strings.Repeat("-", 40) + "\n")
		votes := room.Votes[i]
		if len(votes) == 0 {
			sb.WriteString("(no votes)\n\n")
			continue
		}
		// choice -> voters, so each line reads "choice: n vote(s) from a, b"
		voters := make(map[string][]string)
		for name, choice := range votes {
			voters[choice] = append(voters[choice], name)
		}
		choices := make([]string, 0, len(voters))
		for c := range voters {
			choices = append(choices, c)
		}
		sort.Slice(choices, func(a, b int) bool {
			if len(voters[choices[a]]) != len(voters[choices[b]]) {
				return len(voters[choices[a]]) > len(voters[choices[b]])
			}
			return choices[a] < choices[b]
		})
		for _, c := range choices {
			names := voters[c]
			sort.Strings(names)
			sb.WriteString(fmt.Sprintf("- %s: %d vote(s) from %s\n", c, len(names), strings.Join(names, ", ")))
		}
		sb.WriteString("\n")
	}

	if len(room.FinalScores) > 0 {
		type playerScore struct {
			Name  string
			Score int
		}
		scores := make([]playerScore, 0, len(room.FinalScores))
		for name, score := range room.FinalScores {
			scores = append(scores, playerScore{Name: name, Score: score})
		}
		sort.Slice(scores, func(i, j int) bool {
			if scores[i].Score != scores[j].Score {
				return scores[i].Score > scores[j].Score
			}
			return scores[i].Name < scores[j].Name
		})
		sb.WriteString("Final scores:\n")
		for _, ps := range scores {
			sb.WriteString(fmt.Sprintf("- %s: %d points\n", ps.Name, ps.Score))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Game ended at %s\n", at.Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	return sb.String()
}
