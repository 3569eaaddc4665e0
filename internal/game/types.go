package game

import (
	"time"
)

type VoteType string

const (
	VoteTypePlayers VoteType = "players"
	VoteTypeOptions VoteType = "options"
)

type Player struct {
	Name     string    `json:"name"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Round struct {
	Question string   `json:"question"`
	VoteType VoteType `json:"voteType"`
	Options  []string `json:"options,omitempty"` // only for VoteTypeOptions
}

// VotingGame is the structured game produced by the voting generator.
type VotingGame struct {
	GameType    string  `json:"gameType,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Rounds      []Round `json:"rounds"`
}

// Room is the whole persisted record for one party. It is read, modified and
// written back as a unit.
type Room struct {
	Code          string                    `json:"code"`
	Players       []Player                  `json:"players"`
	GameArtifact  *string                   `json:"gameArtifact"`
	GameData      *VotingGame               `json:"gameData"`
	GameStarted   bool                      `json:"gameStarted"`
	CurrentRound  int                       `json:"currentRound"`
	Votes         map[int]map[string]string `json:"votes"` // round -> player -> choice
	RoundComplete bool                      `json:"roundComplete"`
	GameComplete  bool                      `json:"gameComplete"`
	FinalScores   map[string]int            `json:"finalScores,omitempty"`
	CreatedAt     time.Time                 `json:"createdAt"`
	Version       int64                     `json:"version"`
}

// RoomSnapshot is the lightweight view polled by clients.
type RoomSnapshot struct {
	Players       []Player       `json:"players"`
	GameStarted   bool           `json:"gameStarted"`
	GameArtifact  *string        `json:"gameArtifact"`
	GameData      *VotingGame    `json:"gameData,omitempty"`
	CurrentRound  int            `json:"currentRound"`
	RoundComplete bool           `json:"roundComplete"`
	GameComplete  bool           `json:"gameComplete"`
	FinalScores   map[string]int `json:"finalScores,omitempty"`
}

type StartResult struct {
	GameArtifact *string
	GameData     *VotingGame
}

type VoteResult struct {
	AllVoted     bool
	VotesCount   int
	TotalPlayers int
}

type VoteSummary struct {
	Votes         map[string]string
	Tallies       map[string]int
	VotesCount    int
	TotalPlayers  int
	AllVoted      bool
	CurrentRound  int
	RoundComplete bool
}

type AdvanceResult struct {
	CurrentRound int
	GameComplete bool
	FinalScores  map[string]int
	// Completed is set only on the call that moved the room into its final state.
	Completed bool
}

// SharedGame is a saved artifact reachable by a short link. Write once.
type SharedGame struct {
	ID        string    `json:"id"`
	Artifact  string    `json:"html"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}
