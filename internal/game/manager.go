package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Lasher91/makemegame/internal/store"
	"github.com/rs/zerolog/log"
)

const (
	RoomTTL         = 2 * time.Hour
	MaxPromptLength = 500

	maxCodeAttempts   = 64
	maxMutateAttempts = 16

	retryBaseDelay = 2 * time.Millisecond
	retryMaxDelay  = 50 * time.Millisecond
)

// Generator produces games from a free-text description. It is the only
// component that talks to an LLM.
type Generator interface {
	GenerateGame(ctx context.Context, prompt string) (string, error)
	GenerateVotingGame(ctx context.Context, prompt string) (*VotingGame, error)
}

// RoomManager is the sole mutator of room records. It holds no room state of
// its own; every call reads from and writes back to the store, so any number
// of instances may share one backend.
//
// Writes are compare-and-swap against the exact bytes read, retried on
// conflict. WithUnguardedWrites switches to plain last-writer-wins writes.
type RoomManager struct {
	store   store.Store
	gen     Generator
	now     func() time.Time
	newCode func() string
	guarded bool

	beforeWrite func() // test hook
}

type Option func(*RoomManager)

func WithClock(now func() time.Time) Option {
	return func(rm *RoomManager) { rm.now = now }
}

// WithCodeSource replaces the random PARTY-#### generator.
func WithCodeSource(fn func() string) Option {
	return func(rm *RoomManager) { rm.newCode = fn }
}

// WithUnguardedWrites disables compare-and-swap. Concurrent mutations of one
// room may then overwrite each other.
func WithUnguardedWrites() Option {
	return func(rm *RoomManager) { rm.guarded = false }
}

func NewRoomManager(st store.Store, gen Generator, opts ...Option) *RoomManager {
	rm := &RoomManager{
		store:   st,
		gen:     gen,
		now:     time.Now,
		newCode: randomCode,
		guarded: true,
	}
	for _, o := range opts {
		o(rm)
	}
	return rm
}

// NormalizeCode is applied to every room code crossing the API boundary.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidatePrompt returns the trimmed prompt or a validation error.
func ValidatePrompt(prompt string) (string, error) {
	p := strings.TrimSpace(prompt)
	if p == "" {
		return "", ErrPromptRequired
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return "", ErrPromptTooLong
	}
	return p, nil
}

func (rm *RoomManager) CreateRoom(ctx context.Context, playerName string) (string, error) {
	name := strings.TrimSpace(playerName)
	if name == "" {
		return "", ErrPlayerNameRequired
	}
	sweep(ctx, rm.store)

	now := rm.now().UTC()
	for i := 0; i < maxCodeAttempts; i++ {
		code := NormalizeCode(rm.newCode())
		key := roomKey(code)
		if _, err := rm.store.Get(ctx, key); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: lookup %s: %w", ErrStore, code, err)
		}
		room := &Room{
			Code:      code,
			Players:   []Player{{Name: name, IsHost: true, JoinedAt: now}},
			Votes:     map[int]map[string]string{},
			CreatedAt: now,
			Version:   1,
		}
		b, err := json.Marshal(room)
		if err != nil {
			return "", err
		}
		if rm.guarded {
			err = rm.store.Swap(ctx, key, nil, b, RoomTTL)
		} else {
			err = rm.store.Set(ctx, key, b, RoomTTL)
		}
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: create %s: %w", ErrStore, code, err)
		}
		return code, nil
	}
	return "", ErrCapacityExhausted
}

func (rm *RoomManager) JoinRoom(ctx context.Context, roomCode, playerName string) ([]Player, error) {
	name := strings.TrimSpace(playerName)
	if name == "" {
		return nil, ErrPlayerNameRequired
	}
	room, err := rm.mutate(ctx, roomCode, func(r *Room) error {
		if r.GameStarted {
			return ErrAlreadyStarted
		}
		if r.findPlayer(name) != nil {
			return ErrDuplicateName
		}
		r.Players = append(r.Players, Player{Name: name, JoinedAt: rm.now().UTC()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room.Players, nil
}

// AttachArtifact stores a generated HTML game on the room, replacing any
// previous game.
func (rm *RoomManager) AttachArtifact(ctx context.Context, roomCode, html string) error {
	_, err := rm.mutate(ctx, roomCode, func(r *Room) error {
		if r.GameStarted {
			return ErrAlreadyStarted
		}
		r.GameArtifact = &html
		r.GameData = nil
		return nil
	})
	return err
}

// AttachVotingGame stores a voting game on the room and resets round state.
func (rm *RoomManager) AttachVotingGame(ctx context.Context, roomCode string, g *VotingGame) error {
	if g == nil || len(g.Rounds) == 0 {
		return ErrGenerationFailed
	}
	_, err := rm.mutate(ctx, roomCode, func(r *Room) error {
		if r.GameStarted {
			return ErrAlreadyStarted
		}
		r.GameData = g
		r.GameArtifact = nil
		r.CurrentRound = 0
		r.Votes = map[int]map[string]string{}
		r.RoundComplete = false
		r.GameComplete = false
		r.FinalScores = nil
		return nil
	})
	return err
}

// GenerateGame has no host gate: anyone holding the room code may trigger
// generation. An unknown room code does not fail the call.
func (rm *RoomManager) GenerateGame(ctx context.Context, roomCode, prompt string) (string, error) {
	p, err := ValidatePrompt(prompt)
	if err != nil {
		return "", err
	}
	html, err := rm.gen.GenerateGame(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if err := rm.attach(roomCode, func(code string) error {
		return rm.AttachArtifact(ctx, code, html)
	}); err != nil {
		return "", err
	}
	return html, nil
}

func (rm *RoomManager) GenerateVotingGame(ctx context.Context, roomCode, prompt string) (*VotingGame, error) {
	p, err := ValidatePrompt(prompt)
	if err != nil {
		return nil, err
	}
	g, err := rm.gen.GenerateVotingGame(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if g == nil || len(g.Rounds) == 0 {
		return nil, fmt.Errorf("%w: no rounds", ErrGenerationFailed)
	}
	if err := rm.attach(roomCode, func(code string) error {
		return rm.AttachVotingGame(ctx, code, g)
	}); err != nil {
		return nil, err
	}
	return g, nil
}

func (rm *RoomManager) attach(roomCode string, fn func(code string) error) error {
	code := NormalizeCode(roomCode)
	if code == "" {
		return nil
	}
	err := fn(code)
	if errors.Is(err, ErrRoomNotFound) {
		log.Warn().Str("code", code).Msg("generated game for unknown room, not attached")
		return nil
	}
	return err
}

func (rm *RoomManager) StartGame(ctx context.Context, roomCode, playerName string) (StartResult, error) {
	room, err := rm.mutate(ctx, roomCode, func(r *Room) error {
		if p := r.findPlayer(playerName); p == nil || !p.IsHost {
			return ErrNotHost
		}
		if r.GameArtifact == nil && r.GameData == nil {
			return ErrNotReady
		}
		r.GameStarted = true
		return nil
	})
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{GameArtifact: room.GameArtifact, GameData: room.GameData}, nil
}

// SubmitVote records or overwrites the caller's vote for a round.
func (rm *RoomManager) SubmitVote(ctx context.Context, roomCode, playerName string, roundIndex int, vote string) (VoteResult, error) {
	if strings.TrimSpace(vote) == "" {
		return VoteResult{}, ErrVoteRequired
	}
	var res VoteResult
	_, err := rm.mutate(ctx, roomCode, func(r *Room) error {
		if r.GameData == nil {
			return ErrNotInitialized
		}
		if r.GameComplete {
			return ErrGameComplete
		}
		p := r.findPlayer(playerName)
		if p == nil {
			return ErrPlayerNotInRoom
		}
		if roundIndex < 0 || roundIndex >= len(r.GameData.Rounds) {
			return ErrInvalidRound
		}
		if r.Votes == nil {
			r.Votes = map[int]map[string]string{}
		}
		if r.Votes[roundIndex] == nil {
			r.Votes[roundIndex] = map[string]string{}
		}
		r.Votes[roundIndex][p.Name] = vote

		res = VoteResult{VotesCount: len(r.Votes[roundIndex]), TotalPlayers: len(r.Players)}
		res.AllVoted = res.VotesCount >= res.TotalPlayers
		if res.AllVoted && roundIndex == r.CurrentRound {
			r.RoundComplete = true
		}
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}
	return res, nil
}

// GetVotes is read-only. A round nobody voted in yet is an empty tally.
func (rm *RoomManager) GetVotes(ctx context.Context, roomCode string, roundIndex int) (VoteSummary, error) {
	_, room, err := rm.load(ctx, roomCode)
	if err != nil {
		return VoteSummary{}, err
	}
	votes := make(map[string]string, len(room.Votes[roundIndex]))
	for name, v := range room.Votes[roundIndex] {
		votes[name] = v
	}
	s := VoteSummary{
		Votes:         votes,
		Tallies:       tally(votes),
		VotesCount:    len(votes),
		TotalPlayers:  len(room.Players),
		CurrentRound:  room.CurrentRound,
		RoundComplete: room.RoundComplete,
	}
	s.AllVoted = s.VotesCount >= s.TotalPlayers
	return s, nil
}

// AdvanceRound moves to the next round, or past the last one into the final
// state with scores. Rounds are never replayed.
func (rm *RoomManager) AdvanceRound(ctx context.Context, roomCode, playerName string) (AdvanceResult, error) {
	var completed bool
	room, err := rm.mutate(ctx, roomCode, func(r *Room) error {
		completed = false
		if p := r.findPlayer(playerName); p == nil || !p.IsHost {
			return ErrNotHost
		}
		if r.GameData == nil {
			return ErrNotInitialized
		}
		next := r.CurrentRound + 1
		if next >= len(r.GameData.Rounds) {
			completed = !r.GameComplete
			r.GameComplete = true
			r.FinalScores = FinalScores(r.Players, r.Votes)
			return nil
		}
		r.CurrentRound = next
		r.RoundComplete = false
		return nil
	})
	if err != nil {
		return AdvanceResult{}, err
	}
	return AdvanceResult{
		CurrentRound: room.CurrentRound,
		GameComplete: room.GameComplete,
		FinalScores:  room.FinalScores,
		Completed:    completed,
	}, nil
}

func (rm *RoomManager) RoomState(ctx context.Context, roomCode string) (RoomSnapshot, error) {
	_, room, err := rm.load(ctx, roomCode)
	if err != nil {
		return RoomSnapshot{}, err
	}
	return RoomSnapshot{
		Players:       room.Players,
		GameStarted:   room.GameStarted,
		GameArtifact:  room.GameArtifact,
		GameData:      room.GameData,
		CurrentRound:  room.CurrentRound,
		RoundComplete: room.RoundComplete,
		GameComplete:  room.GameComplete,
		FinalScores:   room.FinalScores,
	}, nil
}

// Room returns the full record, for export and diagnostics.
func (rm *RoomManager) Room(ctx context.Context, roomCode string) (*Room, error) {
	_, room, err := rm.load(ctx, roomCode)
	return room, err
}

func (rm *RoomManager) load(ctx context.Context, roomCode string) ([]byte, *Room, error) {
	code := NormalizeCode(roomCode)
	if code == "" {
		return nil, nil, ErrRoomNotFound
	}
	raw, err := rm.store.Get(ctx, roomKey(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %w", ErrStore, code, err)
	}
	var room Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, nil, fmt.Errorf("%w: decode %s: %w", ErrStore, code, err)
	}
	if rm.now().Sub(room.CreatedAt) >= RoomTTL {
		return nil, nil, ErrRoomNotFound
	}
	return raw, &room, nil
}

// mutate runs one read-modify-write cycle. fn may be called more than once
// and must derive everything from the room it is given.
//
// A failed swap means some other write landed, so each concurrent writer can
// make us lose at most once per burst. The attempt budget therefore grows
// with the number of players in the room.
func (rm *RoomManager) mutate(ctx context.Context, roomCode string, fn func(*Room) error) (*Room, error) {
	key := roomKey(NormalizeCode(roomCode))
	limit := maxMutateAttempts
	for attempt := 0; attempt < limit; attempt++ {
		if attempt > 0 {
			if err := backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		raw, room, err := rm.load(ctx, roomCode)
		if err != nil {
			return nil, err
		}
		if n := maxMutateAttempts + 2*len(room.Players); n > limit {
			limit = n
		}
		if err := fn(room); err != nil {
			return nil, err
		}
		room.Version++
		next, err := json.Marshal(room)
		if err != nil {
			return nil, err
		}
		// expiry stays anchored to creation, writes never extend it
		ttl := room.CreatedAt.Add(RoomTTL).Sub(rm.now())
		if ttl <= 0 {
			return nil, ErrRoomNotFound
		}
		if rm.beforeWrite != nil {
			rm.beforeWrite()
		}
		if rm.guarded {
			err = rm.store.Swap(ctx, key, raw, next, ttl)
		} else {
			err = rm.store.Set(ctx, key, next, ttl)
		}
		if errors.Is(err, store.ErrConflict) {
			log.Debug().Str("code", room.Code).Int("attempt", attempt+1).Msg("room write conflict, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: write %s: %w", ErrStore, room.Code, err)
		}
		return room, nil
	}
	return nil, ErrConflict
}

// backoff sleeps a jittered, exponentially growing delay before retry number
// attempt, or returns early when ctx ends.
func backoff(ctx context.Context, attempt int) error {
	d := retryBaseDelay << min(attempt-1, 6)
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	t := time.NewTimer(time.Duration(rand.Int63n(int64(d))) + time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// findPlayer matches names case-insensitively; names are unique under that rule.
func (r *Room) findPlayer(name string) *Player {
	name = strings.TrimSpace(name)
	for i := range r.Players {
		if strings.EqualFold(r.Players[i].Name, name) {
			return &r.Players[i]
		}
	}
	return nil
}

func roomKey(code string) string { return "room:" + code }

func randomCode() string {
	return fmt.Sprintf("PARTY-%d", 1000+rand.Intn(9000))
}

func sweep(ctx context.Context, st store.Store) {
	sw, ok := st.(store.Sweeper)
	if !ok {
		return
	}
	n, err := sw.Sweep(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("sweep expired entries")
		return
	}
	if n > 0 {
		log.Debug().Int("removed", n).Msg("swept expired entries")
	}
}
