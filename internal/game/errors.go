package game

import "errors"

// Validation
var (
	ErrPlayerNameRequired = errors.New("player name is required")
	ErrPromptRequired     = errors.New("game description is required")
	ErrPromptTooLong      = errors.New("game description too long (max 500 characters)")
	ErrArtifactRequired   = errors.New("game artifact is required")
	ErrVoteRequired       = errors.New("vote is required")
	ErrInvalidRound       = errors.New("round index out of range")
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrGameNotFound    = errors.New("game not found")
	ErrPlayerNotInRoom = errors.New("player not in room")
	ErrNotHost         = errors.New("not host")
	ErrAlreadyStarted  = errors.New("game already started")
	ErrDuplicateName   = errors.New("player name already taken")
	ErrNotReady        = errors.New("game not generated yet")
	ErrNotInitialized  = errors.New("game not initialized")
	ErrGameComplete    = errors.New("game already complete")
)

var (
	ErrGenerationFailed  = errors.New("game generation failed")
	ErrCapacityExhausted = errors.New("no free room code")
	ErrConflict          = errors.New("room changed concurrently")
	ErrStore             = errors.New("store unavailable")
)
