package api

import (
	"errors"
	"net/http"

	"github.com/Lasher91/makemegame/internal/game"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	ErrorInvalidBodyJson   = gin.H{"error": "Invalid request body"}
	ErrorMissingFieldsJson = gin.H{"error": "Missing required fields"}
	ErrorRoomCodeJson      = gin.H{"error": "Room code is required"}
	ErrorRoomAndPlayerJson = gin.H{"error": "Room code and player name are required"}
	ErrorGameIDJson        = gin.H{"error": "Game ID is required"}
	ErrorRoundIndexJson    = gin.H{"error": "Round index must be a number"}
	ErrorHostStartJson     = gin.H{"error": "Only the host can start the game"}
	ErrorHostAdvanceJson   = gin.H{"error": "Only the host can advance rounds"}
)

const generationFailedMsg = "Failed to generate game. Please try again."

type errorMapping struct {
	err    error
	status int
	msg    string
}

// errorMappings is checked in order with errors.Is.
var errorMappings = []errorMapping{
	{game.ErrPlayerNameRequired, http.StatusBadRequest, "Player name is required"},
	{game.ErrPromptRequired, http.StatusBadRequest, "Game description is required"},
	{game.ErrPromptTooLong, http.StatusBadRequest, "Game description too long (max 500 characters)"},
	{game.ErrArtifactRequired, http.StatusBadRequest, "Game HTML is required"},
	{game.ErrVoteRequired, http.StatusBadRequest, "Missing required fields"},
	{game.ErrInvalidRound, http.StatusBadRequest, "Invalid round index"},
	{game.ErrRoomNotFound, http.StatusNotFound, "Room not found"},
	{game.ErrGameNotFound, http.StatusNotFound, "Game not found. It may have expired."},
	{game.ErrNotHost, http.StatusForbidden, "Only the host can do that"},
	{game.ErrPlayerNotInRoom, http.StatusForbidden, "You are not a player in this room"},
	{game.ErrAlreadyStarted, http.StatusBadRequest, "Game already started"},
	{game.ErrDuplicateName, http.StatusBadRequest, "A player with that name is already in the room."},
	{game.ErrNotReady, http.StatusBadRequest, "Game not generated yet"},
	{game.ErrNotInitialized, http.StatusBadRequest, "Game not initialized"},
	{game.ErrGameComplete, http.StatusBadRequest, "Game already complete"},
	{game.ErrConflict, http.StatusConflict, "The room is busy. Please try again."},
	{game.ErrCapacityExhausted, http.StatusServiceUnavailable, "No free room codes right now. Please try again later."},
	{game.ErrGenerationFailed, http.StatusInternalServerError, generationFailedMsg},
}

func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.msg
		}
	}
	return http.StatusInternalServerError, "Something went wrong. Please try again."
}

// fail writes the client-facing error for err. Server-side failures are
// logged with their full detail, which never reaches the response.
func fail(c *gin.Context, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("rid", c.GetString("request_id")).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
