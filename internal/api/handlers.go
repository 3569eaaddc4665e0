package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Lasher91/makemegame/internal/game"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (s *Server) createRoom(c *gin.Context) {
	var req struct {
		PlayerName string `json:"playerName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorInvalidBodyJson)
		return
	}
	code, err := s.rooms.CreateRoom(c.Request.Context(), req.PlayerName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomCode": code, "success": true})
}

func (s *Server) joinRoom(c *gin.Context) {
	var req struct {
		RoomCode   string `json:"roomCode"`
		PlayerName string `json:"playerName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorInvalidBodyJson)
		return
	}
	if strings.TrimSpace(req.RoomCode) == "" || strings.TrimSpace(req.PlayerName) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorRoomAndPlayerJson)
		return
	}
	players, err := s.rooms.JoinRoom(c.Request.Context(), req.RoomCode, req.PlayerName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "players": players})
}

func (s *Server) roomState(c *gin.Context) {
	code := c.Query("roomCode")
	if strings.TrimSpace(code) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorRoomCodeJson)
		return
	}
	snap, err := s.rooms.RoomState(c.Request.Context(), code)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type generateRequest struct {
	Prompt   string `json:"prompt"`
	RoomCode string `json:"roomCode"`
}

func (s *Server) generateGame(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorInvalidBodyJson)
		return
	}
	html, err := s.rooms.GenerateGame(c.Request.Context(), req.RoomCode, req.Prompt)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "html": html})
}

func (s *Server) generateVotingGame(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorInvalidBodyJson)
		return
	}
	// a rejected prompt does not cost quota
	if _, err := game.ValidatePrompt(req.Prompt); err != nil {
		fail(c, err)
		return
	}
	ok, remaining := s.limiter.Allow(c.ClientIP())
	if !ok {
		log.Info().Str("ip", c.ClientIP()).Msg("daily generation limit reached")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":     "Daily limit reached. Try again tomorrow!",
			"remaining": 0,
		})
		return
	}
	g, err := s.rooms.GenerateVotingGame(c.Request.Context(), req.RoomCode, req.Prompt)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "gameData": g, "remaining": remaining})
}

type hostRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

func (s *Server) startGame(c *gin.Context) {
	var req hostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorInvalidBodyJson)
		return
	}
	if strings.TrimSpace(req.RoomCode) == "" || strings.TrimSpace(req.PlayerName) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorMissingFieldsJson)
		return
	}
	res, err := s.rooms.StartGame(c.Request.Context(), req.RoomCode, req.PlayerName)
	if errors.Is(err, game.ErrNotHost) {
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorHostStartJson)
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "gameArtifact": res.GameArtifact, "gameData": res.GameData})
}

func (s *Server) submitVote(c *gin.Context) {
	var req struct {
		RoomCode   string `json:"roomCode"`
		PlayerName string `json:"playerName"`
		Vote       string `json:"vote"`
		RoundIndex *int   `json:"roundIndex"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorInvalidBodyJson)
		return
	}
	if strings.TrimSpace(req.RoomCode) == "" || strings.TrimSpace(req.PlayerName) == "" || req.RoundIndex == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorMissingFieldsJson)
		return
	}
	res, err := s.rooms.SubmitVote(c.Request.Context(), req.RoomCode, req.PlayerName, *req.RoundIndex, req.Vote)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"allVoted":     res.AllVoted,
		"votesCount":   res.VotesCount,
		"totalPlayers": res.TotalPlayers,
	})
}

func (s *Server) getVotes(c *gin.Context) {
	code, rawRound := c.Query("roomCode"), c.Query("roundIndex")
	if strings.TrimSpace(code) == "" || rawRound == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorMissingFieldsJson)
		return
	}
	round, err := strconv.Atoi(rawRound)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorRoundIndexJson)
		return
	}
	sum, err := s.rooms.GetVotes(c.Request.Context(), code, round)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"votes":         sum.Votes,
		"tallies":       sum.Tallies,
		"votesCount":    sum.VotesCount,
		"totalPlayers":  sum.TotalPlayers,
		"allVoted":      sum.AllVoted,
		"currentRound":  sum.CurrentRound,
		"roundComplete": sum.RoundComplete,
	})
}

func (s *Server) nextRound(c *gin.Context) {
	var req hostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorInvalidBodyJson)
		return
	}
	if strings.TrimSpace(req.RoomCode) == "" || strings.TrimSpace(req.PlayerName) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorMissingFieldsJson)
		return
	}
	res, err := s.rooms.AdvanceRound(c.Request.Context(), req.RoomCode, req.PlayerName)
	if errors.Is(err, game.ErrNotHost) {
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorHostAdvanceJson)
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	if res.Completed {
		s.export(c, req.RoomCode)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"currentRound": res.CurrentRound,
		"gameComplete": res.GameComplete,
		"finalScores":  res.FinalScores,
	})
}

// export appends the finished room to the results file. Failures are
// logged only; the round advance already succeeded.
func (s *Server) export(c *gin.Context, roomCode string) {
	if s.exportFile == "" {
		return
	}
	room, err := s.rooms.Room(c.Request.Context(), roomCode)
	if err == nil {
		err = game.ExportResults(room, s.exportFile)
	}
	if err != nil {
		log.Error().Err(err).Str("code", game.NormalizeCode(roomCode)).Msg("export results")
		return
	}
	log.Info().Str("code", room.Code).Str("file", s.exportFile).Msg("results exported")
}

func (s *Server) saveGame(c *gin.Context) {
	var req struct {
		GameArtifact string `json:"gameArtifact"`
		GameHTML     string `json:"gameHtml"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorInvalidBodyJson)
		return
	}
	artifact := req.GameArtifact
	if strings.TrimSpace(artifact) == "" {
		artifact = req.GameHTML
	}
	g, err := s.vault.SaveGame(c.Request.Context(), artifact)
	if err != nil {
		fail(c, err)
		return
	}
	base := strings.TrimRight(c.GetHeader("Origin"), "/")
	if base == "" {
		base = s.publicURL
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "gameId": g.ID, "shareUrl": base + "/game/" + g.ID})
}

func (s *Server) loadGame(c *gin.Context) {
	id := c.Query("gameId")
	if strings.TrimSpace(id) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorGameIDJson)
		return
	}
	g, err := s.vault.LoadGame(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "html": g.Artifact, "title": g.Title})
}
