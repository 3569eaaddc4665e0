package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lasher91/makemegame/internal/game"
	"github.com/Lasher91/makemegame/internal/ratelimit"
	"github.com/Lasher91/makemegame/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubGenerator struct {
	html   string
	voting *game.VotingGame
	err    error
}

func (g *stubGenerator) GenerateGame(ctx context.Context, prompt string) (string, error) {
	return g.html, g.err
}

func (g *stubGenerator) GenerateVotingGame(ctx context.Context, prompt string) (*game.VotingGame, error) {
	return g.voting, g.err
}

func twoRounds() *game.VotingGame {
	return &game.VotingGame{
		Title: "Office Party",
		Rounds: []game.Round{
			{Question: "Most likely to be late?", VoteType: game.VoteTypePlayers},
			{Question: "Most likely to win?", VoteType: game.VoteTypePlayers},
		},
	}
}

func newTestRouter(t *testing.T, gen *stubGenerator, mod func(*Options)) *gin.Engine {
	t.Helper()
	st := store.NewMemory()
	o := Options{
		Rooms:     game.NewRoomManager(st, gen),
		Vault:     game.NewVault(st),
		Limiter:   ratelimit.New(3),
		PublicURL: "https://makemegame.com",
	}
	if mod != nil {
		mod(&o)
	}
	return NewRouter(o)
}

func do(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out), res.Body.String())
	return out
}

func createRoom(t *testing.T, r http.Handler, host string) string {
	t.Helper()
	res := do(r, http.MethodPost, "/api/create-room", `{"playerName":"`+host+`"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	body := decode(t, res)
	assert.Equal(t, true, body["success"])
	return body["roomCode"].(string)
}

func TestCreateAndJoinRoom(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{}, nil)
	code := createRoom(t, r, "  Ann ")
	assert.Regexp(t, `^PARTY-\d{4}$`, code)

	res := do(r, http.MethodPost, "/api/join-room", `{"roomCode":"`+strings.ToLower(code)+`","playerName":"Bob"}`)
	require.Equal(t, http.StatusOK, res.Code)
	players := decode(t, res)["players"].([]any)
	require.Len(t, players, 2)
	assert.Equal(t, "Ann", players[0].(map[string]any)["name"])
	assert.Equal(t, true, players[0].(map[string]any)["isHost"])

	res = do(r, http.MethodPost, "/api/join-room", `{"roomCode":"`+code+`","playerName":"BOB"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.JSONEq(t, `{"error":"A player with that name is already in the room."}`, res.Body.String())

	res = do(r, http.MethodPost, "/api/join-room", `{"roomCode":"PARTY-0000","playerName":"Cy"}`)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = do(r, http.MethodPost, "/api/join-room", `{"roomCode":"","playerName":"Cy"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCreateRoomValidation(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{}, nil)

	res := do(r, http.MethodPost, "/api/create-room", `{"playerName":"   "}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.JSONEq(t, `{"error":"Player name is required"}`, res.Body.String())

	res = do(r, http.MethodPost, "/api/create-room", `{`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{}, nil)
	testCases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/create-room"},
		{http.MethodPut, "/api/submit-vote"},
		{http.MethodPost, "/api/room-state"},
		{http.MethodDelete, "/api/load-game"},
	}
	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			res := do(r, tc.method, tc.path, "")
			assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
			assert.JSONEq(t, `{"error":"Method not allowed"}`, res.Body.String())
		})
	}
}

func TestRoomState(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{html: "<html><title>Dice</title></html>"}, nil)
	code := createRoom(t, r, "Ann")

	res := do(r, http.MethodGet, "/api/room-state?roomCode="+code, "")
	require.Equal(t, http.StatusOK, res.Code)
	body := decode(t, res)
	assert.Equal(t, false, body["gameStarted"])
	assert.Nil(t, body["gameArtifact"])
	assert.Len(t, body["players"], 1)

	res = do(r, http.MethodPost, "/api/generate", `{"prompt":"dice","roomCode":"`+code+`"}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "<html><title>Dice</title></html>", decode(t, res)["html"])

	res = do(r, http.MethodGet, "/api/room-state?roomCode="+code, "")
	assert.Equal(t, "<html><title>Dice</title></html>", decode(t, res)["gameArtifact"])

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/room-state", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/room-state?roomCode=PARTY-0001", "").Code)
}

func TestGeneratePromptValidation(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{html: "<html></html>"}, nil)

	res := do(r, http.MethodPost, "/api/generate", `{"prompt":"  "}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.JSONEq(t, `{"error":"Game description is required"}`, res.Body.String())

	res = do(r, http.MethodPost, "/api/generate", `{"prompt":"`+strings.Repeat("x", 501)+`"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.JSONEq(t, `{"error":"Game description too long (max 500 characters)"}`, res.Body.String())

	res = do(r, http.MethodPost, "/api/generate", `{"prompt":"`+strings.Repeat("x", 500)+`"}`)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestGenerationFailureHidesDetail(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{err: errors.New("anthropic status 401: invalid x-api-key sk-secret")}, nil)

	for _, path := range []string{"/api/generate", "/api/generate-voting"} {
		res := do(r, http.MethodPost, path, `{"prompt":"dice"}`)
		assert.Equal(t, http.StatusInternalServerError, res.Code)
		assert.JSONEq(t, `{"error":"Failed to generate game. Please try again."}`, res.Body.String())
		assert.NotContains(t, res.Body.String(), "sk-secret")
	}
}

func TestGenerateVotingRateLimit(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{voting: twoRounds()}, func(o *Options) {
		o.Limiter = ratelimit.New(2)
	})

	res := do(r, http.MethodPost, "/api/generate-voting", `{"prompt":"office"}`)
	require.Equal(t, http.StatusOK, res.Code)
	body := decode(t, res)
	assert.Equal(t, float64(1), body["remaining"])
	assert.Equal(t, "Office Party", body["gameData"].(map[string]any)["title"])

	// invalid prompts are rejected before they consume quota
	res = do(r, http.MethodPost, "/api/generate-voting", `{"prompt":""}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(r, http.MethodPost, "/api/generate-voting", `{"prompt":"office"}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, float64(0), decode(t, res)["remaining"])

	res = do(r, http.MethodPost, "/api/generate-voting", `{"prompt":"office"}`)
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	body = decode(t, res)
	assert.Equal(t, float64(0), body["remaining"])
	assert.NotEmpty(t, body["error"])

	// the html generator is not rate limited
	res = do(r, http.MethodPost, "/api/generate", `{"prompt":"office"}`)
	assert.NotEqual(t, http.StatusTooManyRequests, res.Code)
}

func TestStartGame(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{voting: twoRounds()}, nil)
	code := createRoom(t, r, "Ann")
	do(r, http.MethodPost, "/api/join-room", `{"roomCode":"`+code+`","playerName":"Bob"}`)

	res := do(r, http.MethodPost, "/api/start-game", `{"roomCode":"`+code+`","playerName":"Bob"}`)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.JSONEq(t, `{"error":"Only the host can start the game"}`, res.Body.String())

	res = do(r, http.MethodPost, "/api/start-game", `{"roomCode":"`+code+`","playerName":"Ann"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.JSONEq(t, `{"error":"Game not generated yet"}`, res.Body.String())

	do(r, http.MethodPost, "/api/generate-voting", `{"prompt":"office","roomCode":"`+code+`"}`)
	res = do(r, http.MethodPost, "/api/start-game", `{"roomCode":"`+code+`","playerName":"Ann"}`)
	require.Equal(t, http.StatusOK, res.Code)
	body := decode(t, res)
	assert.Nil(t, body["gameArtifact"])
	assert.Len(t, body["gameData"].(map[string]any)["rounds"], 2)

	res = do(r, http.MethodPost, "/api/join-room", `{"roomCode":"`+code+`","playerName":"Cy"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestVotingGameOverHTTP(t *testing.T) {
	exportFile := filepath.Join(t.TempDir(), "results.txt")
	r := newTestRouter(t, &stubGenerator{voting: twoRounds()}, func(o *Options) {
		o.ExportFile = exportFile
	})
	code := createRoom(t, r, "Ann")
	do(r, http.MethodPost, "/api/join-room", `{"roomCode":"`+code+`","playerName":"Bob"}`)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/generate-voting", `{"prompt":"office","roomCode":"`+code+`"}`).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/start-game", `{"roomCode":"`+code+`","playerName":"Ann"}`).Code)

	res := do(r, http.MethodPost, "/api/submit-vote", `{"roomCode":"`+code+`","playerName":"Ann","roundIndex":0,"vote":"Bob"}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, false, decode(t, res)["allVoted"])

	res = do(r, http.MethodPost, "/api/submit-vote", `{"roomCode":"`+code+`","playerName":"Bob","roundIndex":0,"vote":"Ann"}`)
	require.Equal(t, http.StatusOK, res.Code)
	body := decode(t, res)
	assert.Equal(t, true, body["allVoted"])
	assert.Equal(t, float64(2), body["votesCount"])
	assert.Equal(t, float64(2), body["totalPlayers"])

	res = do(r, http.MethodGet, "/api/get-votes?roomCode="+code+"&roundIndex=0", "")
	require.Equal(t, http.StatusOK, res.Code)
	body = decode(t, res)
	assert.Equal(t, map[string]any{"Bob": float64(1), "Ann": float64(1)}, body["tallies"])
	assert.Equal(t, map[string]any{"Ann": "Bob", "Bob": "Ann"}, body["votes"])
	assert.Equal(t, true, body["allVoted"])
	assert.Equal(t, true, body["roundComplete"])
	assert.Equal(t, float64(0), body["currentRound"])

	res = do(r, http.MethodPost, "/api/next-round", `{"roomCode":"`+code+`","playerName":"Bob"}`)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.JSONEq(t, `{"error":"Only the host can advance rounds"}`, res.Body.String())

	res = do(r, http.MethodPost, "/api/next-round", `{"roomCode":"`+code+`","playerName":"Ann"}`)
	require.Equal(t, http.StatusOK, res.Code)
	body = decode(t, res)
	assert.Equal(t, float64(1), body["currentRound"])
	assert.Equal(t, false, body["gameComplete"])
	_, err := os.Stat(exportFile)
	assert.True(t, os.IsNotExist(err), "nothing exported before the game ends")

	res = do(r, http.MethodPost, "/api/next-round", `{"roomCode":"`+code+`","playerName":"Ann"}`)
	require.Equal(t, http.StatusOK, res.Code)
	body = decode(t, res)
	assert.Equal(t, true, body["gameComplete"])
	assert.Equal(t, map[string]any{"Ann": float64(1), "Bob": float64(1)}, body["finalScores"])

	b, err := os.ReadFile(exportFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Office Party - Room "+code)
	assert.Contains(t, string(b), "Final scores:")

	// a repeated advance keeps the final state and does not export twice
	res = do(r, http.MethodPost, "/api/next-round", `{"roomCode":"`+code+`","playerName":"Ann"}`)
	require.Equal(t, http.StatusOK, res.Code)
	again, err := os.ReadFile(exportFile)
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestSubmitVoteValidation(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{voting: twoRounds()}, nil)
	code := createRoom(t, r, "Ann")

	res := do(r, http.MethodPost, "/api/submit-vote", `{"roomCode":"`+code+`","playerName":"Ann","vote":"Bob"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code, "round index is required")

	res = do(r, http.MethodPost, "/api/submit-vote", `{"roomCode":"`+code+`","playerName":"Ann","roundIndex":0,"vote":"Bob"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.JSONEq(t, `{"error":"Game not initialized"}`, res.Body.String())

	res = do(r, http.MethodPost, "/api/submit-vote", `{"roomCode":"PARTY-0002","playerName":"Ann","roundIndex":0,"vote":"Bob"}`)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestGetVotesParams(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{voting: twoRounds()}, nil)
	code := createRoom(t, r, "Ann")

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/get-votes?roomCode="+code, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/get-votes?roomCode="+code+"&roundIndex=first", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/get-votes?roomCode=PARTY-0003&roundIndex=0", "").Code)

	res := do(r, http.MethodGet, "/api/get-votes?roomCode="+code+"&roundIndex=5", "")
	require.Equal(t, http.StatusOK, res.Code)
	body := decode(t, res)
	assert.Equal(t, float64(0), body["votesCount"])
	assert.Empty(t, body["tallies"])
}

func TestSaveAndLoadGame(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{}, nil)

	res := do(r, http.MethodPost, "/api/save-game", `{"gameArtifact":""}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(r, http.MethodPost, "/api/save-game", `{"gameHtml":"<html><title> Truth or Dare </title></html>"}`)
	require.Equal(t, http.StatusOK, res.Code)
	body := decode(t, res)
	id := body["gameId"].(string)
	assert.Regexp(t, `^[0-9a-f]{10}$`, id)
	assert.Equal(t, "https://makemegame.com/game/"+id, body["shareUrl"])

	res = do(r, http.MethodGet, "/api/load-game?gameId="+id, "")
	require.Equal(t, http.StatusOK, res.Code)
	body = decode(t, res)
	assert.Equal(t, "Truth or Dare", body["title"])
	assert.Equal(t, "<html><title> Truth or Dare </title></html>", body["html"])

	res = do(r, http.MethodPost, "/api/save-game", `{"gameArtifact":"<div>x</div>"}`, "Origin", "http://localhost:5173")
	require.Equal(t, http.StatusOK, res.Code)
	body = decode(t, res)
	assert.True(t, strings.HasPrefix(body["shareUrl"].(string), "http://localhost:5173/game/"))

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/load-game", "").Code)
	res = do(r, http.MethodGet, "/api/load-game?gameId=0123456789", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.JSONEq(t, `{"error":"Game not found. It may have expired."}`, res.Body.String())
}

func TestCORS(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{}, func(o *Options) {
		o.AllowedOrigins = []string{"https://makemegame.com"}
	})

	res := do(r, http.MethodGet, "/health", "", "Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = do(r, http.MethodGet, "/health", "", "Origin", "https://makemegame.com")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "https://makemegame.com", res.Header().Get("Access-Control-Allow-Origin"))
}

func TestFallbackAndRequestID(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{}, func(o *Options) {
		o.Fallback = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("spa"))
		})
	})

	res := do(r, http.MethodGet, "/game/abc123", "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "spa", res.Body.String())
	assert.NotEmpty(t, res.Header().Get("X-Request-ID"))

	const clientID = "7f3c2a4e-9d1b-4c56-8e2f-0a1b2c3d4e5f"
	res = do(r, http.MethodGet, "/api/nope", "", "X-Request-ID", clientID)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, clientID, res.Header().Get("X-Request-ID"))
}

func TestRequestIDRejectsMalformedHeader(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{}, nil)
	for _, bad := range []string{"abc", strings.Repeat("a", 4096), "7f3c2a4e-9d1b-4c56-8e2f-0a1b2c3d4e5f\nforged=1", "{7f3c2a4e-9d1b-4c56-8e2f-0a1b2c3d4e5f}"} {
		res := do(r, http.MethodGet, "/health", "", "X-Request-ID", bad)
		got := res.Header().Get("X-Request-ID")
		assert.NotEqual(t, bad, got)
		assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, got)
	}
}
