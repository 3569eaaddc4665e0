package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/Lasher91/makemegame/internal/game"
	"github.com/Lasher91/makemegame/internal/ratelimit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Rooms   *game.RoomManager
	Vault   *game.Vault
	Limiter *ratelimit.Limiter

	// PublicURL is the share link base when a request carries no Origin.
	PublicURL      string
	AllowedOrigins []string
	// ExportFile receives a results summary whenever a voting game ends.
	// Empty disables export.
	ExportFile string
	// Fallback serves every path no route matches (the web client).
	Fallback http.Handler
}

type Server struct {
	rooms      *game.RoomManager
	vault      *game.Vault
	limiter    *ratelimit.Limiter
	publicURL  string
	exportFile string
}

// polled paths are hit every few seconds by each client.
var polled = map[string]bool{
	"/api/room-state": true,
	"/api/get-votes":  true,
	"/health":         true,
}

func NewRouter(o Options) *gin.Engine {
	s := &Server{
		rooms:      o.Rooms,
		vault:      o.Vault,
		limiter:    o.Limiter,
		publicURL:  strings.TrimRight(o.PublicURL, "/"),
		exportFile: o.ExportFile,
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(3)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(accessLog())
	if len(o.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: o.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "Origin"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	api := r.Group("/api")
	api.POST("/create-room", s.createRoom)
	api.POST("/join-room", s.joinRoom)
	api.GET("/room-state", s.roomState)
	api.POST("/generate", s.generateGame)
	api.POST("/generate-voting", s.generateVotingGame)
	api.POST("/start-game", s.startGame)
	api.POST("/submit-vote", s.submitVote)
	api.GET("/get-votes", s.getVotes)
	api.POST("/next-round", s.nextRound)
	api.POST("/save-game", s.saveGame)
	api.GET("/load-game", s.loadGame)

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		if o.Fallback == nil || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		o.Fallback.ServeHTTP(c.Writer, c.Request)
	})
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		// only well-formed ids are propagated into logs
		id := c.GetHeader("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		lvl := zerolog.InfoLevel
		if polled[path] && c.Writer.Status() < 400 {
			lvl = zerolog.DebugLevel
		}
		log.WithLevel(lvl).
			Str("rid", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	}
}
