package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Lasher91/makemegame/internal/game"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed voting_schema.json
var votingSchema string

var (
	ErrNoMarkup      = errors.New("response contains no html")
	ErrInvalidVoting = errors.New("invalid voting game")
)

const htmlGameSystemPrompt = `You are an expert party game developer. You build complete, playable browser games for groups in a single HTML file with inline CSS and JavaScript.

Rules:
1. Output ONLY the HTML document. No explanation, no markdown.
2. The game is playable immediately and needs no setup.
3. All logic, styles and assets are inline; no external libraries.
4. It runs inside an iframe sandbox with allow-scripts.
5. Use bright colors, big readable fonts, clear instructions and a "Next Round" or "Play Again" button.
6. Keep it social and party-appropriate. For drinking games say "take a sip" rather than naming alcohol.
7. Use a <title> that matches what the user asked for.`

const votingGameSystemPrompt = `You are a party game designer creating voting games for groups. Output ONLY valid JSON, no markdown, no explanation.

Shape:
{
  "gameType": "voting",
  "title": "Game Title",
  "description": "Brief description",
  "rounds": [
    {"question": "Question text", "voteType": "players"},
    {"question": "Question text", "voteType": "options", "options": ["Option 1", "Option 2"]}
  ]
}

"players" rounds have people vote for another player (Most Likely To, Who Would).
"options" rounds have people pick one of 2-4 given options (Would You Rather, This or That).
Generate 12-15 rounds mixing both types. Funny, slightly edgy, never offensive.`

var (
	htmlFenceRe = regexp.MustCompile("(?s)```html\\s*(.*?)```")
	jsonFenceRe = regexp.MustCompile("```(?:json)?")
)

// Generator turns a short description into a playable game through a
// Provider. It satisfies game.Generator.
type Generator struct {
	provider Provider
	model    string
	timeout  time.Duration
	schema   *gojsonschema.Schema
}

func NewGenerator(p Provider, model string, timeout time.Duration) (*Generator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(votingSchema))
	if err != nil {
		return nil, fmt.Errorf("compile voting schema: %w", err)
	}
	return &Generator{provider: p, model: model, timeout: timeout, schema: schema}, nil
}

func (g *Generator) GenerateGame(ctx context.Context, prompt string) (string, error) {
	text, err := g.complete(ctx, htmlGameSystemPrompt, fmt.Sprintf(
		"Create a complete playable party game for a social gathering based on this description: %q\n\nMake it hilarious, social and visually fun.", prompt))
	if err != nil {
		return "", err
	}
	html := ExtractHTML(text)
	if !strings.Contains(html, "<") {
		return "", ErrNoMarkup
	}
	return html, nil
}

func (g *Generator) GenerateVotingGame(ctx context.Context, prompt string) (*game.VotingGame, error) {
	text, err := g.complete(ctx, votingGameSystemPrompt, fmt.Sprintf(
		"Create a voting game based on: %q\n\nOutput ONLY valid JSON with 12-15 rounds.", prompt))
	if err != nil {
		return nil, err
	}
	return g.ParseVotingGame(text)
}

// ParseVotingGame strips markdown fences, validates the document against the
// voting schema and decodes it.
func (g *Generator) ParseVotingGame(text string) (*game.VotingGame, error) {
	doc := strings.TrimSpace(jsonFenceRe.ReplaceAllString(text, ""))
	if i, j := strings.Index(doc, "{"), strings.LastIndex(doc, "}"); i >= 0 && j > i {
		doc = doc[i : j+1]
	}
	res, err := g.schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVoting, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidVoting, strings.Join(msgs, "; "))
	}
	var vg game.VotingGame
	if err := json.Unmarshal([]byte(doc), &vg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVoting, err)
	}
	return &vg, nil
}

func (g *Generator) complete(ctx context.Context, system, user string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.provider.CompleteWithSystem(ctx, g.model, system, user)
}

// ExtractHTML pulls the document out of a model response: a fenced html block
// wins, otherwise everything from the first doctype or <html tag.
func ExtractHTML(text string) string {
	if m := htmlFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := -1
	for _, marker := range []string{"<!DOCTYPE", "<!doctype", "<html"} {
		if i := strings.Index(text, marker); i >= 0 && (start < 0 || i < start) {
			start = i
		}
	}
	if start >= 0 {
		return strings.TrimSpace(text[start:])
	}
	return strings.TrimSpace(text)
}
