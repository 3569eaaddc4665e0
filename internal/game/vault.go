package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Lasher91/makemegame/internal/store"
	"github.com/google/uuid"
)

const (
	SharedGameTTL = 7 * 24 * time.Hour
	DefaultTitle  = "Party Game"
)

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// Vault stores shared games. It is independent of rooms: saving copies the
// artifact, nothing links back.
type Vault struct {
	store store.Store
	now   func() time.Time
	newID func() string
}

type VaultOption func(*Vault)

func WithVaultClock(now func() time.Time) VaultOption {
	return func(v *Vault) { v.now = now }
}

func NewVault(st store.Store, opts ...VaultOption) *Vault {
	v := &Vault{store: st, now: time.Now, newID: shortID}
	for _, o := range opts {
		o(v)
	}
	return v
}

func (v *Vault) SaveGame(ctx context.Context, artifact string) (*SharedGame, error) {
	if strings.TrimSpace(artifact) == "" {
		return nil, ErrArtifactRequired
	}
	sweep(ctx, v.store)

	g := &SharedGame{
		ID:        v.newID(),
		Artifact:  artifact,
		Title:     ExtractTitle(artifact),
		CreatedAt: v.now().UTC(),
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	if err := v.store.Set(ctx, gameKey(g.ID), b, SharedGameTTL); err != nil {
		return nil, fmt.Errorf("%w: save game %s: %w", ErrStore, g.ID, err)
	}
	return g, nil
}

func (v *Vault) LoadGame(ctx context.Context, id string) (*SharedGame, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrGameNotFound
	}
	raw, err := v.store.Get(ctx, gameKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load game %s: %w", ErrStore, id, err)
	}
	var g SharedGame
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("%w: decode game %s: %w", ErrStore, id, err)
	}
	if v.now().Sub(g.CreatedAt) >= SharedGameTTL {
		return nil, ErrGameNotFound
	}
	g.ID = id
	return &g, nil
}

// ExtractTitle returns the text of the first <title> element, or DefaultTitle.
func ExtractTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		return DefaultTitle
	}
	if t := strings.TrimSpace(m[1]); t != "" {
		return t
	}
	return DefaultTitle
}

func gameKey(id string) string { return "game:" + id }

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
