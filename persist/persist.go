// Package persist stores world snapshots under a name, either as compressed
// files on disk or as rows in the SQL database.
package persist

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/kasuganosora/basebuild/server/game/world"
)

var (
	ErrNotFound    = errors.New("persist: save not found")
	ErrInvalidName = errors.New("persist: invalid save name")
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Info describes a stored snapshot without loading it.
type Info struct {
	Name       string    `json:"name"`
	Version    int       `json:"version"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Tick       uint64    `json:"tick"`
	Characters int       `json:"characters"`
	Furniture  int       `json:"furniture"`
	SavedAt    time.Time `json:"saved_at"`
}

// Backend is implemented by FileStore and Store.
type Backend interface {
	Save(ctx context.Context, name string, s *world.Snapshot) error
	Load(ctx context.Context, name string) (*world.Snapshot, error)
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, name string) error
}

func checkName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func infoOf(name string, s *world.Snapshot, at time.Time) Info {
	return Info{
		Name:       name,
		Version:    s.Version,
		Width:      s.Width,
		Height:     s.Height,
		Tick:       s.Tick,
		Characters: len(s.Characters),
		Furniture:  len(s.Furniture),
		SavedAt:    at,
	}
}
