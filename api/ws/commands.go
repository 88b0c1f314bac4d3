package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kasuganosora/basebuild/server/game/relay"
	"github.com/kasuganosora/basebuild/server/game/sim"
	"github.com/kasuganosora/basebuild/server/game/world"
)

// RegisterCommands wires the websocket command set onto r. Every reply
// carries the request's seq; failures come back as "error" packets.
//
//	ping                          -> pong {tick}
//	subscribe {types}             -> subscribed {types}
//	tile {x, y}                   -> tile TileView
//	set_tile {x, y, kind}         -> tile TileView
//	build {type, x, y, instant}   -> job JobView | furniture FurnitureView
//	cancel_job {id}               -> job_cancelled {id}
func RegisterCommands(r *Router, eng *sim.Engine) {
	r.On("ping", func(_ context.Context, s *Session, pkt *Packet) error {
		s.Reply(pkt, "pong", map[string]uint64{"tick": eng.Stats().Tick})
		return nil
	})

	r.On("subscribe", func(_ context.Context, s *Session, pkt *Packet) error {
		var req struct {
			Types []string `json:"types"`
		}
		if err := decode(pkt, &req); err != nil {
			return err
		}
		f := relay.Filter{}
		for _, t := range req.Types {
			f[t] = true
		}
		s.SetFilter(f)
		s.Reply(pkt, "subscribed", req)
		return nil
	})

	r.On("tile", func(_ context.Context, s *Session, pkt *Packet) error {
		var req struct{ X, Y int }
		if err := decode(pkt, &req); err != nil {
			return err
		}
		return eng.Do(func(w *world.World) error {
			t := w.TileAt(req.X, req.Y)
			if t == nil {
				return world.ErrNoTile
			}
			s.Reply(pkt, "tile", t.View())
			return nil
		})
	})

	r.On("set_tile", func(_ context.Context, s *Session, pkt *Packet) error {
		var req struct {
			X, Y int
			Kind string `json:"kind"`
		}
		if err := decode(pkt, &req); err != nil {
			return err
		}
		kind, err := world.ParseTileKind(req.Kind)
		if err != nil {
			return err
		}
		return eng.Do(func(w *world.World) error {
			t := w.TileAt(req.X, req.Y)
			if t == nil {
				return world.ErrNoTile
			}
			w.SetTileKind(t, kind)
			s.Reply(pkt, "tile", t.View())
			return nil
		})
	})

	r.On("build", func(_ context.Context, s *Session, pkt *Packet) error {
		var req struct {
			Type    string `json:"type"`
			X, Y    int
			Instant bool `json:"instant"`
		}
		if err := decode(pkt, &req); err != nil {
			return err
		}
		return eng.Do(func(w *world.World) error {
			t := w.TileAt(req.X, req.Y)
			if t == nil {
				return world.ErrNoTile
			}
			if req.Instant {
				f, err := w.PlaceFurniture(req.Type, t)
				if err != nil {
					return err
				}
				s.Reply(pkt, "furniture", f.View())
				return nil
			}
			j, err := w.BuildFurniture(req.Type, t)
			if err != nil {
				return err
			}
			s.Reply(pkt, "job", j.View())
			return nil
		})
	})

	r.On("cancel_job", func(_ context.Context, s *Session, pkt *Packet) error {
		var req struct {
			ID string `json:"id"`
		}
		if err := decode(pkt, &req); err != nil {
			return err
		}
		return eng.Do(func(w *world.World) error {
			j := w.FindJob(req.ID)
			if j == nil {
				return fmt.Errorf("job %q not found", req.ID)
			}
			if err := w.CancelJob(j); err != nil {
				return err
			}
			s.Reply(pkt, "job_cancelled", map[string]string{"id": req.ID})
			return nil
		})
	})
}

func decode(pkt *Packet, v any) error {
	if len(pkt.Payload) == 0 || string(pkt.Payload) == "null" {
		return ErrBadPayload
	}
	if err := json.Unmarshal(pkt.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}
