package world

import "errors"

var (
	ErrUnknownFurniture  = errors.New("world: unknown furniture type")
	ErrInvalidPlacement  = errors.New("world: invalid furniture placement")
	ErrTileOccupied      = errors.New("world: tile already has furniture")
	ErrPendingJob        = errors.New("world: tile already has a pending build job")
	ErrJobFinished       = errors.New("world: job already completed or cancelled")
	ErrNoTile            = errors.New("world: tile out of range")
	ErrInventoryMismatch = errors.New("world: inventory type mismatch")
	ErrStackFull         = errors.New("world: stack has no room")
	ErrSnapshotVersion   = errors.New("world: unsupported snapshot version")
)
