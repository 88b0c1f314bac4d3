package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kasuganosora/basebuild/server/game/world"
	"github.com/kasuganosora/basebuild/server/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store keeps snapshots in the save_games table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Save inserts or overwrites the named save.
func (st *Store) Save(ctx context.Context, name string, s *world.Snapshot) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("snapshot encode: %w", err)
	}
	row := &model.SaveGame{
		Name:       name,
		Version:    s.Version,
		Width:      s.Width,
		Height:     s.Height,
		Tick:       s.Tick,
		Characters: len(s.Characters),
		Furniture:  len(s.Furniture),
		Data:       datatypes.JSON(data),
	}
	return st.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"version", "width", "height", "tick", "characters", "furniture", "data", "updated_at",
		}),
	}).Create(row).Error
}

func (st *Store) Load(ctx context.Context, name string) (*world.Snapshot, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	var row model.SaveGame
	err := st.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	var s world.Snapshot
	if err := json.Unmarshal(row.Data, &s); err != nil {
		return nil, fmt.Errorf("snapshot decode %s: %w", name, err)
	}
	return &s, nil
}

// List returns every save without its payload, sorted by name.
func (st *Store) List(ctx context.Context) ([]Info, error) {
	var rows []model.SaveGame
	err := st.db.WithContext(ctx).
		Omit("data").
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(rows))
	for _, r := range rows {
		out = append(out, Info{
			Name:       r.Name,
			Version:    r.Version,
			Width:      r.Width,
			Height:     r.Height,
			Tick:       r.Tick,
			Characters: r.Characters,
			Furniture:  r.Furniture,
			SavedAt:    r.UpdatedAt,
		})
	}
	return out, nil
}

func (st *Store) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	res := st.db.WithContext(ctx).Where("name = ?", name).Delete(&model.SaveGame{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}
