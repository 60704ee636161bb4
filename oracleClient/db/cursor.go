package db

import (
	"github.com/pkg/errors"
	"github.com/pushchain/bridge-oracle/oracleClient/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoadCursor returns the stored cursor for the named feed, or "" when none was saved yet.
func (d *DB) LoadCursor(name string) (string, error) {
	var pc store.PollCursor
	err := d.client.Where("name = ?", name).First(&pc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to load cursor %s", name)
	}
	return pc.Cursor, nil
}

// SaveCursor upserts the cursor for the named feed.
func (d *DB) SaveCursor(name, cursor string) error {
	pc := store.PollCursor{Name: name, Cursor: cursor}
	err := d.client.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"cursor", "updated_at"}),
	}).Create(&pc).Error
	if err != nil {
		return errors.Wrapf(err, "failed to save cursor %s", name)
	}
	return nil
}
