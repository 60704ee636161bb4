// Package noncestore persists hub request nonces for replay protection and
// sweeps records that fell out of the replay window.
package noncestore

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pushchain/bridge-oracle/oracleClient/store"
)

// Store provides database access for seen hub nonces.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a new nonce store.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "nonce_store").Logger(),
	}
}

// Consume records (hubID, kid, nonce). It returns false when the triple was
// already recorded, i.e. the request is a replay.
func (s *Store) Consume(hubID, kid, nonce string, ts int64) (bool, error) {
	record := store.SeenNonce{HubID: hubID, Kid: kid, Nonce: nonce, Ts: ts}
	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to record hub nonce")
	}
	return result.RowsAffected == 1, nil
}

// DeleteOlderThan removes records whose timestamp is before cutoff.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("ts < ?", cutoff.Unix()).Delete(&store.SeenNonce{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete expired hub nonces")
	}
	return result.RowsAffected, nil
}

// Count returns the number of recorded nonces.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.Model(&store.SeenNonce{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count hub nonces")
	}
	return count, nil
}
