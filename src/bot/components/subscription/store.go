package subscription

import (
	"context"
	"encoding/json"
	"log"

	"github.com/zeroy-labs/govbot/src/bot/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is one user's subscription list. Slug order is insertion order and
// only matters for display.
type Record struct {
	UserID string
	Slugs  []string
}

// Store persists subscription records keyed by user id.
type Store interface {
	Get(ctx context.Context, userID string) (Record, bool, error)
	Put(ctx context.Context, rec Record) error
	All(ctx context.Context) ([]Record, error)
}

// GormStore keeps records in the subscribers table, slugs serialized as a
// JSON array the way the settings layer serializes values.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, userID string) (Record, bool, error) {
	var row types.Subscriber
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	rec, err := decodeRecord(row)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *GormStore) Put(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec.Slugs)
	if err != nil {
		return err
	}
	row := types.Subscriber{UserID: rec.UserID, Subscriptions: string(raw)}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (s *GormStore) All(ctx context.Context) ([]Record, error) {
	var rows []types.Subscriber
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeRecord(row)
		if err != nil {
			log.Printf("subscription: skipping malformed record for user %s: %v", row.UserID, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(row types.Subscriber) (Record, error) {
	rec := Record{UserID: row.UserID}
	if row.Subscriptions == "" {
		return rec, nil
	}
	if err := json.Unmarshal([]byte(row.Subscriptions), &rec.Slugs); err != nil {
		return Record{}, err
	}
	return rec, nil
}
