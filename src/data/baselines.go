package data

import (
	"context"

	"github.com/zeroy-labs/govbot/src/bot/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Baselines is the gorm-backed proposal baseline store.
type Baselines struct {
	db *gorm.DB
}

func NewBaselines(db *gorm.DB) *Baselines {
	return &Baselines{db: db}
}

// All returns every known proposal baseline keyed by proposal id.
func (b *Baselines) All(ctx context.Context) (map[uint64]string, error) {
	var rows []types.ProposalBaseline
	if err := b.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	baselines := make(map[uint64]string, len(rows))
	for _, row := range rows {
		baselines[row.ProposalID] = row.Status
	}
	return baselines, nil
}

// Put upserts the last-observed status for a proposal.
func (b *Baselines) Put(ctx context.Context, proposalID uint64, status string) error {
	row := types.ProposalBaseline{ProposalID: proposalID, Status: status}
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}
