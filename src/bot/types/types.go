package types

import "time"

// Subscriber holds one user's DAO subscriptions, serialized as a JSON
// array of organization slugs.
type Subscriber struct {
	UserID        string `gorm:"primaryKey;size:64"`
	Subscriptions string `gorm:"type:text;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Subscriber) TableName() string { return "subscribers" }

// ProposalBaseline records the last observed status of a proposal. One row
// per proposal id, shared across every subscriber tracking its DAO.
type ProposalBaseline struct {
	ProposalID uint64 `gorm:"primaryKey;autoIncrement:false"`
	Status     string `gorm:"size:64;not null"`
	UpdatedAt  time.Time
}

func (ProposalBaseline) TableName() string { return "proposal_baselines" }

// Setting represents a configuration setting stored in the database
type Setting struct {
	ID     uint8  `gorm:"primaryKey"`
	Name   string `gorm:"size:32;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null"`
}
