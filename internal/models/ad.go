package models

import (
	"math"
	"time"
)

// AdStatus is the state of a paid promotion.
type AdStatus string

const (
	AdStatusActive   AdStatus = "active"
	AdStatusFinished AdStatus = "finished"
)

// Ad promotes an idea with capital spent by its owner.
type Ad struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	IdeaID     uint       `gorm:"not null;index" json:"idea_id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	Cost       int        `gorm:"not null;default:0" json:"cost"`
	Spent      float64    `gorm:"not null;default:0" json:"spent"`
	Status     AdStatus   `gorm:"type:varchar(20);not null;default:active;index" json:"status"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Refund is |cost - spent| truncated, except that any refund strictly between 0 and 1 becomes 1.
func (a *Ad) Refund() int {
	r := math.Abs(float64(a.Cost) - a.Spent)
	if r > 0 && r < 1 {
		return 1
	}
	return int(r)
}

// Change is a pending proposal to replace an idea with another one.
type Change struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	IdeaID    uint       `gorm:"not null;index" json:"idea_id"`
	NewIdeaID *uint      `json:"new_idea_id,omitempty"`
	UserID    uint       `gorm:"not null" json:"user_id"`
	Status    string     `gorm:"type:varchar(20);not null;default:sent" json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Change statuses.
const (
	ChangeStatusSent     = "sent"
	ChangeStatusApproved = "approved"
	ChangeStatusDeclined = "declined"
	ChangeStatusDeleted  = "deleted"
)

// IsExpired reports a change past its expiry or no longer awaiting a decision.
func (c *Change) IsExpired(now time.Time) bool {
	if c.Status != ChangeStatusSent {
		return true
	}
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Ranking is a point-in-time snapshot of an idea's position.
type Ranking struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	IdeaID    uint      `gorm:"not null;index" json:"idea_id"`
	Position  int       `gorm:"not null" json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// Tag labels ideas. TopIdeaID caches the best-ranked idea carrying the tag.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:60;not null;uniqueIndex" json:"name"`
	TopIdeaID *uint     `gorm:"index" json:"top_idea_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
