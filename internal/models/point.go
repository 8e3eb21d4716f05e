package models

import "time"

// Point statuses. Deleted points still move with their idea during a merge.
const (
	PointStatusPublished = "published"
	PointStatusDraft     = "draft"
	PointStatusDeleted   = "deleted"
)

// Point is an argument attached to an idea. Value is +1 for, -1 against, 0 neutral.
type Point struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	IdeaID                 uint      `gorm:"not null;index" json:"idea_id"`
	OtherIdeaID            *uint     `gorm:"index" json:"other_idea_id,omitempty"`
	UserID                 uint      `gorm:"not null;index" json:"user_id"`
	Name                   string    `gorm:"size:120;not null" json:"name"`
	Content                string    `gorm:"type:text" json:"content"`
	Value                  int       `gorm:"not null;default:0" json:"value"`
	Status                 string    `gorm:"type:varchar(20);not null;default:published" json:"status"`
	EndorserHelpfulCount   int       `gorm:"not null;default:0" json:"endorser_helpful_count"`
	OpposerHelpfulCount    int       `gorm:"not null;default:0" json:"opposer_helpful_count"`
	EndorserUnhelpfulCount int       `gorm:"not null;default:0" json:"endorser_unhelpful_count"`
	OpposerUnhelpfulCount  int       `gorm:"not null;default:0" json:"opposer_unhelpful_count"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Invert flips the point's side and swaps the endorser and opposer helpfulness counters.
func (p *Point) Invert() {
	p.Value = -p.Value
	p.EndorserHelpfulCount, p.OpposerHelpfulCount = p.OpposerHelpfulCount, p.EndorserHelpfulCount
	p.EndorserUnhelpfulCount, p.OpposerUnhelpfulCount = p.OpposerUnhelpfulCount, p.EndorserUnhelpfulCount
}
