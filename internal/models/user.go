package models

import "time"

// User is the minimal voter/owner record the core reads and updates.
type User struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Login            string    `gorm:"size:80;not null;uniqueIndex" json:"login"`
	Email            string    `gorm:"size:255" json:"email,omitempty"`
	IsAdmin          bool      `gorm:"not null;default:false" json:"is_admin"`
	Status           string    `gorm:"type:varchar(20);not null;default:active" json:"status"`
	CapitalCount     int       `gorm:"not null;default:0" json:"capital_count"`
	TopEndorsementID *uint     `json:"top_endorsement_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UserStatusActive marks a user eligible to receive notifications.
const UserStatusActive = "active"

// Capital records a movement of capital to a user.
type Capital struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RecipientID uint      `gorm:"not null;index" json:"recipient_id"`
	IdeaID      *uint     `gorm:"index" json:"idea_id,omitempty"`
	Kind        string    `gorm:"type:varchar(40);not null" json:"kind"`
	Amount      int       `gorm:"not null" json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// CapitalKindAdRefund is recorded when a finished ad returns unspent capital.
const CapitalKindAdRefund = "ad_refund"

// Notification kinds.
const (
	NotificationIdeaFlagged     = "idea_flagged"
	NotificationIdeaAbusive     = "idea_abusive"
	NotificationOfficialChanged = "idea_official_status"
)

// Notification is addressed to a recipient about an idea.
type Notification struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	IdeaID      uint       `gorm:"not null;index" json:"idea_id"`
	Kind        string     `gorm:"type:varchar(40);not null" json:"kind"`
	SenderID    *uint      `json:"sender_id,omitempty"`
	RecipientID uint       `gorm:"not null;index" json:"recipient_id"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// All returns every persisted model in dependency order for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Change{},
		&Idea{},
		&Endorsement{},
		&Point{},
		&Activity{},
		&Comment{},
		&Ranking{},
		&Ad{},
		&Tag{},
		&Capital{},
		&Notification{},
	}
}
