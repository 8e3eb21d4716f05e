// Package models contains data structures for the application's domain models.
package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// IdeaStatus is the lifecycle state of an idea.
type IdeaStatus string

const (
	IdeaStatusDraft     IdeaStatus = "draft"
	IdeaStatusPassive   IdeaStatus = "passive"
	IdeaStatusPublished IdeaStatus = "published"
	IdeaStatusInactive  IdeaStatus = "inactive"
	IdeaStatusBuried    IdeaStatus = "buried"
	IdeaStatusDeleted   IdeaStatus = "deleted"
	IdeaStatusAbusive   IdeaStatus = "abusive"
)

// Official status codes. -1 is shared by "in the works" and "compromised".
const (
	OfficialStatusFailed           = -2
	OfficialStatusInProgress       = -1
	OfficialStatusUnknown          = 0
	OfficialStatusPublishedInWorks = 1
	OfficialStatusSuccessful       = 2
)

// Window selects one of the externally maintained ranking windows.
type Window string

const (
	Window24hr   Window = "24hr"
	Window7days  Window = "7days"
	Window30days Window = "30days"
)

const noChangePhrase = "no change"

// Idea is a proposal users endorse or oppose.
type Idea struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"size:60;not null;index" json:"name"`
	Description   string     `gorm:"size:300" json:"description"`
	CategoryID    uint       `gorm:"index" json:"category_id"`
	Category      *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	SubInstanceID *uint      `gorm:"index" json:"sub_instance_id,omitempty"`
	Status        IdeaStatus `gorm:"type:varchar(20);not null;default:published;index" json:"status"`

	OfficialStatus int `gorm:"not null;default:0" json:"official_status"`

	// Ranking fields are maintained by the external ranking job.
	Score                  int     `gorm:"not null;default:0" json:"score"`
	Position               int     `gorm:"not null;default:0;index" json:"position"`
	Position24hr           int     `gorm:"column:position_24hr;not null;default:0" json:"position_24hr"`
	Position7days          int     `gorm:"column:position_7days;not null;default:0" json:"position_7days"`
	Position30days         int     `gorm:"column:position_30days;not null;default:0" json:"position_30days"`
	Position24hrChange     int     `gorm:"column:position_24hr_change;not null;default:0" json:"position_24hr_change"`
	Position7daysChange    int     `gorm:"column:position_7days_change;not null;default:0" json:"position_7days_change"`
	Position30daysChange   int     `gorm:"column:position_30days_change;not null;default:0" json:"position_30days_change"`
	PositionEndorsed24hr   *int    `gorm:"column:position_endorsed_24hr" json:"position_endorsed_24hr,omitempty"`
	PositionEndorsed7days  *int    `gorm:"column:position_endorsed_7days" json:"position_endorsed_7days,omitempty"`
	PositionEndorsed30days *int    `gorm:"column:position_endorsed_30days" json:"position_endorsed_30days,omitempty"`
	TrendingScore          float64 `gorm:"not null;default:0" json:"trending_score"`
	ControversialScore     float64 `gorm:"not null;default:0" json:"controversial_score"`
	IsControversialRanked  bool    `gorm:"column:is_controversial;not null;default:false" json:"is_controversial"`
	EndorsementsCount      int     `gorm:"not null;default:0" json:"endorsements_count"`
	UpEndorsementsCount    int     `gorm:"not null;default:0" json:"up_endorsements_count"`
	DownEndorsementsCount  int     `gorm:"not null;default:0" json:"down_endorsements_count"`
	FlagsCount             int     `gorm:"not null;default:0" json:"flags_count"`

	PublishedAt     *time.Time `json:"published_at,omitempty"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`
	// DeletedAt mirrors the deleted lifecycle state; it is not a gorm soft delete.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	ChangeID *uint   `gorm:"index" json:"change_id,omitempty"`
	Change   *Change `gorm:"foreignKey:ChangeID" json:"change,omitempty"`

	IPAddress string `gorm:"size:64" json:"-"`
	UserAgent string `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryName returns the loaded category's name.
func (i *Idea) CategoryName() string {
	if i.Category == nil {
		return "No category"
	}
	return i.Category.Name
}

func (i *Idea) IsPublished() bool {
	return i.Status == IdeaStatusPublished || i.Status == IdeaStatusInactive
}

func (i *Idea) IsBuried() bool {
	return i.Status == IdeaStatusBuried
}

// IsNew reports an idea created within the last 7 days, or one without a 7-day position.
func (i *Idea) IsNew(now time.Time) bool {
	if i.CreatedAt.IsZero() {
		return true
	}
	return i.CreatedAt.After(now.Add(-7*24*time.Hour)) || i.Position7days == 0
}

// IsTop reports a ranked idea positioned above maxPosition, the deepest position any
// endorsement currently tracks.
func (i *Idea) IsTop(maxPosition int) bool {
	if i.Position == 0 {
		return false
	}
	return i.Position < maxPosition
}

// HasChange requires Change to be preloaded.
func (i *Idea) HasChange(now time.Time) bool {
	return i.ChangeID != nil && i.Status != IdeaStatusInactive && i.Change != nil && !i.Change.IsExpired(now)
}

func (i *Idea) IsReplaced() bool {
	return i.ChangeID != nil && i.Status == IdeaStatusInactive
}

func (i *Idea) IsFinished() bool {
	return i.OfficialStatus > OfficialStatusPublishedInWorks || i.OfficialStatus < OfficialStatusUnknown
}

func (i *Idea) IsFailed() bool      { return i.OfficialStatus == OfficialStatusFailed }
func (i *Idea) IsSuccessful() bool  { return i.OfficialStatus == OfficialStatusSuccessful }
func (i *Idea) IsCompromised() bool { return i.OfficialStatus == OfficialStatusInProgress }
func (i *Idea) IsInTheWorks() bool  { return i.OfficialStatus == OfficialStatusPublishedInWorks }
func (i *Idea) IsRising() bool      { return i.Position7daysChange > 0 }
func (i *Idea) IsFalling() bool     { return i.Position7daysChange < 0 }

// IsControversial evaluates the ledger counters of the idea.
func (i *Idea) IsControversial() bool {
	return IsControversial(i.UpEndorsementsCount, i.DownEndorsementsCount)
}

// IsControversial is true when both sides have votes and up/down lies strictly within (0.5, 2.0).
func IsControversial(up, down int) bool {
	if up <= 0 || down <= 0 {
		return false
	}
	ratio := float64(up) / float64(down)
	return ratio > 0.5 && ratio < 2.0
}

// PositionChange returns the position delta for the window.
func (i *Idea) PositionChange(w Window) int {
	switch w {
	case Window24hr:
		return i.Position24hrChange
	case Window7days:
		return i.Position7daysChange
	case Window30days:
		return i.Position30daysChange
	default:
		return 0
	}
}

// ChangePercent is delta / (position + delta). A zero denominator yields NaN or ±Inf.
func (i *Idea) ChangePercent(w Window) float64 {
	delta := float64(i.PositionChange(w))
	denominator := float64(i.Position) + delta
	if denominator == 0 {
		if delta == 0 {
			return math.NaN()
		}
		return math.Inf(int(math.Copysign(1, delta)))
	}
	return delta / denominator
}

// MovementText summarizes the three ranking windows in one sentence.
func (i *Idea) MovementText(now time.Time) string {
	d24 := i.Position24hrChange
	d7 := i.Position7daysChange
	d30 := i.Position30daysChange

	switch {
	case i.Status == IdeaStatusBuried:
		return "delisted"
	case i.Status == IdeaStatusInactive:
		return "inactive"
	case i.CreatedAt.After(now.Add(-24 * time.Hour)):
		return "new"
	case d24 == 0 && d7 == 0 && d30 == 0:
		return noChangePhrase
	}

	var b strings.Builder
	b.WriteString(signedDelta(d24))
	b.WriteString(" today, ")
	b.WriteString(signedDelta(d7))
	b.WriteString(" this week, and ")
	b.WriteString(signedDelta(d30))
	b.WriteString(" this month")
	return b.String()
}

func signedDelta(d int) string {
	switch {
	case d > 0:
		return "+" + strconv.Itoa(d)
	case d < 0:
		return "-" + strconv.Itoa(-d)
	default:
		return noChangePhrase
	}
}

// OfficialStatusName returns the display label. -1 is "In Progress" whichever call set it.
func (i *Idea) OfficialStatusName() string {
	switch i.OfficialStatus {
	case OfficialStatusFailed:
		return "Failed"
	case OfficialStatusInProgress:
		return "In Progress"
	case OfficialStatusPublishedInWorks:
		return "Published"
	case OfficialStatusSuccessful:
		return "Successful"
	default:
		return "Unknown"
	}
}

// ValueName describes the official outcome in a sentence.
func (i *Idea) ValueName() string {
	switch {
	case i.IsFailed():
		return "Idea failed"
	case i.IsSuccessful():
		return "Idea successful"
	case i.IsCompromised():
		return "Idea successful with compromises"
	case i.IsInTheWorks():
		return "Idea in the works"
	default:
		return "Idea has not been processed"
	}
}

// Category groups ideas.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
