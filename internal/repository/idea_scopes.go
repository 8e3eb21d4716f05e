package repository

import (
	"fmt"

	"agora/internal/models"

	"gorm.io/gorm"
)

// TopRankCutoff is the last position still counted as a top idea.
const TopRankCutoff = 25

// IdeaScopes builds the named idea listings. SuppressEmptyIdeas narrows Published to ideas
// that are ranked and have at least one endorsement.
type IdeaScopes struct {
	SuppressEmptyIdeas bool
}

func NewIdeaScopes(suppressEmptyIdeas bool) IdeaScopes {
	return IdeaScopes{SuppressEmptyIdeas: suppressEmptyIdeas}
}

func (s IdeaScopes) Published() Scope {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("ideas.status = ?", models.IdeaStatusPublished)
		if s.SuppressEmptyIdeas {
			db = db.Where("ideas.position > 0 AND ideas.endorsements_count > 0")
		}
		return db
	}
}

func (s IdeaScopes) Unpublished() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("ideas.status NOT IN ?", []models.IdeaStatus{models.IdeaStatusPublished, models.IdeaStatusAbusive})
	}
}

func (s IdeaScopes) NotDeleted() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("ideas.status <> ?", models.IdeaStatusDeleted)
	}
}

func (s IdeaScopes) Flagged() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("ideas.flags_count > 0")
	}
}

func (s IdeaScopes) Alphabetical() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("ideas.name ASC")
	}
}

func (s IdeaScopes) TopRank() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("ideas.score DESC").Order("ideas.position ASC")
	}
}

func (s IdeaScopes) NotTopRank() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("ideas.position > ?", TopRankCutoff)
	}
}

// TopIn orders by the endorsed position of the window, best first, skipping ideas without one.
func (s IdeaScopes) TopIn(w models.Window) Scope {
	col := "ideas.position_endorsed_" + windowSuffix(w)
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(col + " IS NOT NULL").Order(col + " ASC")
	}
}

// Rising and Falling read the trending score kept by the ranking job.
func (s IdeaScopes) Rising() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("ideas.trending_score > 0").Order("ideas.trending_score DESC")
	}
}

func (s IdeaScopes) Falling() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("ideas.trending_score < 0").Order("ideas.trending_score ASC")
	}
}

func (s IdeaScopes) Controversial() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("ideas.is_controversial = ?", true).Order("ideas.controversial_score DESC")
	}
}

// RisingIn, FlatIn and FallingIn filter on the sign of the window's position change.
func (s IdeaScopes) RisingIn(w models.Window) Scope {
	return changeSign(w, ">")
}

func (s IdeaScopes) FlatIn(w models.Window) Scope {
	return changeSign(w, "=")
}

func (s IdeaScopes) FallingIn(w models.Window) Scope {
	return changeSign(w, "<")
}

func changeSign(w models.Window, op string) Scope {
	clause := fmt.Sprintf("ideas.position_%s_change %s 0", windowSuffix(w), op)
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause)
	}
}

func (s IdeaScopes) Finished() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("ideas.official_status IN ?", []int{
			models.OfficialStatusFailed,
			models.OfficialStatusInProgress,
			models.OfficialStatusSuccessful,
		}).Order("ideas.status_changed_at DESC")
	}
}

func (s IdeaScopes) ByUserID(userID uint) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("ideas.user_id = ?", userID)
	}
}

func (s IdeaScopes) Newest() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("ideas.published_at DESC").Order("ideas.created_at DESC")
	}
}

func (s IdeaScopes) ByMostRecentStatusChange() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("ideas.status_changed_at DESC")
	}
}

// Named resolves a listing name from the API onto its scopes.
func (s IdeaScopes) Named(name string) ([]Scope, bool) {
	switch name {
	case "", "top":
		return []Scope{s.Published(), s.TopRank()}, true
	case "top_24hr":
		return []Scope{s.Published(), s.TopIn(models.Window24hr)}, true
	case "top_7days":
		return []Scope{s.Published(), s.TopIn(models.Window7days)}, true
	case "top_30days":
		return []Scope{s.Published(), s.TopIn(models.Window30days)}, true
	case "not_top":
		return []Scope{s.Published(), s.NotTopRank(), s.TopRank()}, true
	case "rising":
		return []Scope{s.Published(), s.Rising()}, true
	case "falling":
		return []Scope{s.Published(), s.Falling()}, true
	case "controversial":
		return []Scope{s.Published(), s.Controversial()}, true
	case "newest":
		return []Scope{s.Published(), s.Newest()}, true
	case "alphabetical":
		return []Scope{s.Published(), s.Alphabetical()}, true
	case "finished":
		return []Scope{s.Finished()}, true
	case "flagged":
		return []Scope{s.NotDeleted(), s.Flagged(), s.ByMostRecentStatusChange()}, true
	case "unpublished":
		return []Scope{s.Unpublished(), s.Newest()}, true
	}
	return nil, false
}

func windowSuffix(w models.Window) string {
	switch w {
	case models.Window24hr:
		return "24hr"
	case models.Window30days:
		return "30days"
	default:
		return "7days"
	}
}
