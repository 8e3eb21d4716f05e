package models

import "time"

// Vote values stored on an endorsement.
const (
	VoteUp   = 1
	VoteDown = -1
)

// EndorsementStatus is the state of a ledger row.
type EndorsementStatus string

const (
	EndorsementStatusActive   EndorsementStatus = "active"
	EndorsementStatusInactive EndorsementStatus = "inactive"
	EndorsementStatusReplaced EndorsementStatus = "replaced"
)

// Endorsement is the single ledger row for a (user, idea) pair.
type Endorsement struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	IdeaID        uint              `gorm:"not null;uniqueIndex:idx_endorsements_idea_user" json:"idea_id"`
	UserID        uint              `gorm:"not null;uniqueIndex:idx_endorsements_idea_user;index" json:"user_id"`
	Value         int               `gorm:"not null" json:"value"`
	Status        EndorsementStatus `gorm:"type:varchar(20);not null;default:active;index" json:"status"`
	Position      int               `gorm:"not null;default:0" json:"position"`
	SubInstanceID *uint             `json:"sub_instance_id,omitempty"`
	ReferralID    *uint             `json:"referral_id,omitempty"`
	IPAddress     string            `gorm:"size:64" json:"-"`
	UserAgent     string            `gorm:"size:255" json:"-"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (e *Endorsement) IsUp() bool   { return e.Value > 0 }
func (e *Endorsement) IsDown() bool { return e.Value < 0 }

// Counted reports whether the row contributes to the idea's vote counters.
func (e *Endorsement) Counted() bool {
	return e.Status == EndorsementStatusActive || e.Status == EndorsementStatusInactive
}

// Direction is "up" or "down".
func (e *Endorsement) Direction() string {
	if e.IsDown() {
		return "down"
	}
	return "up"
}

// ValidVote reports whether v is one of the two accepted vote values.
func ValidVote(v int) bool {
	return v == VoteUp || v == VoteDown
}

// VoteContext carries request provenance recorded on new endorsements.
type VoteContext struct {
	SubInstanceID *uint
	ReferralID    *uint
	IPAddress     string
	UserAgent     string
}

// EndorserSet holds the user ids voting on an idea, computed once per operation.
type EndorserSet struct {
	Up   map[uint]struct{}
	Down map[uint]struct{}
}

// NewEndorserSet builds a set from ledger rows.
func NewEndorserSet(rows []*Endorsement) EndorserSet {
	set := EndorserSet{Up: make(map[uint]struct{}), Down: make(map[uint]struct{})}
	for _, e := range rows {
		if e.IsDown() {
			set.Down[e.UserID] = struct{}{}
		} else {
			set.Up[e.UserID] = struct{}{}
		}
	}
	return set
}

// Has reports whether userID voted either way.
func (s EndorserSet) Has(userID uint) bool {
	_, up := s.Up[userID]
	_, down := s.Down[userID]
	return up || down
}

func (s EndorserSet) IsEndorser(userID uint) bool {
	_, ok := s.Up[userID]
	return ok
}

func (s EndorserSet) IsOpposer(userID uint) bool {
	_, ok := s.Down[userID]
	return ok
}

// All returns every voter id.
func (s EndorserSet) All() []uint {
	ids := make([]uint, 0, len(s.Up)+len(s.Down))
	for id := range s.Up {
		ids = append(ids, id)
	}
	for id := range s.Down {
		ids = append(ids, id)
	}
	return ids
}
