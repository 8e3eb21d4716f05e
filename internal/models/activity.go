package models

import (
	"slices"
	"time"
)

// ActivityKind discriminates activity records.
type ActivityKind string

const (
	ActivityIdeaNew     ActivityKind = "idea_new"
	ActivityIdeaDebut   ActivityKind = "idea_debut"
	ActivityIdeaRenamed ActivityKind = "idea_renamed"
	ActivityIdeaFlag    ActivityKind = "idea_flag"
	ActivityIdeaRising  ActivityKind = "idea_rising"

	ActivityIdeaFlagInappropriate ActivityKind = "idea_flag_inappropriate"

	ActivityOfficialStatusFailed      ActivityKind = "idea_official_status_failed"
	ActivityOfficialStatusSuccessful  ActivityKind = "idea_official_status_successful"
	ActivityOfficialStatusCompromised ActivityKind = "idea_official_status_compromised"
	ActivityOfficialStatusInTheWorks  ActivityKind = "idea_official_status_in_the_works"
	ActivityOfficialStatusReactivated ActivityKind = "idea_official_status_reactivated"

	ActivityIssueIdea              ActivityKind = "issue_idea"
	ActivityIssueIdeaControversial ActivityKind = "issue_idea_controversial"
	ActivityIssueIdeaRising        ActivityKind = "issue_idea_rising"
	ActivityIssueIdeaOfficial      ActivityKind = "issue_idea_official"

	ActivityEndorsementNew             ActivityKind = "endorsement_new"
	ActivityOppositionNew              ActivityKind = "opposition_new"
	ActivityEndorsementDelete          ActivityKind = "endorsement_delete"
	ActivityOppositionDelete           ActivityKind = "opposition_delete"
	ActivityEndorsementReplaced        ActivityKind = "endorsement_replaced"
	ActivityOppositionReplaced         ActivityKind = "opposition_replaced"
	ActivityEndorsementReplacedImplied ActivityKind = "endorsement_replaced_implicit"
	ActivityOppositionReplacedImplied  ActivityKind = "opposition_replaced_implicit"
	ActivityEndorsementFlipped         ActivityKind = "endorsement_flipped"
	ActivityOppositionFlipped          ActivityKind = "opposition_flipped"
	ActivityEndorsementFlippedImplied  ActivityKind = "endorsement_flipped_implicit"
	ActivityOppositionFlippedImplied   ActivityKind = "opposition_flipped_implicit"

	ActivityIdeaAcquisition         ActivityKind = "idea_acquisition"
	ActivityIdeaAcquisitionProposal ActivityKind = "idea_acquisition_proposal"
	ActivityCapitalAcquisition      ActivityKind = "capital_acquisition_proposal"
	ActivityCapitalAdRefunded       ActivityKind = "capital_ad_refunded"
)

var polarityInversion = map[ActivityKind]ActivityKind{}

func init() {
	pairs := [][2]ActivityKind{
		{ActivityEndorsementNew, ActivityOppositionNew},
		{ActivityEndorsementDelete, ActivityOppositionDelete},
		{ActivityEndorsementReplaced, ActivityOppositionReplaced},
		{ActivityEndorsementReplacedImplied, ActivityOppositionReplacedImplied},
		{ActivityEndorsementFlipped, ActivityOppositionFlipped},
		{ActivityEndorsementFlippedImplied, ActivityOppositionFlippedImplied},
	}
	for _, p := range pairs {
		polarityInversion[p[0]] = p[1]
		polarityInversion[p[1]] = p[0]
	}
}

// nonTransferable kinds describe the source idea itself and are deleted when it is merged.
var nonTransferable = map[ActivityKind]struct{}{
	ActivityIdeaDebut:                 {},
	ActivityIdeaNew:                   {},
	ActivityIdeaRenamed:               {},
	ActivityIdeaFlag:                  {},
	ActivityIdeaRising:                {},
	ActivityIdeaFlagInappropriate:     {},
	ActivityOfficialStatusFailed:      {},
	ActivityOfficialStatusSuccessful:  {},
	ActivityOfficialStatusCompromised: {},
	ActivityOfficialStatusInTheWorks:  {},
	ActivityOfficialStatusReactivated: {},
	ActivityIssueIdea:                 {},
	ActivityIssueIdeaControversial:    {},
	ActivityIssueIdeaRising:           {},
	ActivityIssueIdeaOfficial:         {},
}

// NonTransferableKinds lists the kinds a merge deletes from the source idea, sorted.
func NonTransferableKinds() []ActivityKind {
	kinds := make([]ActivityKind, 0, len(nonTransferable))
	for k := range nonTransferable {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Inverted returns the opposite-polarity kind and true, or k and false when k has no polarity.
func (k ActivityKind) Inverted() (ActivityKind, bool) {
	inv, ok := polarityInversion[k]
	if !ok {
		return k, false
	}
	return inv, true
}

// Transferable reports whether a merge moves activities of this kind to the target.
func (k ActivityKind) Transferable() bool {
	_, ok := nonTransferable[k]
	return !ok
}

// IsAcquisition reports kinds that stay with the source idea when a merge preserves it.
func (k ActivityKind) IsAcquisition() bool {
	switch k {
	case ActivityIdeaAcquisition, ActivityIdeaAcquisitionProposal, ActivityCapitalAcquisition:
		return true
	}
	return false
}

// ActivityStatus is the visibility of an activity.
type ActivityStatus string

const (
	ActivityStatusActive  ActivityStatus = "active"
	ActivityStatusDeleted ActivityStatus = "deleted"
)

// Activity is an event-log entry attached to an idea.
type Activity struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Kind      ActivityKind   `gorm:"type:varchar(60);not null;index" json:"kind"`
	IdeaID    uint           `gorm:"not null;index" json:"idea_id"`
	UserID    *uint          `gorm:"index" json:"user_id,omitempty"`
	CapitalID *uint          `json:"capital_id,omitempty"`
	Status    ActivityStatus `gorm:"type:varchar(20);not null;default:active" json:"status"`
	Comments  []Comment      `gorm:"foreignKey:ActivityID" json:"comments,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Comment belongs to an activity and records the author's side at the time of writing.
type Comment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActivityID uint      `gorm:"not null;index" json:"activity_id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsEndorser bool      `gorm:"not null;default:false" json:"is_endorser"`
	IsOpposer  bool      `gorm:"not null;default:false" json:"is_opposer"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Invert swaps the endorser and opposer flags.
func (c *Comment) Invert() {
	c.IsEndorser, c.IsOpposer = c.IsOpposer, c.IsEndorser
}
