package lifecycle

import "agora/internal/models"

// WasPublished guards undelete back to published.
func WasPublished(idea *models.Idea) bool {
	return idea.PublishedAt != nil
}

// NewIdeaMachine returns a machine loaded with the idea transition table. Callbacks are
// registered by the caller.
func NewIdeaMachine[E any]() *Machine[E] {
	m := NewMachine[E]()

	m.Permit(models.IdeaStatusPublished, EventDelete, models.IdeaStatusDeleted, nil).
		Permit(models.IdeaStatusPublished, EventBury, models.IdeaStatusBuried, nil).
		Permit(models.IdeaStatusPublished, EventDeactivate, models.IdeaStatusInactive, nil).
		Permit(models.IdeaStatusPublished, EventAbusive, models.IdeaStatusAbusive, nil)

	m.Permit(models.IdeaStatusPassive, EventPublish, models.IdeaStatusPublished, nil).
		Permit(models.IdeaStatusPassive, EventDelete, models.IdeaStatusDeleted, nil).
		Permit(models.IdeaStatusPassive, EventBury, models.IdeaStatusBuried, nil)

	m.Permit(models.IdeaStatusDraft, EventPublish, models.IdeaStatusPublished, nil).
		Permit(models.IdeaStatusDraft, EventDelete, models.IdeaStatusDeleted, nil).
		Permit(models.IdeaStatusDraft, EventBury, models.IdeaStatusBuried, nil).
		Permit(models.IdeaStatusDraft, EventDeactivate, models.IdeaStatusInactive, nil)

	// Ordered: the first guard that passes wins.
	m.Permit(models.IdeaStatusDeleted, EventBury, models.IdeaStatusBuried, nil).
		Permit(models.IdeaStatusDeleted, EventUndelete, models.IdeaStatusPublished, WasPublished).
		Permit(models.IdeaStatusDeleted, EventUndelete, models.IdeaStatusDraft, nil)

	m.Permit(models.IdeaStatusInactive, EventDelete, models.IdeaStatusDeleted, nil)

	m.Permit(models.IdeaStatusBuried, EventDeactivate, models.IdeaStatusInactive, nil)

	return m
}

// ParseEvent maps an external event name onto an Event.
func ParseEvent(name string) (Event, bool) {
	switch ev := Event(name); ev {
	case EventPublish, EventDelete, EventUndelete, EventBury, EventDeactivate, EventAbusive:
		return ev, true
	}
	return "", false
}
