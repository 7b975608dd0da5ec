package models

import "time"

// Change event types.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
	EventAll    = "*"
)

// TableComments is the only table the change feed currently carries.
const TableComments = "comments"

// RecordRef identifies the row a change event refers to.
type RecordRef struct {
	ID string `json:"id"`
}

// ChangeEvent is a row change pushed over the change feed. New is set for
// INSERT and UPDATE, Old for DELETE.
type ChangeEvent struct {
	Table           string     `json:"table"`
	Type            string     `json:"type"`
	RecipeID        string     `json:"recipe_id"`
	New             *RecordRef `json:"new,omitempty"`
	Old             *RecordRef `json:"old,omitempty"`
	CommitTimestamp time.Time  `json:"commit_timestamp"`
}

// RecordID returns the id of the affected row.
func (e ChangeEvent) RecordID() string {
	if e.New != nil && e.New.ID != "" {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}

// ChangeFilter scopes a change-feed subscription. Empty Event or "*" matches
// every type; empty RecipeID matches every recipe.
type ChangeFilter struct {
	Table    string `json:"table"`
	Event    string `json:"event"`
	RecipeID string `json:"recipe_id"`
}

// Matches reports whether the event passes the filter.
func (f ChangeFilter) Matches(e ChangeEvent) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.Event != "" && f.Event != EventAll && f.Event != e.Type {
		return false
	}
	if f.RecipeID != "" && f.RecipeID != e.RecipeID {
		return false
	}
	return true
}
