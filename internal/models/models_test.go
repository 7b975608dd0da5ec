package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeFilter_Matches(t *testing.T) {
	ev := ChangeEvent{Table: TableComments, Type: EventInsert, RecipeID: "r1", New: &RecordRef{ID: "c1"}}

	tests := []struct {
		name   string
		filter ChangeFilter
		want   bool
	}{
		{"empty filter matches everything", ChangeFilter{}, true},
		{"wildcard event", ChangeFilter{Table: TableComments, Event: EventAll, RecipeID: "r1"}, true},
		{"exact event", ChangeFilter{Table: TableComments, Event: EventInsert}, true},
		{"other event", ChangeFilter{Table: TableComments, Event: EventDelete}, false},
		{"other recipe", ChangeFilter{Table: TableComments, RecipeID: "r2"}, false},
		{"other table", ChangeFilter{Table: "recipes"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(ev))
		})
	}
}

func TestChangeEvent_RecordID(t *testing.T) {
	assert.Equal(t, "c1", ChangeEvent{New: &RecordRef{ID: "c1"}}.RecordID())
	assert.Equal(t, "c2", ChangeEvent{Old: &RecordRef{ID: "c2"}}.RecordID())
	assert.Empty(t, ChangeEvent{}.RecordID())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(NewNotFoundError("Recipe", "x")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(NewValidationError("bad")))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(NewUnauthorizedError("no")))
	assert.Equal(t, http.StatusForbidden, StatusFor(NewForbiddenError("no")))
	assert.Equal(t, http.StatusConflict, StatusFor(NewConflictError("dup")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))

	wrapped := fmt.Errorf("loading: %w", NewNotFoundError("Comment", "c1"))
	assert.Equal(t, http.StatusNotFound, StatusFor(wrapped))
}

func TestDisplayNames(t *testing.T) {
	name := "Ada Lovelace"
	empty := ""

	assert.Equal(t, "Ada Lovelace", CommentWithUser{UserEmail: "ada@example.com", UserFullName: &name}.AuthorName())
	assert.Equal(t, "ada@example.com", CommentWithUser{UserEmail: "ada@example.com", UserFullName: &empty}.AuthorName())
	assert.Equal(t, "ada@example.com", (&Profile{Email: "ada@example.com"}).DisplayName())
}
