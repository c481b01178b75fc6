package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterestedInCreated(t *testing.T) {
	tests := []struct {
		name      string
		assignees []string
		creator   string
		want      []string
	}{
		{"assignees notified", []string{"a", "b"}, "creator", []string{"a", "b"}},
		{"creator fallback when unassigned", nil, "creator", []string{"creator"}},
		{"duplicate assignees collapsed", []string{"a", "a", "b"}, "creator", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, interestedInCreated(tt.assignees, tt.creator))
		})
	}
}

func TestInterestedInUpdated(t *testing.T) {
	tests := []struct {
		name      string
		assignees []string
		creator   string
		actor     string
		want      []string
	}{
		{"actor excluded", []string{"a", "b"}, "creator", "a", []string{"b", "creator"}},
		{"creator appended once", []string{"a", "creator"}, "creator", "x", []string{"a", "creator"}},
		{"creator is actor", []string{"a", "b"}, "creator", "creator", []string{"a", "b"}},
		{"order preserved", []string{"c", "a", "b"}, "creator", "x", []string{"c", "a", "b", "creator"}},
		{"everyone excluded", []string{"a"}, "a", "a", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, interestedInUpdated(tt.assignees, tt.creator, tt.actor))
		})
	}
}

func TestInterestedInComment(t *testing.T) {
	// The comment author never hears about their own comment
	got := interestedInComment([]string{"a", "b"}, "creator", "b")
	assert.Equal(t, []string{"a", "creator"}, got)

	// Creator commenting on their own unassigned task notifies nobody
	got = interestedInComment(nil, "creator", "creator")
	assert.Empty(t, got)
}
