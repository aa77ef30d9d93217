package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCategory(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Gaming", "gaming"},
		{"  Music  ", "music"},
		{"ANIME", "anime"},
		{"", DefaultCategory},
		{"   ", DefaultCategory},
		{"other", "other"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeCategory(tc.in), "input %q", tc.in)
	}
}

func TestInCategory(t *testing.T) {
	p := &Persona{Category: "gaming"}
	assert.True(t, p.InCategory("gaming"))
	assert.True(t, p.InCategory(" Gaming "))
	assert.False(t, p.InCategory("music"))

	blank := &Persona{Category: "other"}
	assert.True(t, blank.InCategory(""))
}

func TestThreadParticipants(t *testing.T) {
	thread := &DMThread{PersonaAID: 3, PersonaBID: 8}

	assert.True(t, thread.HasParticipant(3))
	assert.True(t, thread.HasParticipant(8))
	assert.False(t, thread.HasParticipant(5))

	assert.Equal(t, int64(8), thread.OtherParticipant(3))
	assert.Equal(t, int64(3), thread.OtherParticipant(8))
}

func TestFormatMessageTime(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	ts := time.Date(2026, 3, 14, 15, 9, 26, 535897932, loc)
	assert.Equal(t, "2026-03-14T13:09:26Z", FormatMessageTime(ts))
}
