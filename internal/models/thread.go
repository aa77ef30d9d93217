package models

import "time"

// DMThread is a private conversation between exactly two personas sharing a
// category. The unordered pair {PersonaAID, PersonaBID} is unique per
// category; which persona landed in which column is an artifact of who
// initiated, so lookups must consider both orderings.
type DMThread struct {
	ID         int64     `json:"id"`
	PersonaAID int64     `json:"persona_a_id"`
	PersonaBID int64     `json:"persona_b_id"`
	Category   string    `json:"category"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasParticipant reports whether the persona is one of the thread's two
// participants.
func (t *DMThread) HasParticipant(personaID int64) bool {
	return personaID == t.PersonaAID || personaID == t.PersonaBID
}

// OtherParticipant returns the participant id that is not personaID.
// Callers must check HasParticipant first.
func (t *DMThread) OtherParticipant(personaID int64) int64 {
	if personaID == t.PersonaAID {
		return t.PersonaBID
	}
	return t.PersonaAID
}

// ThreadSummary is an inbox entry: a thread annotated with the other
// participant's display name.
type ThreadSummary struct {
	ThreadID  int64  `json:"thread_id"`
	Category  string `json:"category"`
	OtherName string `json:"other_name"`
}
