package domain

// Participant is a connection's membership record within one room.
// No transport or lifecycle logic here.
type Participant struct {
	ID   ConnID `json:"id"`
	Name string `json:"name"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(id ConnID, name string) Participant {
	return Participant{ID: id, Name: name}
}
