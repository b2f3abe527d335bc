package core

import (
	"github.com/dkeye/Relay/internal/domain"
	"github.com/samber/lo"
)

// roomMembers is the membership set of one room in join order.
// Not threadsafe on its own; Registry guards it.
type roomMembers struct {
	order []domain.ConnID
	byID  map[domain.ConnID]domain.Participant
}

func newRoomMembers() *roomMembers {
	return &roomMembers{byID: make(map[domain.ConnID]domain.Participant)}
}

// put overwrites an existing record in place so rejoining keeps its position.
func (m *roomMembers) put(p domain.Participant) {
	if _, ok := m.byID[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.byID[p.ID] = p
}

func (m *roomMembers) remove(id domain.ConnID) (domain.Participant, bool) {
	p, ok := m.byID[id]
	if !ok {
		return domain.Participant{}, false
	}
	delete(m.byID, id)
	m.order = lo.Without(m.order, id)
	return p, true
}

func (m *roomMembers) has(id domain.ConnID) bool {
	_, ok := m.byID[id]
	return ok
}

func (m *roomMembers) others(excluding domain.ConnID) []domain.Participant {
	out := lo.FilterMap(m.order, func(id domain.ConnID, _ int) (domain.Participant, bool) {
		return m.byID[id], id != excluding
	})
	if out == nil {
		out = []domain.Participant{}
	}
	return out
}

func (m *roomMembers) len() int { return len(m.order) }
