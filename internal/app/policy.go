package app

import (
	"fmt"

	"github.com/dkeye/Relay/internal/domain"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(member domain.ConnID, event domain.EventType) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.ConnID, domain.EventType) BackpressureAction {
	return KickMember
}

// LenientPolicy keeps slow members and loses the frame instead.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(domain.ConnID, domain.EventType) BackpressureAction {
	return DropFrame
}

func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return LenientPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown backpressure policy %q", name)
}
