// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxNameLen    = 64
	AnonymousName = "Anonymous"
)

var ErrNameTooLong = errors.New("name too long")

// ConnID identifies one live transport session.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// NormalizeName trims a client supplied display name.
// Names are untrusted: empty becomes AnonymousName, oversized is rejected.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return AnonymousName, nil
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return "", ErrNameTooLong
	}
	return name, nil
}
