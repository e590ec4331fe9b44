// Package room derives canonical chat room identifiers.
//
// A room is scoped to one task and one unordered pair of users. Deriving
// the ID from the sorted pair guarantees that both directions of a
// conversation land in the same room no matter who sent the first message.
package room

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Separator joins the three identifier segments. UUID strings never
// contain it, so the segments stay unambiguous.
const Separator = "_"

var (
	ErrEmptyIdentifier     = errors.New("identifier is empty")
	ErrMalformedIdentifier = errors.New("identifier is not a valid UUID")
	ErrSameParticipant     = errors.New("sender and receiver are the same user")
)

// ComputeID returns the canonical room ID for the task and the unordered
// user pair. ComputeID(t, a, b) == ComputeID(t, b, a) for all valid inputs.
func ComputeID(taskID, userA, userB string) (string, error) {
	taskID, err := Canonicalize(taskID)
	if err != nil {
		return "", fmt.Errorf("task id: %w", err)
	}
	userA, err = Canonicalize(userA)
	if err != nil {
		return "", fmt.Errorf("user id: %w", err)
	}
	userB, err = Canonicalize(userB)
	if err != nil {
		return "", fmt.Errorf("user id: %w", err)
	}

	if userA == userB {
		return "", ErrSameParticipant
	}

	lo, hi := userA, userB
	if hi < lo {
		lo, hi = hi, lo
	}

	return taskID + Separator + lo + Separator + hi, nil
}

// Canonicalize parses the identifier and returns its canonical UUID string
// form. Callers persist and compare only this form, so an ID is never seen
// in mixed representations.
func Canonicalize(id string) (string, error) {
	if id == "" {
		return "", ErrEmptyIdentifier
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrMalformedIdentifier
	}
	return parsed.String(), nil
}
