package validator

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrInvalidGameID    = errors.New("invalid game id")
)

var (
	referenceRegex = regexp.MustCompile(`^[A-Za-z0-9_.:\-]{1,128}$`)
	userIDRegex    = regexp.MustCompile(`^[A-Za-z0-9_.@\-]{1,64}$`)
)

// ValidateReference checks external payment references and client request ids.
func ValidateReference(reference string) error {
	if !referenceRegex.MatchString(reference) {
		return ErrInvalidReference
	}
	return nil
}

func ValidateUserID(userID string) error {
	if !userIDRegex.MatchString(userID) {
		return ErrInvalidUserID
	}
	return nil
}

func ValidateGameID(gameID string) error {
	if _, err := uuid.Parse(strings.TrimSpace(gameID)); err != nil {
		return ErrInvalidGameID
	}
	return nil
}
