package services

import "errors"

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrGameFull           = errors.New("game is full")
	ErrAlreadyJoined      = errors.New("user already joined this game")
	ErrAlreadySettled     = errors.New("game already settled")
	ErrDuplicateReference = errors.New("reference already recorded")
	ErrGameNotFull        = errors.New("game is not full")
	ErrGameCancelled      = errors.New("game was cancelled")
	ErrGameNotSettled     = errors.New("game not settled yet")
	ErrNotParticipant     = errors.New("user did not join this game")
	ErrInvalidStake       = errors.New("stake is not an offered tier")
	ErrInvalidBet         = errors.New("bet outside allowed range")
	ErrInvalidChoice      = errors.New("choice must be heads or tails")
	ErrInvalidMultiplier  = errors.New("multiplier does not match configured payout")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidKind        = errors.New("unknown entry kind")
	ErrMissingReference   = errors.New("reference is required")
	ErrNotFound           = errors.New("not found")
	ErrPoolExceeded       = errors.New("payouts exceed collected stakes")
)
