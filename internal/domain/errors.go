package domain

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrAlreadyClaimed    = errors.New("ticket already claimed")
	ErrNotClaimed        = errors.New("ticket is not claimed")
	ErrAlreadyResolved   = errors.New("ticket already resolved")
	ErrNotResolved       = errors.New("ticket is not awaiting feedback")
	ErrFeedbackSubmitted = errors.New("feedback already submitted")
)
