package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidDateRange = errors.New("check-out date must be after check-in date")
	ErrHotelNotFound    = errors.New("hotel not found")
	ErrRoomNotFound     = errors.New("room not found")
	ErrAddOnNotFound    = errors.New("add-on not found")
	ErrRoomUnavailable  = errors.New("room unavailable for the requested dates")
	ErrResourceBusy     = errors.New("room is busy, retry later")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrNextID           = errors.New("get next id from generator")
)

// ConflictError reports which room and date range lost to an existing ACTIVE
// booking. It unwraps to ErrRoomUnavailable.
type ConflictError struct {
	RoomID string
	From   time.Time
	To     time.Time
}

func NewConflictError(roomID string, from, to time.Time) *ConflictError {
	return &ConflictError{RoomID: roomID, From: from, To: to}
}

func IsConflictError(err error) *ConflictError {
	if err == nil {
		return nil
	}

	var conflictError *ConflictError

	if errors.As(err, &conflictError) {
		return conflictError
	}

	return nil
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"room '%v' is unavailable from %v to %v",
		e.RoomID,
		e.From.Format(time.DateOnly),
		e.To.Format(time.DateOnly),
	)
}

func (e *ConflictError) Unwrap() error {
	return ErrRoomUnavailable
}
