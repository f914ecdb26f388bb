package models

import "fmt"

// BookingStatus is the closed set of booking lifecycle states.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// ParseBookingStatus is the single string-to-status boundary. Anything
// outside the closed set is rejected here, never coerced downstream.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch BookingStatus(raw) {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return BookingStatus(raw), nil
	default:
		return "", fmt.Errorf("unknown booking status %q", raw)
	}
}

// Terminal reports whether no further transitions are allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

func (s BookingStatus) String() string { return string(s) }

// SpaceStatus is the closed set of space availability states.
type SpaceStatus string

const (
	SpaceAvailable   SpaceStatus = "available"
	SpaceBooked      SpaceStatus = "booked"
	SpaceMaintenance SpaceStatus = "maintenance"
)

func ParseSpaceStatus(raw string) (SpaceStatus, error) {
	switch SpaceStatus(raw) {
	case SpaceAvailable, SpaceBooked, SpaceMaintenance:
		return SpaceStatus(raw), nil
	default:
		return "", fmt.Errorf("unknown space status %q", raw)
	}
}

func (s SpaceStatus) String() string { return string(s) }
