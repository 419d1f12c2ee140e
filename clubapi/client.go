// Package clubapi declares the contract of the facility's remote booking
// API. The wire protocol itself belongs to the collaborator that owns the
// facility integration; this package carries only the interface, the error
// classification, and a rate-limiting decorator.
package clubapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// BookingRequest carries everything the facility needs to create one booking.
type BookingRequest struct {
	PackageID string            `json:"packageId"`
	ProductID string            `json:"productId"`
	MemberID  string            `json:"memberId"`
	Tags      map[string]string `json:"tags"`
	Interval  string            `json:"interval"`
	Date      string            `json:"date"`
}

// BookingConfirmation is returned by the facility on a successful booking.
type BookingConfirmation struct {
	Voucher    string `json:"voucherCode"`
	AccessCode string `json:"accessCode"`
}

// IntervalSlot is one start time inside an interval group.
type IntervalSlot struct {
	Interval          string `json:"interval"`
	IsAvailable       bool   `json:"isAvailable"`
	AvailableQuantity int    `json:"availableQuantity"`
	MaxQuantity       int    `json:"maxQuantity"`
}

// IntervalGroup is the facility's answer for one date+tags query: the
// package/product pair to book through, plus the start times it offers.
type IntervalGroup struct {
	PackageID string         `json:"packageId"`
	ProductID string         `json:"productId"`
	Intervals []IntervalSlot `json:"intervals"`
}

// Booking is one existing reservation as listed by the facility.
type Booking struct {
	Voucher  string            `json:"voucherCode"`
	MemberID string            `json:"memberId"`
	Date     string            `json:"date"`
	Interval string            `json:"interval"`
	Tags     map[string]string `json:"tags"`
}

// Client is the external booking API at its boundary. All calls are
// synchronous blocking I/O; callers own timeout and cancellation via ctx.
type Client interface {
	AvailableDates(ctx context.Context, tags map[string]string) ([]string, error)
	Intervals(ctx context.Context, date string, tags map[string]string, memberID string) ([]IntervalGroup, error)
	CreateBooking(ctx context.Context, req BookingRequest) (BookingConfirmation, error)
	CancelBooking(ctx context.Context, voucher string) error
	ListBookings(ctx context.Context, memberID string) ([]Booking, error)
}

// APIError is the generic failure the facility reports. Its message text
// is the only classification signal the API exposes.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("club api: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("club api: %s", e.Message)
}

// alreadyBookedMarker is the fragment the facility puts in the error
// message when the member already holds an active reservation.
const alreadyBookedMarker = "already has an active booking"

// IsAlreadyBooked reports whether err is the facility telling us the
// member already holds a booking. Message sniffing is all the API gives us.
func IsAlreadyBooked(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return strings.Contains(strings.ToLower(apiErr.Message), alreadyBookedMarker)
	}
	if err != nil {
		return strings.Contains(strings.ToLower(err.Error()), alreadyBookedMarker)
	}
	return false
}
