// Package booking composes the facility's booking primitives into the
// operations the club exposes to its members.
package booking

import (
	"context"
	"fmt"

	"courtwatch/clubapi"
	"courtwatch/models"
	"courtwatch/utils"

	"go.uber.org/zap"
)

// PartialSwapError reports the non-recoverable middle state of a swap:
// the original booking was cancelled but the replacement could not be
// created. The facility API offers no compensating transaction, so the
// caller must surface this for manual intervention.
type PartialSwapError struct {
	Voucher string
	Err     error
}

func (e *PartialSwapError) Error() string {
	return fmt.Sprintf("swap left booking %s cancelled without a replacement: %v", e.Voucher, e.Err)
}

func (e *PartialSwapError) Unwrap() error {
	return e.Err
}

// Swapper moves an existing booking to another member.
type Swapper struct {
	Client clubapi.Client
}

// Swap cancels the booking behind voucher and immediately books slot for
// newMemberID. The two steps are not atomic: a create failure after a
// successful cancel returns *PartialSwapError and the original booking
// is gone. No rollback is attempted.
func (s *Swapper) Swap(ctx context.Context, voucher, newMemberID string, slot models.AvailableSlot) (clubapi.BookingConfirmation, error) {
	logger := utils.GetLogger()

	if err := s.Client.CancelBooking(ctx, voucher); err != nil {
		return clubapi.BookingConfirmation{}, fmt.Errorf("cancel booking %s: %w", voucher, err)
	}
	logger.Info("swap: original booking cancelled",
		zap.String("voucher", voucher), zap.String("newMember", newMemberID))

	conf, err := s.Client.CreateBooking(ctx, clubapi.BookingRequest{
		PackageID: slot.PackageID,
		ProductID: slot.ProductID,
		MemberID:  newMemberID,
		Tags:      slot.Attributes,
		Interval:  slot.Interval,
		Date:      slot.Date,
	})
	if err != nil {
		logger.Error("swap: rebooking failed after cancel, manual intervention required",
			zap.String("voucher", voucher), zap.String("newMember", newMemberID), zap.Error(err))
		return clubapi.BookingConfirmation{}, &PartialSwapError{Voucher: voucher, Err: err}
	}

	logger.Info("swap complete",
		zap.String("oldVoucher", voucher), zap.String("newVoucher", conf.Voucher))
	return conf, nil
}
