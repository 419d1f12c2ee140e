package handlers

import (
	"errors"
	"net/http"

	"courtwatch/models"
	"courtwatch/services/booking"
	"courtwatch/utils"

	"github.com/gin-gonic/gin"
)

// SwapHandler moves an existing booking to another member.
type SwapHandler struct {
	Swapper *booking.Swapper
}

func NewSwapHandler(swapper *booking.Swapper) *SwapHandler {
	return &SwapHandler{Swapper: swapper}
}

// Swap cancels the voucher's booking and immediately rebooks the slot for
// the new member. A partial failure (cancelled but not rebooked) comes
// back as HTTP 502 with partialFailure set so the caller knows manual
// intervention is needed.
func (h *SwapHandler) Swap(c *gin.Context) {
	var req struct {
		Voucher     string               `json:"voucher"`
		NewMemberID string               `json:"newMemberId"`
		Slot        models.AvailableSlot `json:"slot"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	if req.Voucher == "" || req.NewMemberID == "" {
		utils.JSONError(c, http.StatusBadRequest, "voucher and newMemberId are required", "")
		return
	}

	conf, err := h.Swapper.Swap(c.Request.Context(), req.Voucher, req.NewMemberID, req.Slot)
	if err != nil {
		var partial *booking.PartialSwapError
		if errors.As(err, &partial) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":            partial.Error(),
				"partialFailure":   true,
				"cancelledVoucher": partial.Voucher,
			})
			return
		}
		utils.JSONError(c, http.StatusBadGateway, "swap failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"voucher":    conf.Voucher,
		"accessCode": conf.AccessCode,
	})
}
