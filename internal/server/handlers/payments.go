package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	paymentservice "github.com/lumenlearn/pvs/internal/application/payment"
	"github.com/lumenlearn/pvs/internal/application/verification"
	"github.com/lumenlearn/pvs/internal/domain"
)

type PaymentHandler struct {
	paymentSvc      paymentservice.IPaymentService
	verificationSvc verification.IVerificationService
	logger          zerolog.Logger
}

func NewPaymentHandler(paymentSvc paymentservice.IPaymentService, verificationSvc verification.IVerificationService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentSvc:      paymentSvc,
		verificationSvc: verificationSvc,
		logger:          logger,
	}
}

// Submit accepts a payment claim. It always succeeds once the record is
// created; rejection, if any, is communicated later via the record's status.
func (h *PaymentHandler) Submit(c *gin.Context) {
	var in paymentservice.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": err.Error(),
		})
		return
	}

	p, err := h.paymentSvc.Submit(c.Request.Context(), in)
	if err != nil {
		h.logger.Error().Err(err).Str("tx_ref", in.TxRef).Msg("Payment submission failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to submit payment",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"payment_id":        p.ID,
		"status":            p.Status,
		"validation_status": p.ValidationStatus,
		"expires_at":        p.ExpiresAt,
	})
}

func (h *PaymentHandler) Get(c *gin.Context) {
	id := c.Param("id")

	p, err := h.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("payment_id", id).Msg("Failed to get payment")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to retrieve payment",
		})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not Found",
			"message": "Payment not found",
		})
		return
	}

	c.JSON(http.StatusOK, p)
}

// VerifyNow triggers an immediate re-check outside the scheduler cadence.
func (h *PaymentHandler) VerifyNow(c *gin.Context) {
	id := c.Param("id")

	confirmed, err := h.verificationSvc.VerifyNow(c.Request.Context(), id)
	if err != nil {
		if err.Error() == "payment not found: "+id {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Not Found",
				"message": "Payment not found",
			})
			return
		}
		h.logger.Error().Err(err).Str("payment_id", id).Msg("Manual verification failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to verify payment",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id": id,
		"confirmed":  confirmed,
	})
}

func (h *PaymentHandler) Reject(c *gin.Context) {
	h.override(c, domain.StatusRejected)
}

func (h *PaymentHandler) Approve(c *gin.Context) {
	h.override(c, domain.StatusConfirmed)
}

func (h *PaymentHandler) override(c *gin.Context, status domain.PaymentStatus) {
	id := c.Param("id")

	var body struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": err.Error(),
		})
		return
	}

	p, err := h.paymentSvc.AdminOverride(c.Request.Context(), id, status, body.Notes)
	if err != nil {
		if err.Error() == "payment not found: "+id {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Not Found",
				"message": "Payment not found",
			})
			return
		}
		h.logger.Error().Err(err).Str("payment_id", id).Str("status", string(status)).Msg("Admin override failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to apply override",
		})
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *PaymentHandler) Stats(c *gin.Context) {
	windowHours := 24
	if windowStr := c.Query("window_hours"); windowStr != "" {
		if w, err := strconv.Atoi(windowStr); err == nil && w > 0 && w <= 24*30 {
			windowHours = w
		}
	}

	stats, err := h.paymentSvc.Stats(c.Request.Context(), windowHours)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to get payment stats")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to retrieve stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
