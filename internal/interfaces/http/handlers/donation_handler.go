package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"stream-donate.backend/internal/domain/entities"
	domainerrors "stream-donate.backend/internal/domain/errors"
	"stream-donate.backend/internal/interfaces/http/response"
	"stream-donate.backend/internal/usecases"
)

type donationService interface {
	CreateDonation(ctx context.Context, input usecases.CreateDonationInput) (*usecases.CreateDonationOutput, error)
	CheckStatus(ctx context.Context, nonce string) (*usecases.DonationStatusOutput, error)
	GetDonation(ctx context.Context, nonce string) (*usecases.DonationView, error)
	ListDonations(ctx context.Context) ([]*entities.PaymentRecord, error)
	OverrideStatus(ctx context.Context, nonce, status, transactionRef string) (*usecases.DonationStatusOutput, error)
	QRImage(ctx context.Context, nonce string) ([]byte, error)
	Info(ctx context.Context) (*usecases.ServiceInfo, error)
}

type DonationHandler struct {
	service donationService
}

func NewDonationHandler(service *usecases.DonationUsecase) *DonationHandler {
	return &DonationHandler{service: service}
}

// CreateDonation creates a new payment request
// POST /api/v1/donations
func (h *DonationHandler) CreateDonation(c *gin.Context) {
	var input usecases.CreateDonationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	result, err := h.service.CreateDonation(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// GetStatus reports the lifecycle status of a payment request
// GET /api/v1/donations/:nonce/status
func (h *DonationHandler) GetStatus(c *gin.Context) {
	nonce := c.Param("nonce")
	if nonce == "" {
		response.Error(c, domainerrors.BadRequest("nonce is required"))
		return
	}

	status, err := h.service.CheckStatus(c.Request.Context(), nonce)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// GetDonation returns the full payment record with a USD estimate
// GET /api/v1/donations/:nonce
func (h *DonationHandler) GetDonation(c *gin.Context) {
	view, err := h.service.GetDonation(c.Request.Context(), c.Param("nonce"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// ListDonations lists every held payment record
// GET /api/v1/donations
func (h *DonationHandler) ListDonations(c *gin.Context) {
	records, err := h.service.ListDonations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"donations": records,
		"total":     len(records),
	})
}

type overrideStatusRequest struct {
	Status         string `json:"status" binding:"required"`
	TransactionRef string `json:"transactionRef"`
}

// OverrideStatus applies an externally requested status change
// PUT /api/v1/donations/:nonce/status
func (h *DonationHandler) OverrideStatus(c *gin.Context) {
	var req overrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	status, err := h.service.OverrideStatus(c.Request.Context(), c.Param("nonce"), req.Status, req.TransactionRef)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// GetQR renders the payment URI as a PNG QR code
// GET /qr/:nonce
func (h *DonationHandler) GetQR(c *gin.Context) {
	png, err := h.service.QRImage(c.Request.Context(), c.Param("nonce"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// GetInfo summarises the running service
// GET /
func (h *DonationHandler) GetInfo(c *gin.Context) {
	info, err := h.service.Info(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, info)
}

// HealthCheck reports liveness
// GET /health
func (h *DonationHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
