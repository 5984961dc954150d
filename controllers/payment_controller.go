package controllers

import (
	"net/http"

	"listing-service/middleware"
	"listing-service/models"
	"listing-service/services"

	"github.com/gin-gonic/gin"
)

// PaymentController handles the two-phase payment handshake.
type PaymentController struct {
	listingService services.ListingService
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(listingService services.ListingService) *PaymentController {
	return &PaymentController{listingService: listingService}
}

// Quote handles POST /listing-quote.
func (pc *PaymentController) Quote(ctx *gin.Context) {
	var req models.QuoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "piUid required"})
		return
	}

	uid, err := middleware.GetPiUID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if req.PiUID != uid {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "piUid does not match authenticated user"})
		return
	}

	ctx.JSON(http.StatusOK, pc.listingService.Quote(uid))
}

// ApprovePayment handles POST /payments/:id/approve.
func (pc *PaymentController) ApprovePayment(ctx *gin.Context) {
	paymentID := ctx.Param("id")
	if paymentID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "paymentId required"})
		return
	}

	uid, err := middleware.GetPiUID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if svcErr := pc.listingService.ApprovePayment(ctx.Request.Context(), paymentID, uid); svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// CompletePayment handles POST /payments/:id/complete.
func (pc *PaymentController) CompletePayment(ctx *gin.Context) {
	paymentID := ctx.Param("id")
	if paymentID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "paymentId required"})
		return
	}

	var req models.CompletePaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "txid and listing required", "details": err.Error()})
		return
	}

	uid, err := middleware.GetPiUID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	listing, svcErr := pc.listingService.CompletePayment(ctx.Request.Context(), paymentID, uid, req.TxID, &req.Draft)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "listingId": listing.ID})
}
