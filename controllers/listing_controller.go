package controllers

import (
	"net/http"
	"strconv"

	"listing-service/middleware"
	"listing-service/models"
	"listing-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListingController handles the public listing query and owner removal.
type ListingController struct {
	listingService services.ListingService
}

// NewListingController creates a new ListingController.
func NewListingController(listingService services.ListingService) *ListingController {
	return &ListingController{listingService: listingService}
}

// GetListings handles GET /listings.
func (lc *ListingController) GetListings(ctx *gin.Context) {
	filter := models.ListingFilter{
		Country:  ctx.Query("country"),
		Category: models.Category(ctx.Query("category")),
	}
	page, limit := parsePaginationParams(ctx)

	listings, total, svcErr := lc.listingService.ListListings(ctx.Request.Context(), filter, page, limit)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	if listings == nil {
		listings = []models.Listing{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"listings": listings,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// RemoveListing handles POST /listings/:id/remove.
func (lc *ListingController) RemoveListing(ctx *gin.Context) {
	listingID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		// An unparseable id gets the same answer as a missing one.
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}

	var req models.RemoveListingRequest
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

	if svcErr := lc.listingService.RemoveListing(ctx.Request.Context(), listingID, uid); svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 20

	page := ctx.DefaultQuery("page", "1")
	limit := ctx.DefaultQuery("limit", "20")

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(page); err == nil && p > 0 {
		pageInt = p
	}

	if l, err := strconv.Atoi(limit); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}

	return pageInt, limitInt
}
