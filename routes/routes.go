package routes

import (
	"listing-service/controllers"
	"listing-service/middleware"
	"listing-service/providers"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up the HTTP surface. Every mutating route requires a
// verified Pi identity; the listing query is public.
func RegisterRoutes(
	r *gin.Engine,
	verifier providers.IdentityVerifier,
	uc *controllers.UserController,
	pc *controllers.PaymentController,
	lc *controllers.ListingController,
) {
	r.GET("/listings", lc.GetListings)

	authed := r.Group("")
	authed.Use(middleware.PiAuth(verifier))
	authed.POST("/users", uc.RegisterUser)
	authed.POST("/listing-quote", pc.Quote)
	authed.POST("/payments/:id/approve", pc.ApprovePayment)
	authed.POST("/payments/:id/complete", pc.CompletePayment)
	authed.POST("/listings/:id/remove", lc.RemoveListing)
}
