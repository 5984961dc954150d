package controllers

import (
	"net/http"

	"listing-service/middleware"
	"listing-service/models"
	"listing-service/services"

	"github.com/gin-gonic/gin"
)

// UserController handles HTTP requests for user registration.
type UserController struct {
	userService services.UserService
}

// NewUserController creates a new UserController.
func NewUserController(userService services.UserService) *UserController {
	return &UserController{userService: userService}
}

// RegisterUser handles POST /users.
func (uc *UserController) RegisterUser(ctx *gin.Context) {
	var req models.RegisterUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields", "details": err.Error()})
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

	if svcErr := uc.userService.Register(ctx.Request.Context(), &req); svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
