package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/models"
	"github.com/mmdatafocus/attendance_backend/utils"
)

// respondError translates a typed error into the wire contract: short
// message plus machine-checkable kind, internal details never leak.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	var apiErr *utils.ApiError
	if errors.As(err, &apiErr) {
		c.JSON(utils.HttpStatus(err), gin.H{"error": apiErr.Message, "kind": apiErr.Kind, "code": apiErr.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewValidationError("Geçersiz e-posta veya şifre."))
		return
	}

	token, employee, err := models.Login(c.Request.Context(), config.GetDB(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":      employee.Id,
			"name":    employee.Name,
			"surname": employee.Surname,
			"email":   employee.Email,
			"role":    employee.Role,
		},
	})
}

func logoutHandler(c *gin.Context) {
	ctx := c.Request.Context()
	userId, _ := utils.GetUserIdFromContext(ctx)
	token, _ := utils.GetTokenFromContext(ctx)

	if err := models.Logout(ctx, userId, token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Oturum kapatıldı."})
}

func registerHandler(c *gin.Context) {
	var input models.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, utils.NewValidationError(err.Error()))
		return
	}

	employee, err := models.RegisterEmployee(c.Request.Context(), config.GetDB(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func listUsersHandler(c *gin.Context) {
	employees, err := models.ListEmployees(c.Request.Context(), config.GetDB())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employees)
}

func getUserHandler(c *gin.Context) {
	employee, err := models.GetEmployee(c.Request.Context(), config.GetDB(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func updateUserHandler(c *gin.Context) {
	var input models.UpdateEmployeeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, utils.NewValidationError(err.Error()))
		return
	}

	employee, err := models.UpdateEmployee(c.Request.Context(), config.GetDB(), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func deleteUserHandler(c *gin.Context) {
	if err := models.DeleteEmployee(c.Request.Context(), config.GetDB(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Kullanıcı sistemden silinmiştir."})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

func changePasswordHandler(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewValidationError(err.Error()))
		return
	}

	userId, _ := utils.GetUserIdFromContext(c.Request.Context())
	if err := models.ChangePassword(c.Request.Context(), config.GetDB(), userId, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Şifre başarıyla değiştirildi."})
}
