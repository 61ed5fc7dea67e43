package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/models"
	"github.com/mmdatafocus/attendance_backend/utils"
)

func checkInHandler(c *gin.Context) {
	userId, _ := utils.GetUserIdFromContext(c.Request.Context())

	entry, err := models.CheckIn(c.Request.Context(), config.GetDB(), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Mesai başarıyla başlatıldı",
		"log_id":        entry.LogID,
		"check_in_time": entry.CheckInTime,
	})
}

func checkOutHandler(c *gin.Context) {
	userId, _ := utils.GetUserIdFromContext(c.Request.Context())

	entry, err := models.CheckOut(c.Request.Context(), config.GetDB(), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Mesai başarıyla bitirildi",
		"log_id":         entry.LogID,
		"check_out_time": entry.CheckOutTime,
	})
}

func dailySummaryHandler(c *gin.Context) {
	userId, _ := utils.GetUserIdFromContext(c.Request.Context())

	summary, err := models.GetDailySummary(c.Request.Context(), config.GetDB(), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
