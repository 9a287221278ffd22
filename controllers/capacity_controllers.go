package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/birchwood-sourdough/orders/apperr"
	"github.com/birchwood-sourdough/orders/models"
	"github.com/birchwood-sourdough/orders/utils"
)

type CapacityLedger interface {
	Snapshot(ctx context.Context, day string) (models.DailyCapacity, error)
	SetMax(ctx context.Context, day string, quota int) (models.DailyCapacity, error)
}

type CapacityController struct {
	ledger CapacityLedger
}

func NewCapacityController(ledger CapacityLedger) *CapacityController {
	return &CapacityController{ledger: ledger}
}

// GetCapacity -> ?date=YYYY-MM-DD
func (cc *CapacityController) GetCapacity(c *gin.Context) {
	day, err := parseDay(c.Query("date"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	snap, err := cc.ledger.Snapshot(c.Request.Context(), day)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Capacity", snap)
}

func (cc *CapacityController) UpdateCapacity(c *gin.Context) {
	day, err := parseDay(c.Param("date"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var body struct {
		MaxLoaves *int `json:"maxLoaves"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, invalidBody(err))
		return
	}
	if body.MaxLoaves == nil {
		utils.RespondError(c, apperr.Validation("invalid_quantity", "maxLoaves is required"))
		return
	}

	snap, err := cc.ledger.SetMax(c.Request.Context(), day, *body.MaxLoaves)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Stock updated", snap)
}

func parseDay(raw string) (string, error) {
	if _, err := time.Parse(models.DayLayout, raw); err != nil || len(raw) != len(models.DayLayout) {
		return "", apperr.Validation("invalid_date", "Date must be in YYYY-MM-DD format")
	}
	return raw, nil
}
