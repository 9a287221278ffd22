package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/birchwood-sourdough/orders/utils"
)

type MaintenanceSwitch interface {
	MaintenanceMode(ctx context.Context) (bool, error)
	ToggleMaintenance(ctx context.Context) (bool, error)
}

// AdminController serves the shop-wide switches.
type AdminController struct {
	settings MaintenanceSwitch
	events   EventPublisher
	logger   logrus.FieldLogger
}

type EventPublisher interface {
	Publish(event string, payload any)
}

const EventMaintenanceChanged = "maintenance_changed"

func NewAdminController(settings MaintenanceSwitch, events EventPublisher, logger logrus.FieldLogger) *AdminController {
	return &AdminController{settings: settings, events: events, logger: logger}
}

func (ac *AdminController) GetMaintenance(c *gin.Context) {
	on, err := ac.settings.MaintenanceMode(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Maintenance status", gin.H{"maintenanceMode": on})
}

func (ac *AdminController) ToggleMaintenance(c *gin.Context) {
	on, err := ac.settings.ToggleMaintenance(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if ac.events != nil {
		ac.events.Publish(EventMaintenanceChanged, gin.H{"maintenanceMode": on})
	}
	utils.RespondJSON(c, http.StatusOK, "Maintenance mode updated", gin.H{"maintenanceMode": on})
}
