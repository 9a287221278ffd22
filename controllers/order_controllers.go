package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/birchwood-sourdough/orders/apperr"
	"github.com/birchwood-sourdough/orders/models"
	"github.com/birchwood-sourdough/orders/services"
	"github.com/birchwood-sourdough/orders/utils"
)

type Admitter interface {
	Admit(ctx context.Context, req services.OrderRequest) (models.Order, services.AdmissionResult, error)
}

type StatusSetter interface {
	SetStatus(ctx context.Context, id, status string) (models.Order, error)
}

type OrderReader interface {
	List(ctx context.Context, limit int) ([]models.Order, error)
	Get(ctx context.Context, id string) (models.Order, error)
	Delete(ctx context.Context, id string) error
}

type OrderController struct {
	admission Admitter
	tracker   StatusSetter
	orders    OrderReader
	logger    logrus.FieldLogger
}

func NewOrderController(admission Admitter, tracker StatusSetter, orders OrderReader, logger logrus.FieldLogger) *OrderController {
	return &OrderController{admission: admission, tracker: tracker, orders: orders, logger: logger}
}

// CreateOrder -> admit a customer order (status Pending Payment)
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req services.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, invalidBody(err))
		return
	}

	order, result, err := oc.admission.Admit(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Order created", gin.H{
		"order":     order,
		"remaining": result.Remaining,
		"warning":   result.Warning,
	})
}

// GetAllOrders -> newest first, ?limit= caps the count
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.RespondError(c, apperr.Validation("invalid_limit", "limit must be a positive number"))
			return
		}
		limit = n
	}

	orders, err := oc.orders.List(c.Request.Context(), limit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	order, err := oc.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, invalidBody(err))
		return
	}

	order, err := oc.tracker.SetStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// DeleteOrder is a debugging aid; normal operation cancels orders instead.
func (oc *OrderController) DeleteOrder(c *gin.Context) {
	id := c.Param("id")
	if err := oc.orders.Delete(c.Request.Context(), id); err != nil {
		utils.RespondError(c, err)
		return
	}
	oc.logger.WithField("order_id", id).Warn("Order deleted by admin")
	utils.RespondJSON(c, http.StatusOK, "Order deleted", nil)
}

func invalidBody(err error) error {
	e := apperr.Validation("invalid_body", "Request body must be valid JSON")
	e.Err = err
	return e
}
