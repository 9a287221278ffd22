package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/birchwood-sourdough/orders/models"
	"github.com/birchwood-sourdough/orders/services"
	"github.com/birchwood-sourdough/orders/utils"
)

type FeedbackStore interface {
	Submit(ctx context.Context, req services.FeedbackRequest) (models.Feedback, error)
	Approved(ctx context.Context) ([]models.Feedback, error)
	All(ctx context.Context) ([]models.Feedback, error)
	Delete(ctx context.Context, id string) error
}

type FeedbackController struct {
	feedback FeedbackStore
}

func NewFeedbackController(feedback FeedbackStore) *FeedbackController {
	return &FeedbackController{feedback: feedback}
}

func (fc *FeedbackController) SubmitFeedback(c *gin.Context) {
	var req services.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, invalidBody(err))
		return
	}
	fb, err := fc.feedback.Submit(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Thank you for your feedback", gin.H{"id": fb.ID})
}

func (fc *FeedbackController) GetApprovedFeedback(c *gin.Context) {
	list, err := fc.feedback.Approved(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Feedback", list)
}

func (fc *FeedbackController) GetAllFeedback(c *gin.Context) {
	list, err := fc.feedback.All(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All feedback", list)
}

func (fc *FeedbackController) DeleteFeedback(c *gin.Context) {
	if err := fc.feedback.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Feedback deleted", nil)
}
