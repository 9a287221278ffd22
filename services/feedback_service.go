package services

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/birchwood-sourdough/orders/apperr"
	"github.com/birchwood-sourdough/orders/metrics"
	"github.com/birchwood-sourdough/orders/models"
	"github.com/birchwood-sourdough/orders/recordstore"
)

const (
	maxFeedbackLength = 2000
	approvedLimit     = 10
)

type FeedbackRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Feedback string `json:"feedback"`
	Rating   int    `json:"rating"`
}

// FeedbackService stores customer feedback. Entries are approved by hand in the store
// before they appear publicly.
type FeedbackService struct {
	store   recordstore.Store
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

func NewFeedbackService(store recordstore.Store, m *metrics.Metrics, logger logrus.FieldLogger) *FeedbackService {
	return &FeedbackService{store: store, metrics: m, logger: logger}
}

func (s *FeedbackService) Submit(ctx context.Context, req FeedbackRequest) (models.Feedback, error) {
	fb := models.Feedback{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Feedback: strings.TrimSpace(req.Feedback),
		Rating:   req.Rating,
		Status:   models.FeedbackNew,
	}
	switch {
	case fb.Name == "" || utf8.RuneCountInString(fb.Name) > maxNameLength:
		return models.Feedback{}, apperr.Validation("invalid_name", "Name is required and must be at most 100 characters")
	case fb.Email != "" && !models.IsEmail(fb.Email):
		return models.Feedback{}, apperr.Validation("invalid_email", "Please enter a valid email address")
	case fb.Feedback == "" || utf8.RuneCountInString(fb.Feedback) > maxFeedbackLength:
		return models.Feedback{}, apperr.Validation("invalid_feedback", "Feedback is required and must be at most 2000 characters")
	case fb.Rating < 1 || fb.Rating > 5:
		return models.Feedback{}, apperr.Validation("invalid_rating", "Rating must be between 1 and 5")
	}

	record, err := s.store.Create(ctx, models.TableFeedback, fb.Fields())
	if err != nil {
		return models.Feedback{}, writeError(err, "feedback")
	}
	s.logger.WithField("rating", fb.Rating).Info("Feedback received")
	return models.FeedbackFromRecord(record), nil
}

// Approved returns the newest approved entries for public display, without email
// addresses.
func (s *FeedbackService) Approved(ctx context.Context) ([]models.Feedback, error) {
	records, err := queryWithFallback(ctx, s.store, models.TableFeedback,
		recordstore.Eq(models.FieldFeedbackStatus, models.FeedbackApproved), s.metrics, s.logger)
	if err != nil {
		return nil, apperr.Upstream("Unable to load feedback", err)
	}
	out := newestFeedback(records)
	if len(out) > approvedLimit {
		out = out[:approvedLimit]
	}
	for i := range out {
		out[i].Email = ""
		out[i].Status = ""
	}
	return out, nil
}

// All returns every entry, newest first.
func (s *FeedbackService) All(ctx context.Context) ([]models.Feedback, error) {
	records, err := s.store.Query(ctx, models.TableFeedback, nil)
	if err != nil {
		return nil, apperr.Upstream("Unable to load feedback", err)
	}
	return newestFeedback(records), nil
}

func (s *FeedbackService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, models.TableFeedback, id); err != nil {
		return writeError(err, "feedback")
	}
	s.logger.WithField("feedback_id", id).Info("Feedback deleted")
	return nil
}

func newestFeedback(records []recordstore.Record) []models.Feedback {
	out := make([]models.Feedback, 0, len(records))
	for _, r := range records {
		out = append(out, models.FeedbackFromRecord(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
