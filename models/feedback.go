package models

import (
	"time"

	"github.com/birchwood-sourdough/orders/recordstore"
)

const (
	FieldFeedbackName   = "Name"
	FieldFeedbackEmail  = "Email"
	FieldFeedbackText   = "Feedback"
	FieldFeedbackRating = "Rating"
	FieldFeedbackStatus = "Status"

	FeedbackNew      = "New"
	FeedbackApproved = "Approved"
)

type Feedback struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Feedback  string    `json:"feedback"`
	Rating    int       `json:"rating"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (f Feedback) Fields() recordstore.Fields {
	out := recordstore.Fields{
		FieldFeedbackName:   f.Name,
		FieldFeedbackText:   f.Feedback,
		FieldFeedbackRating: f.Rating,
		FieldFeedbackStatus: f.Status,
	}
	if f.Email != "" {
		out[FieldFeedbackEmail] = f.Email
	}
	return out
}

func FeedbackFromRecord(r recordstore.Record) Feedback {
	return Feedback{
		ID:        r.ID,
		Name:      r.Fields.String(FieldFeedbackName),
		Email:     r.Fields.String(FieldFeedbackEmail),
		Feedback:  r.Fields.String(FieldFeedbackText),
		Rating:    r.Fields.Int(FieldFeedbackRating),
		Status:    r.Fields.String(FieldFeedbackStatus),
		CreatedAt: r.CreatedTime,
	}
}

// Settings and stock tables.
const (
	FieldSettingKey   = "Key"
	FieldSettingValue = "Value"

	SettingMaintenanceMode = "maintenance_mode"

	FieldStockDate = "Date"
	FieldStockMax  = "Max Loaves"
)
