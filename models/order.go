package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/birchwood-sourdough/orders/recordstore"
)

// Table names in the record store.
const (
	TableOrders   = "Orders"
	TableStock    = "Stock"
	TableSettings = "Settings"
	TableFeedback = "Feedback"
)

// Order field names in the record store.
const (
	FieldCustomerName   = "Customer Name"
	FieldContactInfo    = "Contact Info"
	FieldPickupLocation = "Pickup Location"
	FieldPickupDay      = "Pickup Day"
	FieldNumLoaves      = "Number of Loaves"
	FieldStatus         = "Status"
	FieldOrderReference = "Order Reference"
	FieldTotalAmount    = "Total Amount"
	FieldOrderDate      = "Order Date"
)

// DayLayout is the pickup day format.
const DayLayout = "2006-01-02"

type Order struct {
	ID             string      `json:"id"`
	CustomerName   string      `json:"customerName"`
	ContactInfo    string      `json:"contactInfo"`
	PickupLocation string      `json:"pickupLocation,omitempty"`
	PickupDay      string      `json:"pickupDay"`
	Quantity       int         `json:"numLoaves"`
	Status         OrderStatus `json:"status"`
	OrderReference string      `json:"orderReference"`
	TotalAmount    float64     `json:"totalAmount"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Fields maps the order to record-store fields. The id is not a field.
func (o Order) Fields() recordstore.Fields {
	f := recordstore.Fields{
		FieldCustomerName:   o.CustomerName,
		FieldContactInfo:    o.ContactInfo,
		FieldPickupDay:      o.PickupDay,
		FieldNumLoaves:      o.Quantity,
		FieldStatus:         string(o.Status),
		FieldOrderReference: o.OrderReference,
		FieldTotalAmount:    o.TotalAmount,
	}
	if o.PickupLocation != "" {
		f[FieldPickupLocation] = o.PickupLocation
	}
	if !o.CreatedAt.IsZero() {
		f[FieldOrderDate] = o.CreatedAt.UTC().Format(time.RFC3339)
	}
	return f
}

// OrderFromRecord maps a stored record back to an Order. Legacy status values are read as
// their current equivalents; the creation time falls back to the record's own timestamp.
func OrderFromRecord(r recordstore.Record) Order {
	o := Order{
		ID:             r.ID,
		CustomerName:   r.Fields.String(FieldCustomerName),
		ContactInfo:    r.Fields.String(FieldContactInfo),
		PickupLocation: r.Fields.String(FieldPickupLocation),
		PickupDay:      r.Fields.String(FieldPickupDay),
		Quantity:       r.Fields.Int(FieldNumLoaves),
		Status:         NormalizeStatus(r.Fields.String(FieldStatus)),
		OrderReference: r.Fields.String(FieldOrderReference),
		TotalAmount:    r.Fields.Float(FieldTotalAmount),
		CreatedAt:      r.Fields.Time(FieldOrderDate),
	}
	// Some stores hand back a full timestamp for date fields.
	if len(o.PickupDay) > len(DayLayout) {
		o.PickupDay = o.PickupDay[:len(DayLayout)]
	}
	// Older records store only the date.
	dateOnly := len(r.Fields.String(FieldOrderDate)) == len(DayLayout)
	if (o.CreatedAt.IsZero() || dateOnly) && !r.CreatedTime.IsZero() {
		o.CreatedAt = r.CreatedTime
	}
	return o
}

// OrderReference builds "<NAME6>-<MMDD>-<SUFFIX>" from the customer's name, the creation
// date and a random suffix.
func OrderReference(customerName string, created time.Time, suffix string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(customerName) {
		if b.Len() == 6 {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		name = "ORDER"
	}
	return name + "-" + created.Format("0102") + "-" + strings.ToUpper(suffix)
}

// DailyCapacity is the derived per-day loaf budget.
type DailyCapacity struct {
	Date      string `json:"date"`
	Max       int    `json:"max"`
	Committed int    `json:"committed"`
	Remaining int    `json:"remaining"`
}
