package recurring

import (
	"strings"
	"time"
)

// Frequency is the recurrence cadence of an order.
type Frequency string

const (
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Biannual  Frequency = "biannual"
)

// Frequencies lists every supported cadence.
var Frequencies = []Frequency{Weekly, Biweekly, Monthly, Quarterly, Biannual}

func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Biweekly, Monthly, Quarterly, Biannual:
		return true
	}
	return false
}

// ParseFrequency accepts a cadence name case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", ErrUnknownFrequency
	}
	return f, nil
}

// Item is one catalog line of a recurring order.
//
// ProductName and SupplierName are snapshots taken when the template was
// authored and may drift from the live catalog. ProductID is the link used
// at execution time.
type Item struct {
	ProductID    string `json:"productId"`
	ProductName  string `json:"productName"`
	Quantity     int    `json:"quantity"`
	SupplierID   string `json:"supplierId"`
	SupplierName string `json:"supplierName"`
}

// Order is a recurring order template owned by one client.
type Order struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	ClientID          string     `json:"clientId"`
	Items             []Item     `json:"items"`
	Frequency         Frequency  `json:"frequency"`
	NextExecutionDate time.Time  `json:"nextExecutionDate"`
	LastExecutionDate *time.Time `json:"lastExecutionDate,omitempty"`
	IsActive          bool       `json:"isActive"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// IsDue reports whether the order is active and its due instant is at or before now.
func (o Order) IsDue(now time.Time) bool {
	return o.IsActive && !o.NextExecutionDate.After(now)
}

// Clone returns a deep copy.
func (o Order) Clone() Order {
	cp := o
	cp.Items = append([]Item(nil), o.Items...)
	if o.LastExecutionDate != nil {
		t := *o.LastExecutionDate
		cp.LastExecutionDate = &t
	}
	return cp
}

// CreateInput carries the user-supplied part of a new order.
// A zero StartDate arms the order one cadence period after today.
type CreateInput struct {
	Name      string
	Items     []Item
	Frequency Frequency
	StartDate time.Time
}

// Patch lists the fields Update may change. Nil fields are left as they are.
type Patch struct {
	Name              *string
	Items             []Item
	Frequency         *Frequency
	NextExecutionDate *time.Time
	IsActive          *bool
}
