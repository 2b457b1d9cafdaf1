package models

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusProcessing     OrderStatus = "Processing"
	StatusShipped        OrderStatus = "Shipped"
	StatusOutForDelivery OrderStatus = "Out for Delivery"
	StatusDelivered      OrderStatus = "Delivered"
	StatusCancelled      OrderStatus = "Cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusShipped, StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order is persisted as one element of a JSON array. UpdatedAt is Unix
// milliseconds.
type Order struct {
	ID               string      `json:"id"`
	OrderCode        string      `json:"orderCode"`
	CustomerName     string      `json:"customerName"`
	City             string      `json:"city"`
	Quantity         int         `json:"quantity"`
	Status           OrderStatus `json:"status"`
	CustomerLocation *Location   `json:"customerLocation,omitempty"`
	DriverLocation   *Location   `json:"driverLocation,omitempty"`
	UpdatedAt        int64       `json:"updatedAt"`
}

func (o *Order) Touch(now time.Time) {
	o.UpdatedAt = now.UnixMilli()
}

func (o Order) UpdatedTime() time.Time {
	return time.UnixMilli(o.UpdatedAt)
}

// Matches reports whether code equals the order code ignoring case and
// surrounding whitespace.
func (o Order) Matches(code string) bool {
	return strings.EqualFold(strings.TrimSpace(o.OrderCode), strings.TrimSpace(code))
}

// Clone returns a copy that shares no location pointers with o.
func (o Order) Clone() Order {
	if o.CustomerLocation != nil {
		l := *o.CustomerLocation
		o.CustomerLocation = &l
	}
	if o.DriverLocation != nil {
		l := *o.DriverLocation
		o.DriverLocation = &l
	}
	return o
}

// OrderFields carries caller input for create and update. Nil fields are left
// untouched on update. Quantity accepts anything numeric-looking ("3", 3, 3.0).
type OrderFields struct {
	OrderCode    *string      `json:"orderCode,omitempty"`
	CustomerName *string      `json:"customerName,omitempty"`
	City         *string      `json:"city,omitempty"`
	Quantity     any          `json:"quantity,omitempty"`
	Status       *OrderStatus `json:"status,omitempty"`
}
