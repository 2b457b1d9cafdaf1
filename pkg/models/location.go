package models

import "math"

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance is the planar Euclidean distance in degree space.
func (l Location) Distance(to Location) float64 {
	return math.Hypot(to.Lat-l.Lat, to.Lng-l.Lng)
}

// Toward moves l the given fraction of the way to target on each axis.
func (l Location) Toward(target Location, fraction float64) Location {
	return Location{
		Lat: l.Lat + (target.Lat-l.Lat)*fraction,
		Lng: l.Lng + (target.Lng-l.Lng)*fraction,
	}
}

type Role string

const (
	RoleDriver   Role = "driver"
	RoleCustomer Role = "customer"
)

func (r Role) Valid() bool {
	return r == RoleDriver || r == RoleCustomer
}
