package service

import (
	"time"

	"logitrack/config"
	"logitrack/pkg/events"
	"logitrack/pkg/logger"
	"logitrack/pkg/models"
	"logitrack/storage"
)

type IServiceManager interface {
	Order() OrderService
	Location() LocationService
	Delivery() DeliveryService
}

type service struct {
	orderService    OrderService
	locationService LocationService
	deliveryService DeliveryService
}

func New(stg storage.IStorage, pub events.Publisher, log logger.ILogger, sim config.Simulation) IServiceManager {
	geo := NewRandomGeocoder(models.Location{Lat: sim.RefLat, Lng: sim.RefLng}, sim.Spread, time.Now().UnixNano())
	return NewWithGeocoder(stg, pub, log, sim, geo)
}

func NewWithGeocoder(stg storage.IStorage, pub events.Publisher, log logger.ILogger, sim config.Simulation, geo Geocoder) IServiceManager {
	orders := NewOrderService(stg, pub, log)
	locations := NewLocationService(stg, pub, log)
	return &service{
		orderService:    orders,
		locationService: locations,
		deliveryService: NewDeliveryService(orders, locations, geo, pub, log, sim),
	}
}

func (s *service) Order() OrderService {
	return s.orderService
}

func (s *service) Location() LocationService {
	return s.locationService
}

func (s *service) Delivery() DeliveryService {
	return s.deliveryService
}
