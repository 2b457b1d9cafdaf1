package service

import (
	"context"
	"fmt"
	"time"

	"logitrack/pkg/events"
	"logitrack/pkg/logger"
	"logitrack/pkg/models"
	"logitrack/storage"
)

type LocationService interface {
	SetLocation(ctx context.Context, orderCode string, role models.Role, loc models.Location) (bool, error)
	SetLocationByID(ctx context.Context, orderID string, role models.Role, loc models.Location) (bool, error)
	GetLocations(ctx context.Context, orderID string) (driver, customer *models.Location, err error)
	Subscribe(orderID string, fn func(order models.Order)) (unsubscribe func())
}

type locationService struct {
	stg storage.IOrderStorage
	pub events.Publisher
	log logger.ILogger
	now func() time.Time
}

func NewLocationService(stg storage.IStorage, pub events.Publisher, log logger.ILogger) LocationService {
	return &locationService{
		stg: stg.Order(),
		pub: pub,
		log: log,
		now: time.Now,
	}
}

type locationPayload struct {
	OrderCode string          `json:"orderCode"`
	Role      models.Role     `json:"role"`
	Location  models.Location `json:"location"`
}

// SetLocation matches the order code exactly. An unknown code is not an
// error: the update is dropped, the store is left alone and false is
// returned.
func (s *locationService) SetLocation(ctx context.Context, orderCode string, role models.Role, loc models.Location) (bool, error) {
	return s.set(ctx, role, loc, logger.String("order_code", orderCode), func(o models.Order) bool {
		return o.OrderCode == orderCode
	})
}

// SetLocationByID is SetLocation keyed by the order id, which survives edits
// to the order code.
func (s *locationService) SetLocationByID(ctx context.Context, orderID string, role models.Role, loc models.Location) (bool, error) {
	return s.set(ctx, role, loc, logger.String("order_id", orderID), func(o models.Order) bool {
		return o.ID == orderID
	})
}

func (s *locationService) set(ctx context.Context, role models.Role, loc models.Location, key logger.Field, match func(models.Order) bool) (bool, error) {
	if !role.Valid() {
		return false, fmt.Errorf("%w: unknown role %q", models.ErrValidation, role)
	}

	var target models.Order
	found := false
	_, err := s.stg.Mutate(ctx, func(orders []models.Order) ([]models.Order, error) {
		for i := range orders {
			if !match(orders[i]) {
				continue
			}
			l := loc
			if role == models.RoleDriver {
				orders[i].DriverLocation = &l
			} else {
				orders[i].CustomerLocation = &l
			}
			orders[i].Touch(s.now())
			target = orders[i]
			found = true
			return orders, nil
		}
		return nil, storage.ErrSkipSave
	})
	if err != nil {
		s.log.Error("failed to set location", key, logger.Error(err))
		return false, err
	}
	if !found {
		s.log.Debug("location update for unknown order dropped", key)
		return false, nil
	}

	s.pub.Publish(ctx, events.EventLocationUpdated, target.ID, locationPayload{
		OrderCode: target.OrderCode,
		Role:      role,
		Location:  loc,
	})
	return true, nil
}

func (s *locationService) GetLocations(ctx context.Context, orderID string) (*models.Location, *models.Location, error) {
	orders, err := s.stg.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, o := range orders {
		if o.ID == orderID {
			o = o.Clone()
			return o.DriverLocation, o.CustomerLocation, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: id %s", models.ErrNotFound, orderID)
}

// Subscribe calls fn with the order's latest state each time the collection
// changes while the order exists.
func (s *locationService) Subscribe(orderID string, fn func(order models.Order)) func() {
	return s.stg.Subscribe(func(orders []models.Order) {
		for _, o := range orders {
			if o.ID == orderID {
				fn(o)
				return
			}
		}
	})
}
