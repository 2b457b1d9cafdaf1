package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"logitrack/pkg/events"
	"logitrack/pkg/logger"
	"logitrack/pkg/models"
	"logitrack/storage"
)

const defaultCity = "Unknown"

type OrderService interface {
	Create(ctx context.Context, fields models.OrderFields) (*models.Order, error)
	Update(ctx context.Context, id string, fields models.OrderFields) (*models.Order, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Order, error)
	FindByCode(ctx context.Context, code string) (*models.Order, error)
	List(ctx context.Context, filter string) ([]models.Order, error)
	ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	CompleteDelivery(ctx context.Context, id string) (*models.Order, error)
}

type orderService struct {
	stg storage.IOrderStorage
	pub events.Publisher
	log logger.ILogger
	now func() time.Time
}

func NewOrderService(stg storage.IStorage, pub events.Publisher, log logger.ILogger) OrderService {
	return &orderService{
		stg: stg.Order(),
		pub: pub,
		log: log,
		now: time.Now,
	}
}

// Create rejects a code that is already stored with the exact same spelling.
// Lookups by code ignore case, so "ORD-1" and "ord-1" can coexist here.
func (s *orderService) Create(ctx context.Context, fields models.OrderFields) (*models.Order, error) {
	code := trimmed(fields.OrderCode)
	name := trimmed(fields.CustomerName)
	if code == "" || name == "" {
		return nil, fmt.Errorf("%w: orderCode and customerName are required", models.ErrValidation)
	}

	status := models.StatusProcessing
	if fields.Status != nil && *fields.Status != "" {
		if !fields.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, *fields.Status)
		}
		status = *fields.Status
	}

	city := trimmed(fields.City)
	if city == "" {
		city = defaultCity
	}

	order := models.Order{
		ID:           uuid.NewString(),
		OrderCode:    code,
		CustomerName: name,
		City:         city,
		Quantity:     parseQuantity(fields.Quantity),
		Status:       status,
	}
	order.Touch(s.now())

	_, err := s.stg.Mutate(ctx, func(orders []models.Order) ([]models.Order, error) {
		for _, o := range orders {
			if o.OrderCode == order.OrderCode {
				return nil, fmt.Errorf("%w: %s", models.ErrDuplicateCode, order.OrderCode)
			}
		}
		return append(orders, order), nil
	})
	if err != nil {
		s.log.Warning("failed to create order", logger.String("order_code", code), logger.Error(err))
		return nil, err
	}

	s.log.Info("order created", logger.String("order_id", order.ID), logger.String("order_code", order.OrderCode))
	s.pub.Publish(ctx, events.EventOrderCreated, order.ID, order)
	return &order, nil
}

// Update merges the non-nil fields into the order with the given id. The
// order code is taken as given: uniqueness is only checked on Create.
func (s *orderService) Update(ctx context.Context, id string, fields models.OrderFields) (*models.Order, error) {
	if fields.Status != nil && !fields.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, *fields.Status)
	}
	if fields.CustomerName != nil && strings.TrimSpace(*fields.CustomerName) == "" {
		return nil, fmt.Errorf("%w: customerName must not be empty", models.ErrValidation)
	}

	updated, err := s.modify(ctx, id, func(o *models.Order) {
		if fields.OrderCode != nil && strings.TrimSpace(*fields.OrderCode) != "" {
			o.OrderCode = strings.TrimSpace(*fields.OrderCode)
		}
		if fields.CustomerName != nil {
			o.CustomerName = strings.TrimSpace(*fields.CustomerName)
		}
		if fields.City != nil {
			o.City = strings.TrimSpace(*fields.City)
		}
		if fields.Quantity != nil {
			o.Quantity = parseQuantity(fields.Quantity)
		}
		if fields.Status != nil {
			o.Status = *fields.Status
		}
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order updated", logger.String("order_id", id), logger.String("status", string(updated.Status)))
	s.pub.Publish(ctx, events.EventOrderUpdated, id, updated)
	return updated, nil
}

func (s *orderService) Delete(ctx context.Context, id string) error {
	var removed bool
	_, err := s.stg.Mutate(ctx, func(orders []models.Order) ([]models.Order, error) {
		out := make([]models.Order, 0, len(orders))
		for _, o := range orders {
			if o.ID == id {
				removed = true
				continue
			}
			out = append(out, o)
		}
		if !removed {
			return nil, storage.ErrSkipSave
		}
		return out, nil
	})
	if err != nil {
		s.log.Error("failed to delete order", logger.String("order_id", id), logger.Error(err))
		return err
	}
	if removed {
		s.log.Info("order deleted", logger.String("order_id", id))
		s.pub.Publish(ctx, events.EventOrderDeleted, id, map[string]string{"id": id})
	}
	return nil
}

func (s *orderService) Get(ctx context.Context, id string) (*models.Order, error) {
	orders, err := s.stg.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, fmt.Errorf("%w: id %s", models.ErrNotFound, id)
}

func (s *orderService) FindByCode(ctx context.Context, code string) (*models.Order, error) {
	orders, err := s.stg.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.Matches(code) {
			return &o, nil
		}
	}
	return nil, fmt.Errorf("%w: code %q", models.ErrNotFound, strings.TrimSpace(code))
}

func (s *orderService) List(ctx context.Context, filter string) ([]models.Order, error) {
	orders, err := s.stg.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if containsIgnoreCase(o.OrderCode, filter) || containsIgnoreCase(o.CustomerName, filter) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *orderService) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	orders, err := s.stg.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Order, 0)
	for _, o := range orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

// CompleteDelivery is the explicit hand-over confirmation. Locations stay as
// they were last written.
func (s *orderService) CompleteDelivery(ctx context.Context, id string) (*models.Order, error) {
	updated, err := s.modify(ctx, id, func(o *models.Order) {
		o.Status = models.StatusDelivered
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("delivery completed", logger.String("order_id", id), logger.String("order_code", updated.OrderCode))
	s.pub.Publish(ctx, events.EventDeliveryCompleted, id, updated)
	return updated, nil
}

func (s *orderService) modify(ctx context.Context, id string, apply func(o *models.Order)) (*models.Order, error) {
	var updated models.Order
	_, err := s.stg.Mutate(ctx, func(orders []models.Order) ([]models.Order, error) {
		for i := range orders {
			if orders[i].ID != id {
				continue
			}
			apply(&orders[i])
			orders[i].Touch(s.now())
			updated = orders[i]
			return orders, nil
		}
		return nil, fmt.Errorf("%w: id %s", models.ErrNotFound, id)
	})
	if err != nil {
		s.log.Warning("failed to modify order", logger.String("order_id", id), logger.Error(err))
		return nil, err
	}
	return &updated, nil
}

// parseQuantity accepts numbers and numeric strings; anything else, and
// anything below one, becomes 1.
func parseQuantity(v any) int {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	q, err := cast.ToIntE(v)
	if err != nil || q < 1 {
		return 1
	}
	return q
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
