package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"logitrack/config"
	"logitrack/pkg/events"
	"logitrack/pkg/logger"
	"logitrack/pkg/models"
)

type DeliveryService interface {
	// Start begins simulating a trip for the order. from overrides the
	// driver's starting point; nil resumes from the stored driver location,
	// or the depot when there is none.
	Start(ctx context.Context, orderID string, from *models.Location) (*Delivery, error)
	// Cancel stops a running trip and forgets an arrived one. It reports
	// whether a running trip was stopped.
	Cancel(orderID string) bool
	// Complete stops any running trip and marks the order Delivered.
	Complete(ctx context.Context, orderID string) (*models.Order, error)
	// Get returns the running trip for the order, or the arrived one until it
	// is completed, cancelled or restarted.
	Get(orderID string) (*Delivery, bool)
	Active() []string
	StopAll()
}

type deliveryService struct {
	orders OrderService
	feed   LocationService
	geo    Geocoder
	pub    events.Publisher
	log    logger.ILogger
	cfg    config.Simulation

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	active  map[string]*Delivery
	arrived map[string]*Delivery
}

func NewDeliveryService(orders OrderService, feed LocationService, geo Geocoder, pub events.Publisher, log logger.ILogger, cfg config.Simulation) DeliveryService {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 2 * time.Second
	}
	base, cancel := context.WithCancel(context.Background())
	return &deliveryService{
		orders:  orders,
		feed:    feed,
		geo:     geo,
		pub:     pub,
		log:     log,
		cfg:     cfg,
		base:    base,
		cancel:  cancel,
		active:  make(map[string]*Delivery),
		arrived: make(map[string]*Delivery),
	}
}

func (s *deliveryService) Start(ctx context.Context, orderID string, from *models.Location) (*Delivery, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	start := models.Location{Lat: s.cfg.DepotLat, Lng: s.cfg.DepotLng}
	switch {
	case from != nil:
		start = *from
	case order.DriverLocation != nil:
		start = *order.DriverLocation
	}

	d := newDelivery(*order, start, s.feed, s.cfg, s.log)

	s.mu.Lock()
	if _, ok := s.active[orderID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: order %s", models.ErrAlreadyRunning, order.OrderCode)
	}
	s.active[orderID] = d
	delete(s.arrived, orderID)
	s.mu.Unlock()

	if order.CustomerLocation == nil {
		if err := s.placeCustomer(ctx, *order); err != nil {
			d.Cancel()
			close(d.done)
			s.remove(d)
			close(d.released)
			return nil, err
		}
	}

	runCtx := d.start(s.base)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		d.run(runCtx)
		s.finish(d)
		close(d.released)
	}()

	s.log.Info("delivery started", logger.String("order_id", orderID), logger.String("order_code", order.OrderCode),
		logger.Float64("lat", start.Lat), logger.Float64("lng", start.Lng))
	s.pub.Publish(ctx, events.EventDeliveryStarted, orderID, start)
	return d, nil
}

func (s *deliveryService) placeCustomer(ctx context.Context, order models.Order) error {
	loc, err := s.geo.Locate(ctx, order)
	if err != nil {
		s.log.Error("failed to locate customer", logger.String("order_id", order.ID), logger.Error(err))
		return err
	}
	updated, err := s.feed.SetLocationByID(ctx, order.ID, models.RoleCustomer, loc)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("%w: id %s", models.ErrNotFound, order.ID)
	}
	return nil
}

func (s *deliveryService) Cancel(orderID string) bool {
	s.mu.Lock()
	d, ok := s.active[orderID]
	delete(s.arrived, orderID)
	s.mu.Unlock()
	if !ok {
		return false
	}
	return d.Cancel()
}

func (s *deliveryService) Complete(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	d, ok := s.active[orderID]
	s.mu.Unlock()
	if ok {
		d.Cancel()
		<-d.released
	}
	s.mu.Lock()
	delete(s.arrived, orderID)
	s.mu.Unlock()
	return s.orders.CompleteDelivery(ctx, orderID)
}

func (s *deliveryService) Get(orderID string) (*Delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.active[orderID]; ok {
		return d, true
	}
	d, ok := s.arrived[orderID]
	return d, ok
}

func (s *deliveryService) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll cancels every running trip and waits for the tick loops to exit.
func (s *deliveryService) StopAll() {
	s.cancel()
	s.wg.Wait()
}

func (s *deliveryService) finish(d *Delivery) {
	defer s.remove(d)

	ctx := context.Background()
	switch d.State() {
	case StateArrived:
		pos := d.Position()
		s.log.Info("driver arrived", logger.String("order_id", d.OrderID), logger.String("order_code", d.OrderCode),
			logger.Int("ticks", d.Ticks()))
		s.pub.Publish(ctx, events.EventDeliveryArrived, d.OrderID, pos)
	case StateCancelled:
		s.log.Info("delivery cancelled", logger.String("order_id", d.OrderID), logger.String("order_code", d.OrderCode))
		s.pub.Publish(ctx, events.EventDeliveryCancelled, d.OrderID, d.Position())
	}
}

func (s *deliveryService) remove(d *Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[d.OrderID] == d {
		delete(s.active, d.OrderID)
		if d.State() == StateArrived {
			s.arrived[d.OrderID] = d
		}
	}
}
