package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"logitrack/config"
	"logitrack/pkg/logger"
	"logitrack/pkg/models"
)

type DeliveryState string

const (
	StateIdle      DeliveryState = "idle"
	StateRunning   DeliveryState = "running"
	StateArrived   DeliveryState = "arrived"
	StateCancelled DeliveryState = "cancelled"
)

// Delivery is one simulated trip: a driver position nudged toward the
// order's customer location on every tick until it is close enough.
// Arrival does not change the order status.
type Delivery struct {
	OrderID   string
	OrderCode string

	feed LocationService
	cfg  config.Simulation
	log  logger.ILogger

	mu       sync.Mutex
	state    DeliveryState
	driver   models.Location
	ticks    int
	arrived  chan struct{}
	done     chan struct{}
	released chan struct{}
	stop     context.CancelFunc
}

func newDelivery(order models.Order, from models.Location, feed LocationService, cfg config.Simulation, log logger.ILogger) *Delivery {
	return &Delivery{
		OrderID:   order.ID,
		OrderCode: order.OrderCode,
		feed:      feed,
		cfg:       cfg,
		log:       log.With(logger.String("order_id", order.ID), logger.String("order_code", order.OrderCode)),
		state:     StateIdle,
		driver:    from,
		arrived:   make(chan struct{}),
		done:      make(chan struct{}),
		released:  make(chan struct{}),
		stop:      func() {},
	}
}

func (d *Delivery) State() DeliveryState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Delivery) Position() models.Location {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.driver
}

func (d *Delivery) Ticks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks
}

// Arrived is closed when the driver reaches the customer.
func (d *Delivery) Arrived() <-chan struct{} { return d.arrived }

// Done is closed when the tick loop has exited, whatever the reason.
func (d *Delivery) Done() <-chan struct{} { return d.done }

// Cancel stops the trip. Once it returns no further position is written;
// positions already written stay as they are.
func (d *Delivery) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cancelled := false
	if d.state == StateIdle || d.state == StateRunning {
		d.state = StateCancelled
		cancelled = true
	}
	d.stop()
	return cancelled
}

// Step runs one tick and reports whether the driver has arrived. A tick is
// skipped when the order has no customer location yet; a missing order is
// reported as models.ErrNotFound.
func (d *Delivery) Step(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateRunning {
		return d.state == StateArrived, nil
	}

	_, customer, err := d.feed.GetLocations(ctx, d.OrderID)
	if err != nil {
		return false, err
	}
	if customer == nil {
		return false, nil
	}

	next := d.driver.Toward(*customer, d.cfg.Step)
	updated, err := d.feed.SetLocationByID(ctx, d.OrderID, models.RoleDriver, next)
	if err != nil {
		return false, err
	}
	if !updated {
		return false, fmt.Errorf("%w: id %s", models.ErrNotFound, d.OrderID)
	}
	d.driver = next
	d.ticks++

	dist := d.driver.Distance(*customer)
	d.log.Debug("driver moved",
		logger.Float64("lat", d.driver.Lat), logger.Float64("lng", d.driver.Lng), logger.Float64("distance", dist))

	if dist < d.cfg.ArrivalThreshold {
		d.state = StateArrived
		close(d.arrived)
		d.stop()
		return true, nil
	}
	return false, nil
}

func (d *Delivery) start(ctx context.Context) context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	d.stop = cancel
	if d.state == StateIdle {
		d.state = StateRunning
	} else {
		cancel()
	}
	return ctx
}

func (d *Delivery) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			if d.state == StateRunning {
				d.state = StateCancelled
			}
			d.mu.Unlock()
			return
		case <-ticker.C:
			arrived, err := d.Step(ctx)
			if errors.Is(err, models.ErrNotFound) {
				d.log.Warning("order gone, stopping delivery", logger.Error(err))
				d.Cancel()
				return
			}
			if err != nil {
				d.log.Warning("delivery tick failed", logger.Error(err))
				continue
			}
			if arrived {
				return
			}
		}
	}
}
