package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"logitrack/config"
	"logitrack/pkg/logger"
	"logitrack/pkg/models"
	"logitrack/storage"
	"logitrack/storage/memory"
)

type recordedEvent struct {
	Type    string
	OrderID string
	Payload any
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Publish(_ context.Context, eventType, orderID string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Type: eventType, OrderID: orderID, Payload: payload})
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixedGeocoder struct{ loc models.Location }

func (g fixedGeocoder) Locate(context.Context, models.Order) (models.Location, error) {
	return g.loc, nil
}

type fixture struct {
	stg storage.IStorage
	kv  *memory.Store
	pub *recorder
	svc IServiceManager
}

var testSim = config.Simulation{
	TickInterval:     time.Millisecond,
	Step:             0.05,
	ArrivalThreshold: 0.001,
	DepotLat:         24.70,
	DepotLng:         46.67,
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := memory.New()
	stg := storage.New(kv, "logitrack_orders", logger.NewNop())
	pub := &recorder{}
	svc := NewWithGeocoder(stg, pub, logger.NewNop(), testSim, fixedGeocoder{loc: models.Location{Lat: 24.71, Lng: 46.68}})
	t.Cleanup(func() {
		svc.Delivery().StopAll()
		stg.Close()
	})
	return &fixture{stg: stg, kv: kv, pub: pub, svc: svc}
}

func strPtr(s string) *string { return &s }

func statusPtr(s models.OrderStatus) *models.OrderStatus { return &s }
