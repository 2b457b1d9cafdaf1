package service

import (
	"context"
	"math/rand"
	"sync"

	"logitrack/pkg/models"
)

// Geocoder resolves where an order is to be delivered.
type Geocoder interface {
	Locate(ctx context.Context, order models.Order) (models.Location, error)
}

// randomGeocoder places customers at a bounded random offset around a
// reference point. Demo only.
type randomGeocoder struct {
	ref    models.Location
	spread float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomGeocoder(ref models.Location, spread float64, seed int64) Geocoder {
	return &randomGeocoder{
		ref:    ref,
		spread: spread,
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

func (g *randomGeocoder) Locate(_ context.Context, _ models.Order) (models.Location, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return models.Location{
		Lat: g.ref.Lat + (g.rnd.Float64()-0.5)*g.spread,
		Lng: g.ref.Lng + (g.rnd.Float64()-0.5)*g.spread,
	}, nil
}
