package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/pkg/events"
	"logitrack/pkg/logger"
	"logitrack/pkg/models"
)

var (
	driverStart = models.Location{Lat: 24.70, Lng: 46.67}
	customerLoc = models.Location{Lat: 24.71, Lng: 46.68}
)

func createOutForDelivery(t *testing.T, f *fixture, code string) *models.Order {
	t.Helper()
	ctx := context.Background()
	o, err := f.svc.Order().Create(ctx, models.OrderFields{OrderCode: strPtr(code), CustomerName: strPtr("Alice"), Quantity: 3})
	require.NoError(t, err)
	o, err = f.svc.Order().Update(ctx, o.ID, models.OrderFields{Status: statusPtr(models.StatusOutForDelivery)})
	require.NoError(t, err)
	return o
}

func TestDelivery_StepConvergesAndHalts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := createOutForDelivery(t, f, "ORD-1")
	_, err := f.svc.Location().SetLocation(ctx, o.OrderCode, models.RoleCustomer, customerLoc)
	require.NoError(t, err)

	d := newDelivery(*o, driverStart, f.svc.Location(), testSim, logger.NewNop())
	d.start(ctx)
	require.Equal(t, StateRunning, d.State())

	prev := driverStart.Distance(customerLoc)
	arrived := false
	for i := 0; i < 500 && !arrived; i++ {
		arrived, err = d.Step(ctx)
		require.NoError(t, err)

		driver, _, err := f.svc.Location().GetLocations(ctx, o.ID)
		require.NoError(t, err)
		require.NotNil(t, driver)
		dist := driver.Distance(customerLoc)
		require.Less(t, dist, prev, "tick %d", i)
		prev = dist
	}
	require.True(t, arrived)
	assert.Less(t, prev, 0.001)
	assert.Equal(t, StateArrived, d.State())
	assert.Equal(t, 52, d.Ticks())

	select {
	case <-d.Arrived():
	default:
		t.Fatal("arrival not signalled")
	}

	snapshot, _, err := f.kv.Get(ctx, "logitrack_orders")
	require.NoError(t, err)
	again, err := d.Step(ctx)
	require.NoError(t, err)
	assert.True(t, again)
	after, _, err := f.kv.Get(ctx, "logitrack_orders")
	require.NoError(t, err)
	assert.Equal(t, snapshot, after, "no position writes after arrival")
	assert.Equal(t, 52, d.Ticks())

	stored, err := f.svc.Order().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOutForDelivery, stored.Status)
}

func TestDelivery_StepSkipsWithoutCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := createOutForDelivery(t, f, "ORD-1")

	d := newDelivery(*o, driverStart, f.svc.Location(), testSim, logger.NewNop())
	d.start(ctx)

	arrived, err := d.Step(ctx)
	require.NoError(t, err)
	assert.False(t, arrived)
	assert.Zero(t, d.Ticks())

	require.NoError(t, f.svc.Order().Delete(ctx, o.ID))
	_, err = d.Step(ctx)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDelivery_FollowsOrderAfterCodeChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := createOutForDelivery(t, f, "ORD-1")
	_, err := f.svc.Location().SetLocation(ctx, o.OrderCode, models.RoleCustomer, customerLoc)
	require.NoError(t, err)

	d := newDelivery(*o, driverStart, f.svc.Location(), testSim, logger.NewNop())
	d.start(ctx)
	_, err = d.Step(ctx)
	require.NoError(t, err)

	_, err = f.svc.Order().Update(ctx, o.ID, models.OrderFields{OrderCode: strPtr("ORD-1B")})
	require.NoError(t, err)

	arrived := false
	for i := 0; i < 500 && !arrived; i++ {
		arrived, err = d.Step(ctx)
		require.NoError(t, err)
	}
	require.True(t, arrived)

	driver, _, err := f.svc.Location().GetLocations(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, driver)
	assert.Equal(t, d.Position(), *driver)
	assert.Less(t, driver.Distance(customerLoc), 0.001)
}

func TestDelivery_RunStopsWhenOrderDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := createOutForDelivery(t, f, "ORD-1")
	_, err := f.svc.Location().SetLocation(ctx, o.OrderCode, models.RoleCustomer, customerLoc)
	require.NoError(t, err)

	d := newDelivery(*o, driverStart, f.svc.Location(), testSim, logger.NewNop())
	runCtx := d.start(ctx)
	require.NoError(t, f.svc.Order().Delete(ctx, o.ID))

	go d.run(runCtx)
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("tick loop kept running for a deleted order")
	}
	assert.Equal(t, StateCancelled, d.State())
	assert.Zero(t, d.Ticks())
}

func TestDelivery_CancelStopsWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := createOutForDelivery(t, f, "ORD-1")
	_, err := f.svc.Location().SetLocation(ctx, o.OrderCode, models.RoleCustomer, customerLoc)
	require.NoError(t, err)

	d := newDelivery(*o, driverStart, f.svc.Location(), testSim, logger.NewNop())
	d.start(ctx)
	_, err = d.Step(ctx)
	require.NoError(t, err)

	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())
	assert.Equal(t, StateCancelled, d.State())

	last, _, err := f.svc.Location().GetLocations(ctx, o.ID)
	require.NoError(t, err)
	_, err = d.Step(ctx)
	require.NoError(t, err)
	now, _, err := f.svc.Location().GetLocations(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, last, now)
	assert.Equal(t, 1, d.Ticks())
}

func TestDeliveryService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	o, err := f.svc.Order().Create(ctx, models.OrderFields{
		OrderCode:    strPtr("ORD-1"),
		CustomerName: strPtr("Alice"),
		Quantity:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, o.Status)
	assert.Equal(t, "Unknown", o.City)

	_, err = f.svc.Order().Update(ctx, o.ID, models.OrderFields{Status: statusPtr(models.StatusOutForDelivery)})
	require.NoError(t, err)

	d, err := f.svc.Delivery().Start(ctx, o.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{o.ID}, f.svc.Delivery().Active())

	// customer location synthesized on start
	_, customer, err := f.svc.Location().GetLocations(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, customerLoc, *customer)

	select {
	case <-d.Arrived():
	case <-time.After(5 * time.Second):
		t.Fatal("driver never arrived")
	}
	<-d.Done()

	driver, customer, err := f.svc.Location().GetLocations(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, driver)
	assert.Less(t, driver.Distance(*customer), 0.001)
	assert.Equal(t, d.Position(), *driver)

	require.Eventually(t, func() bool { return len(f.svc.Delivery().Active()) == 0 }, time.Second, 5*time.Millisecond)

	done, err := f.svc.Delivery().Complete(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, done.Status)
	assert.Equal(t, driver, done.DriverLocation)
	assert.Equal(t, customer, done.CustomerLocation)

	types := f.pub.types()
	assert.Contains(t, types, events.EventDeliveryStarted)
	assert.Contains(t, types, events.EventDeliveryArrived)
	assert.Contains(t, types, events.EventDeliveryCompleted)
}

func TestDeliveryService_ArrivedStaysVisible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := createOutForDelivery(t, f, "ORD-1")

	d, err := f.svc.Delivery().Start(ctx, o.ID, nil)
	require.NoError(t, err)
	select {
	case <-d.Arrived():
	case <-time.After(5 * time.Second):
		t.Fatal("driver never arrived")
	}
	require.Eventually(t, func() bool { return len(f.svc.Delivery().Active()) == 0 }, time.Second, 5*time.Millisecond)

	got, ok := f.svc.Delivery().Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, StateArrived, got.State())

	_, err = f.svc.Delivery().Complete(ctx, o.ID)
	require.NoError(t, err)
	_, ok = f.svc.Delivery().Get(o.ID)
	assert.False(t, ok)
}

func TestDeliveryService_CancelForgetsArrived(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := createOutForDelivery(t, f, "ORD-1")

	d, err := f.svc.Delivery().Start(ctx, o.ID, nil)
	require.NoError(t, err)
	<-d.Done()
	require.Eventually(t, func() bool {
		got, ok := f.svc.Delivery().Get(o.ID)
		return ok && got.State() == StateArrived && len(f.svc.Delivery().Active()) == 0
	}, time.Second, 5*time.Millisecond)

	assert.False(t, f.svc.Delivery().Cancel(o.ID))
	_, ok := f.svc.Delivery().Get(o.ID)
	assert.False(t, ok)
}

func TestDeliveryService_StartTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := createOutForDelivery(t, f, "ORD-1")

	slow := testSim
	slow.TickInterval = time.Hour
	svc := NewDeliveryService(f.svc.Order(), f.svc.Location(), fixedGeocoder{loc: customerLoc}, f.pub, logger.NewNop(), slow)
	defer svc.StopAll()

	_, err := svc.Start(ctx, o.ID, &driverStart)
	require.NoError(t, err)
	_, err = svc.Start(ctx, o.ID, nil)
	assert.ErrorIs(t, err, models.ErrAlreadyRunning)

	_, err = svc.Start(ctx, "missing", nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeliveryService_CancelKeepsPositions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := createOutForDelivery(t, f, "ORD-1")
	_, err := f.svc.Location().SetLocation(ctx, o.OrderCode, models.RoleDriver, driverStart)
	require.NoError(t, err)

	slow := testSim
	slow.TickInterval = time.Hour
	svc := NewDeliveryService(f.svc.Order(), f.svc.Location(), fixedGeocoder{loc: customerLoc}, f.pub, logger.NewNop(), slow)
	defer svc.StopAll()

	d, err := svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, driverStart, d.Position())

	assert.True(t, svc.Cancel(o.ID))
	<-d.Done()
	assert.Equal(t, StateCancelled, d.State())
	assert.False(t, svc.Cancel("missing"))
	require.Eventually(t, func() bool { return len(svc.Active()) == 0 }, time.Second, 5*time.Millisecond)

	driver, customer, err := f.svc.Location().GetLocations(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, &driverStart, driver)
	assert.Equal(t, &customerLoc, customer)

	stored, err := f.svc.Order().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOutForDelivery, stored.Status)
}

func TestDeliveryService_StopAllCancels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := createOutForDelivery(t, f, "ORD-1")

	slow := testSim
	slow.TickInterval = time.Hour
	svc := NewDeliveryService(f.svc.Order(), f.svc.Location(), fixedGeocoder{loc: customerLoc}, f.pub, logger.NewNop(), slow)

	d, err := svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)
	svc.StopAll()

	assert.Equal(t, StateCancelled, d.State())
	assert.Empty(t, svc.Active())
	assert.Contains(t, f.pub.types(), events.EventDeliveryCancelled)
}
