package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

func strPtr(s string) *string { return &s }

func TestRegisterCar(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	car, err := f.planner.RegisterCar(ctx, strPtr("owner-1"), models.RegisterCarRequest{
		LicensePlate:   " ab-123-cd ",
		Make:           "Peugeot",
		InitialMileage: int64Ptr(42000),
	})
	require.NoError(t, err)
	assert.Equal(t, "AB-123-CD", car.LicensePlate)
	require.NotNil(t, car.OwnerID)
	assert.Equal(t, "owner-1", *car.OwnerID)

	latest, err := f.store.LatestMileage(ctx, car.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(42000), latest.Value)

	_, err = f.planner.RegisterCar(ctx, nil, models.RegisterCarRequest{LicensePlate: "AB-123-CD", InitialMileage: int64Ptr(0)})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.planner.RegisterCar(ctx, nil, models.RegisterCarRequest{LicensePlate: "ZZ-1"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.planner.RegisterCar(ctx, nil, models.RegisterCarRequest{LicensePlate: "ZZ-2", InitialMileage: int64Ptr(-1)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.planner.RegisterCar(ctx, nil, models.RegisterCarRequest{
		LicensePlate:   "ZZ-3",
		InitialMileage: int64Ptr(0),
		ZoneID:         strPtr("nowhere"),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLogMaintenance(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	car := f.registerCar(t, "LM-1", 1000)
	f.clock.Advance(time.Hour)

	repair, err := f.planner.LogMaintenance(ctx, car.ID, models.LogMaintenanceRequest{
		Type:        models.CorrectiveMaintenance,
		Description: "Pare-brise",
		Date:        f.clock.Now(),
		Mileage:     int64Ptr(3000),
		Cost:        float64Ptr(350),
		InvoiceURL:  "https://invoices.example/42.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, repair.Status)
	assert.Nil(t, repair.RuleID)

	oil, err := f.planner.LogMaintenance(ctx, car.ID, models.LogMaintenanceRequest{
		Type:    models.PreventiveMaintenance,
		RuleID:  f.rule.ID,
		Date:    f.clock.Now(),
		Mileage: int64Ptr(3000),
		Cost:    float64Ptr(60),
	})
	require.NoError(t, err)
	assert.Equal(t, "VIDANGE", oil.Description)
	require.NotNil(t, oil.RuleID)
	assert.Equal(t, f.rule.ID, *oil.RuleID)

	latest, err := f.store.LatestMileage(ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), latest.Value)
	assert.Len(t, f.events.ofType(events.MaintenanceLogged), 2)

	_, err = f.planner.LogMaintenance(ctx, car.ID, models.LogMaintenanceRequest{
		Type:    models.PreventiveMaintenance,
		RuleID:  "unknown",
		Date:    f.clock.Now(),
		Mileage: int64Ptr(3000),
		Cost:    float64Ptr(0),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.planner.LogMaintenance(ctx, car.ID, models.LogMaintenanceRequest{
		Type:    models.CorrectiveMaintenance,
		Date:    f.clock.Now(),
		Mileage: int64Ptr(3000),
		Cost:    float64Ptr(0),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.planner.LogMaintenance(ctx, car.ID, models.LogMaintenanceRequest{
		Type:        models.CorrectiveMaintenance,
		Description: "Pneus",
		Date:        f.clock.Now(),
		Mileage:     int64Ptr(2000),
		Cost:        float64Ptr(0),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.planner.LogMaintenance(ctx, "missing", models.LogMaintenanceRequest{
		Type:        models.CorrectiveMaintenance,
		Description: "Pneus",
		Date:        f.clock.Now(),
		Mileage:     int64Ptr(2000),
		Cost:        float64Ptr(0),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistory(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	car := f.registerCar(t, "H-1", 0)

	for i, mileage := range []int64{1000, 2000, 3000} {
		_, err := f.planner.LogMaintenance(ctx, car.ID, models.LogMaintenanceRequest{
			Type:        models.CorrectiveMaintenance,
			Description: "Repair",
			Date:        f.clock.Now().AddDate(0, 0, i+1),
			Mileage:     int64Ptr(mileage),
			Cost:        float64Ptr(10),
		})
		require.NoError(t, err)
	}

	history, err := f.planner.History(ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{3000, 2000, 1000}, mileages(history))

	_, err = f.planner.History(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOverviewAndAccess(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	zone := &models.Zone{Name: "Sud", ChefParkID: "chef-1"}
	require.NoError(t, f.store.InsertZone(ctx, zone))

	managed, err := f.planner.RegisterCar(ctx, nil, models.RegisterCarRequest{
		LicensePlate: "OV-1", InitialMileage: int64Ptr(0), ZoneID: &zone.ID,
	})
	require.NoError(t, err)
	owned, err := f.planner.RegisterCar(ctx, strPtr("owner-1"), models.RegisterCarRequest{
		LicensePlate: "OV-2", InitialMileage: int64Ptr(0),
	})
	require.NoError(t, err)

	f.recordMileage(t, managed.ID, 25000)
	f.recordMileage(t, owned.ID, 9500)
	_, err = f.planner.PlanDue(ctx, managed.ID)
	require.NoError(t, err)
	_, err = f.planner.PlanDue(ctx, owned.ID)
	require.NoError(t, err)

	admin := &models.User{ID: "admin-1", Role: models.RoleAdmin}
	chef := &models.User{ID: "chef-1", Role: models.RoleChefPark}
	owner := &models.User{ID: "owner-1", Role: models.RoleOwner}

	scope, ok := CarScope(admin)
	require.True(t, ok)
	all, err := f.planner.Overview(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, all.Overdue, 2)
	assert.Len(t, all.Upcoming, 1)
	assert.Equal(t, "OV-2", all.Upcoming[0].Car.LicensePlate)
	assert.Nil(t, all.Upcoming[0].Maintenance.Car)

	scope, _ = CarScope(chef)
	mine, err := f.planner.Overview(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, mine.Overdue, 2)
	assert.Empty(t, mine.Upcoming)

	scope, _ = CarScope(owner)
	own, err := f.planner.Overview(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, own.Overdue)
	assert.Len(t, own.Upcoming, 1)

	_, ok = CarScope(&models.User{Role: "guest"})
	assert.False(t, ok)

	checks := []struct {
		user     *models.User
		car      *models.Car
		expected bool
	}{
		{admin, managed, true},
		{chef, managed, true},
		{chef, owned, false},
		{owner, owned, true},
		{owner, managed, false},
		{&models.User{ID: "chef-2", Role: models.RoleChefPark}, managed, false},
	}
	for _, c := range checks {
		allowed, err := f.planner.CanAccessCar(ctx, c.user, c.car)
		require.NoError(t, err)
		assert.Equal(t, c.expected, allowed, "%s on %s", c.user.ID, c.car.LicensePlate)
	}
}

func TestRules(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	rules, err := f.planner.Rules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "VIDANGE", rules[0].Name)

	stored, err := StoreCatalog{Store: f.store}.Rules(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestLookups(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	zone := &models.Zone{Name: "Nord", ChefParkID: "chef-1"}
	require.NoError(t, f.store.InsertZone(ctx, zone))
	got, err := f.planner.Zone(ctx, zone.ID)
	require.NoError(t, err)
	assert.Equal(t, "chef-1", got.ChefParkID)

	_, err = f.planner.Zone(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.planner.Car(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.planner.Maintenance(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
