package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// newMongoTestStore connects to MONGO_URI and returns a store on a fresh
// database. The test is skipped when no server is reachable.
func newMongoTestStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" || uri == "uri" {
		t.Skip("MONGO_URI not set or invalid, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := ConnectMongo(ctx, uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}

	dbName := "test_fleet_" + models.NewID()[:8]
	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	store := NewMongoStore(client, dbName)
	require.NoError(t, store.EnsureIndexes(context.Background()))
	return store
}

func TestConnectMongo_BadURI(t *testing.T) {
	client, err := ConnectMongo(context.Background(), "mongodb://bad:uri")
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestMongoStore_CarAndMileage(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()

	car := &models.Car{LicensePlate: "MG-1", InitialMileage: 500}
	require.NoError(t, s.InsertCar(ctx, car))
	assert.ErrorIs(t, s.InsertCar(ctx, &models.Car{LicensePlate: "MG-1"}), ErrDuplicate)

	found, err := s.FindCar(ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), found.InitialMileage)

	_, err = s.FindCar(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertMileage(ctx, &models.MileageRecord{CarID: car.ID, Value: 1000, RecordedAt: base}))
	require.NoError(t, s.InsertMileage(ctx, &models.MileageRecord{CarID: car.ID, Value: 3000, RecordedAt: base.AddDate(0, 1, 0)}))

	latest, err := s.LatestMileage(ctx, car.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(3000), latest.Value)

	at, err := s.LatestMileageAt(ctx, car.ID, base.AddDate(0, 0, 5))
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.Equal(t, int64(1000), at.Value)
}

func TestMongoStore_PlanKeyAndMarkDone(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()

	car := &models.Car{LicensePlate: "MG-2"}
	require.NoError(t, s.InsertCar(ctx, car))

	key := models.PlanKey(car.ID, "rule-1", 10000)
	rec := &models.MaintenanceRecord{
		CarID:           car.ID,
		Type:            models.PreventiveMaintenance,
		Date:            time.Now().UTC(),
		RecordedMileage: 10000,
		Status:          models.StatusUpcoming,
		PlanKey:         &key,
	}
	require.NoError(t, s.InsertMaintenance(ctx, rec))

	dupKey := key
	err := s.InsertMaintenance(ctx, &models.MaintenanceRecord{
		CarID: car.ID, Type: models.PreventiveMaintenance, Date: time.Now().UTC(),
		RecordedMileage: 10000, Status: models.StatusUpcoming, PlanKey: &dupKey,
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	flipped, err := s.MarkOverdue(ctx, car.ID, 10000)
	require.NoError(t, err)
	assert.Len(t, flipped, 1)

	rec.RecordedMileage = 10100
	require.NoError(t, s.MarkDone(ctx, rec))
	assert.ErrorIs(t, s.MarkDone(ctx, rec), ErrNotFound)

	history, err := s.ListMaintenance(ctx, MaintenanceFilter{CarID: car.ID, WithCar: true})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusDone, history[0].Status)
	require.NotNil(t, history[0].Car)
	assert.Equal(t, "MG-2", history[0].Car.LicensePlate)
}

func TestMongoStore_SeedRules(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()

	n, err := s.SeedRules(ctx, models.DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, int64(len(models.DefaultRules())), n)

	n, err = s.SeedRules(ctx, models.DefaultRules())
	require.NoError(t, err)
	assert.Zero(t, n)

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, len(models.DefaultRules()))
}
