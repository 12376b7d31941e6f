package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/handlers"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

const (
	adminEmail    = "admin@fleet.local"
	adminPassword = "admin-pass-1"
)

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (c *apiClient) do(method, path string, body interface{}, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func newTestServer(t *testing.T, rateLimit int) *apiClient {
	t.Helper()
	ctx := context.Background()
	gdb, err := db.OpenTestDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	authService := auth.NewService("test-secret", time.Hour)
	hash, err := authService.HashPassword(adminPassword)
	require.NoError(t, err)
	rules := []models.MaintenanceRule{{Name: "VIDANGE", MileageInterval: 10000}}
	require.NoError(t, db.Seed(ctx, gdb, rules, adminEmail, hash))

	logger, _ := test.NewNullLogger()
	store := db.NewGormStore(gdb)
	planner := maintenance.NewPlanner(store, maintenance.StoreCatalog{Store: store}, maintenance.DefaultConfig(),
		maintenance.WithLogger(logger))

	handler, err := Handler(Options{
		Auth:      authService,
		Users:     &db.GormUserStore{DB: gdb},
		Fleet:     planner,
		Log:       logger,
		RateLimit: rateLimit,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &apiClient{t: t, base: srv.URL}
}

func (c *apiClient) login(email, password string) {
	c.t.Helper()
	var resp models.LoginResponse
	status := c.do(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &resp)
	require.Equal(c.t, http.StatusOK, status)
	c.token = resp.Token
}

func TestHandler_RequiresDependencies(t *testing.T) {
	_, err := Handler(Options{})
	assert.Error(t, err)
}

func TestServer_PublicRoutes(t *testing.T) {
	c := newTestServer(t, 0)

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/health", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/rules", nil, nil))
	assert.Equal(t, http.StatusUnauthorized,
		c.do(http.MethodPost, "/api/auth/login", map[string]string{"email": adminEmail, "password": "wrong"}, nil))
}

func TestServer_MaintenanceLifecycle(t *testing.T) {
	c := newTestServer(t, 0)
	c.login(adminEmail, adminPassword)

	var rules []models.MaintenanceRule
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/rules", nil, &rules))
	require.Len(t, rules, 1)

	var car models.Car
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/cars",
		map[string]interface{}{"license_plate": "ab-123-cd", "initial_mileage": 0}, &car))
	assert.Equal(t, "AB-123-CD", car.LicensePlate)

	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/api/cars",
		map[string]interface{}{"license_plate": "AB-123-CD", "initial_mileage": 0}, nil))

	var mileage handlers.MileageResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, fmt.Sprintf("/api/cars/%s/mileage", car.ID),
		map[string]interface{}{"value": 10500}, &mileage))
	require.Len(t, mileage.Planned, 1)
	due := mileage.Planned[0]
	assert.Equal(t, int64(10000), due.RecordedMileage)
	assert.Equal(t, models.StatusOverdue, due.Status)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, fmt.Sprintf("/api/cars/%s/mileage", car.ID),
		map[string]interface{}{"value": 9000}, nil))

	var again handlers.PlanResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, fmt.Sprintf("/api/cars/%s/plan", car.ID), nil, &again))
	assert.Empty(t, again.Planned)

	var pending models.PendingOverview
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/maintenance/pending", nil, &pending))
	require.Len(t, pending.Overdue, 1)
	assert.Equal(t, car.ID, pending.Overdue[0].Car.ID)

	completion := map[string]interface{}{
		"date":             time.Now().UTC().Add(time.Minute).Format(time.RFC3339),
		"recorded_mileage": 10600,
		"cost":             89.5,
	}
	var done handlers.MaintenanceResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, fmt.Sprintf("/api/maintenance/%s/complete", due.ID), completion, &done))
	assert.Equal(t, models.StatusDone, done.Maintenance.Status)
	assert.Empty(t, done.Planned)

	assert.Equal(t, http.StatusConflict,
		c.do(http.MethodPost, fmt.Sprintf("/api/maintenance/%s/complete", due.ID), completion, nil))

	var history []models.MaintenanceRecord
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, fmt.Sprintf("/api/cars/%s/maintenance", car.ID), nil, &history))
	require.Len(t, history, 1)
	assert.Equal(t, int64(10600), history[0].RecordedMileage)

	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/maintenance/pending", nil, &pending))
	assert.Empty(t, pending.Overdue)
	assert.Empty(t, pending.Upcoming)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/api/cars/unknown/plan", nil, nil))
}

func TestServer_RateLimit(t *testing.T) {
	c := newTestServer(t, 2)

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/health", nil, nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/health", nil, nil))
	assert.Equal(t, http.StatusTooManyRequests, c.do(http.MethodGet, "/health", nil, nil))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, ln, http.HandlerFunc(handlers.Health), Options{Log: logger, ShutdownTimeout: time.Second})
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, "HTTP server stopped", hook.LastEntry().Message)
}
