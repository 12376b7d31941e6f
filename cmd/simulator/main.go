package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// Car is the subset of a registered car the simulator needs.
type Car struct {
	ID           string `json:"id"`
	LicensePlate string `json:"license_plate"`
}

// Maintenance is the subset of a maintenance record the simulator needs.
type Maintenance struct {
	ID              string `json:"id"`
	CarID           string `json:"car_id"`
	Description     string `json:"description"`
	RecordedMileage int64  `json:"recorded_mileage"`
	Status          string `json:"status"`
}

type mileageResponse struct {
	Planned []Maintenance `json:"planned"`
}

// CarState is the simulated odometer of one car.
type CarState struct {
	CarID    string
	Odometer int64
	// DailyKm is the average distance driven per tick.
	DailyKm float64
	// Pending holds overdue maintenance the driver has not serviced yet.
	Pending []Maintenance
}

// Client talks to the planner API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewClient creates an API client for baseURL, e.g. http://localhost:8080/api.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Login obtains a token for the simulator account.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/auth/login", map[string]string{"email": email, "password": password}, &resp); err != nil {
		return err
	}
	c.Token = resp.Token
	return nil
}

var makes = []struct{ make, model string }{
	{"Renault", "Clio"},
	{"Dacia", "Logan"},
	{"Peugeot", "208"},
	{"Toyota", "Corolla"},
	{"Hyundai", "Accent"},
}

// RegisterCar registers a random car with the given starting odometer.
func (c *Client) RegisterCar(ctx context.Context, plate string, odometer int64) (*Car, error) {
	m := makes[rand.Intn(len(makes))]
	req := map[string]interface{}{
		"license_plate":   plate,
		"make":            m.make,
		"model":           m.model,
		"year":            2015 + rand.Intn(10),
		"initial_mileage": odometer,
	}
	var car Car
	if err := c.post(ctx, "/cars", req, &car); err != nil {
		return nil, fmt.Errorf("failed to register car: %w", err)
	}
	log.WithFields(log.Fields{"car_id": car.ID, "license_plate": car.LicensePlate, "mileage": odometer}).Info("Registered car")
	return &car, nil
}

// RecordMileage posts a reading and returns what the planner created.
func (c *Client) RecordMileage(ctx context.Context, carID string, value int64) ([]Maintenance, error) {
	var resp mileageResponse
	if err := c.post(ctx, "/cars/"+carID+"/mileage", map[string]int64{"value": value}, &resp); err != nil {
		return nil, err
	}
	return resp.Planned, nil
}

// Complete closes a maintenance record at the given odometer value.
func (c *Client) Complete(ctx context.Context, id string, mileage int64, cost float64, at time.Time) error {
	req := map[string]interface{}{
		"date":             at.UTC().Format(time.RFC3339),
		"recorded_mileage": mileage,
		"cost":             cost,
	}
	return c.post(ctx, "/maintenance/"+id+"/complete", req, nil)
}

// Drive advances the odometer by roughly DailyKm.
func (s *CarState) Drive() {
	km := s.DailyKm * (0.5 + rand.Float64())
	s.Odometer += int64(km)
}

// Tick drives the car, reports the reading and services overdue maintenance
// with probability serviceRate.
func Tick(ctx context.Context, c *Client, s *CarState, serviceRate float64) error {
	s.Drive()
	planned, err := c.RecordMileage(ctx, s.CarID, s.Odometer)
	if err != nil {
		return err
	}
	for _, m := range planned {
		log.WithFields(log.Fields{
			"car_id":      s.CarID,
			"maintenance": m.Description,
			"due_mileage": m.RecordedMileage,
			"status":      m.Status,
		}).Info("Maintenance planned")
		s.Pending = append(s.Pending, m)
	}

	remaining := s.Pending[:0]
	for _, m := range s.Pending {
		if m.Status != "OVERDUE" || rand.Float64() >= serviceRate {
			remaining = append(remaining, m)
			continue
		}
		// Servicing happens at the current reading, which re-baselines the rule.
		cost := 50 + rand.Float64()*250
		if err := c.Complete(ctx, m.ID, s.Odometer, cost, time.Now()); err != nil {
			log.WithError(err).WithField("maintenance_id", m.ID).Warn("Failed to complete maintenance")
			remaining = append(remaining, m)
			continue
		}
		log.WithFields(log.Fields{"car_id": s.CarID, "maintenance": m.Description, "mileage": s.Odometer}).Info("Completed maintenance")
	}
	s.Pending = remaining
	return nil
}

func simulateCar(ctx context.Context, c *Client, s *CarState, interval time.Duration, serviceRate float64) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if err := Tick(ctx, c, s, serviceRate); err != nil {
				log.WithError(err).WithField("car_id", s.CarID).Error("Failed to report mileage")
			}
		}
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			return n
		}
	}
	return def
}

func main() {
	fleetSize := envInt("FLEET_SIZE", 10)
	interval := time.Duration(envInt("SIM_TICK_SECONDS", 2)) * time.Second
	dailyKm := float64(envInt("SIM_DAILY_KM", 400))

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := NewClient(apiURL)
	client.Token = os.Getenv("SIM_AUTH_TOKEN")
	if client.Token == "" {
		if err := client.Login(ctx, os.Getenv("SIM_EMAIL"), os.Getenv("SIM_PASSWORD")); err != nil {
			log.WithError(err).Fatal("Failed to log in; set SIM_AUTH_TOKEN or SIM_EMAIL and SIM_PASSWORD")
		}
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
		"interval":   interval,
	}).Info("Starting odometer simulation")

	states := make([]*CarState, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		odometer := int64(rand.Intn(80000))
		plate := fmt.Sprintf("SIM-%d-%04d", time.Now().Unix()%100000, i+1)
		car, err := client.RegisterCar(ctx, plate, odometer)
		if err != nil {
			log.WithError(err).Error("Failed to register car")
			continue
		}
		states = append(states, &CarState{CarID: car.ID, Odometer: odometer, DailyKm: dailyKm})
	}

	log.WithField("registered_cars", len(states)).Info("Car registration completed")
	if len(states) == 0 {
		log.Error("No cars registered. Ensure the credentials are valid and the API is reachable. Exiting.")
		return
	}

	for _, s := range states {
		go simulateCar(ctx, client, s, interval, 0.3)
	}

	log.Info("Odometer simulation started")
	<-ctx.Done()
	log.Info("Odometer simulation stopped")
}
