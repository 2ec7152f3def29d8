package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/be-confident-group/ccapp-tracking/internal/models"
)

const tokenTTL = 5 * time.Minute

// Client uploads finalized trips to the remote trip endpoint. The trip's
// stable local identifier travels as the idempotency key, so a retried upload
// never creates a duplicate remotely.
type Client struct {
	baseURL  string
	deviceID string
	secret   []byte
	http     *http.Client
}

// NewClient creates a sync client for the given remote base URL
func NewClient(baseURL, deviceID, secret string) *Client {
	return &Client{
		baseURL:  baseURL,
		deviceID: deviceID,
		secret:   []byte(secret),
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// tripUpload is the remote wire format. Distance is kilometers remotely,
// meters locally; the conversion happens here and nowhere else.
type tripUpload struct {
	LocalID        string              `json:"local_id"`
	Type           string              `json:"type"`
	IsManual       bool                `json:"is_manual"`
	StartTimestamp int64               `json:"start_timestamp"` // Unix seconds
	EndTimestamp   int64               `json:"end_timestamp"`   // Unix seconds
	DistanceKm     float64             `json:"distance_km"`
	DurationS      int64               `json:"duration_s"`
	CO2SavedKg     float64             `json:"co2_saved_kg"`
	Route          []models.RoutePoint `json:"route"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

// mintToken signs a short-lived device bearer token
func (c *Client) mintToken() (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   c.deviceID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// UploadTrip upserts one finalized trip and returns the remote identifier
func (c *Client) UploadTrip(ctx context.Context, trip models.Trip) (string, error) {
	if trip.EndedAt == nil {
		return "", fmt.Errorf("trip %s is still active", trip.LocalID)
	}

	route, err := models.DecodeRouteSummary(trip.RouteSummary)
	if err != nil {
		return "", fmt.Errorf("invalid route summary: %w", err)
	}

	payload := tripUpload{
		LocalID:        trip.LocalID,
		Type:           trip.ActivityType,
		IsManual:       trip.IsManual,
		StartTimestamp: trip.StartedAt / 1000,
		EndTimestamp:   *trip.EndedAt / 1000,
		DistanceKm:     trip.DistanceM / 1000,
		DurationS:      trip.DurationS,
		CO2SavedKg:     trip.CO2SavedKg,
		Route:          route.Points,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode trip payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/trips", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}

	token, err := c.mintToken()
	if err != nil {
		return "", fmt.Errorf("failed to mint device token: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", trip.LocalID)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("remote rejected trip %s: status %d: %s",
			trip.LocalID, resp.StatusCode, string(snippet))
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("remote returned no trip id for %s", trip.LocalID)
	}

	return parsed.ID, nil
}
