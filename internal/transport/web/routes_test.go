package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgekit/reserve/internal/engine"
	"github.com/lodgekit/reserve/internal/idgen/uuidgen"
	"github.com/lodgekit/reserve/internal/logger"
	"github.com/lodgekit/reserve/internal/migration"
	"github.com/lodgekit/reserve/internal/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	l := logger.New(log.New(io.Discard, "", 0))
	db := memory.New(memory.Config{L: l})

	require.NoError(t, migration.Seed(context.Background(), l, db))

	manager := engine.New(l, db, uuidgen.New())

	srv, err := New(context.Background(), Conf{
		L:                 l,
		ServerLogger:      log.New(io.Discard, "", 0),
		Host:              "localhost",
		Port:              "0",
		ReadHeaderTimeout: time.Second,
		LivenessEndpoint:  "/liveness",
	}, manager)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Srv().Handler)
	t.Cleanup(ts.Close)

	return ts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func bookingRequest() map[string]any {
	return map[string]any{
		"hotel_id":  "grand-plaza",
		"room_id":   "r101",
		"check_in":  "2025-06-10",
		"check_out": "2025-06-12",
	}
}

func TestLiveness(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/liveness", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAvailabilityHandler(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/hotels/grand-plaza/availability?check_in=2025-06-10&check_out=2025-06-12", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[availabilityResponse](t, resp)
	assert.Len(t, out.Rooms, 4)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/hotels/grand-plaza/availability?check_in=2025-06-15&check_out=2025-06-14", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/hotels/grand-plaza/availability?check_in=bogus&check_out=2025-06-14", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/hotels/no-such-hotel/availability?check_in=2025-06-10&check_out=2025-06-12", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuoteHandler(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/quotes/v1", map[string]any{
		"hotel_id":  "grand-plaza",
		"room_id":   "r201",
		"check_in":  "2025-06-10",
		"check_out": "2025-06-13",
		"add_ons":   []string{"Breakfast"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	quote := decodeBody[engine.Quote](t, resp)
	assert.Equal(t, 3, quote.Nights)
	assert.InDelta(t, 495, quote.TotalPrice, 1e-9)
}

func TestCreateAndCancelBooking(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/bookings/v1", bookingRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decodeBody[engine.Booking](t, resp)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, engine.StatusActive, created.Status)

	// The booked room disappears from overlapping availability queries.
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/hotels/grand-plaza/availability?check_in=2025-06-11&check_out=2025-06-13", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[availabilityResponse](t, resp)
	for _, room := range out.Rooms {
		assert.NotEqual(t, "r101", room.ID)
	}

	// Overlapping create conflicts.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/bookings/v1", bookingRequest())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	conflict := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "r101", conflict["room_id"])

	// Cancel, then cancel again.
	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/bookings/v1/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/bookings/v1/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/bookings/v1/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decodeBody[engine.Booking](t, resp)
	assert.Equal(t, engine.StatusCancelled, got.Status)
}

func TestCreateBookingValidationErrors(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	req := bookingRequest()
	delete(req, "hotel_id")
	req["check_in"] = "June 10"

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/bookings/v1", req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	fields := decodeBody[map[string][]string](t, resp)
	assert.Contains(t, fields, "HotelID")
	assert.Contains(t, fields, "CheckIn")
}

func TestCancelUnknownBooking(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/bookings/v1/no-such-booking", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
