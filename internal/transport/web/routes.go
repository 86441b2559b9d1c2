package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/lodgekit/reserve/internal/engine"
)

type quoteRequest struct {
	HotelID  string   `json:"hotel_id" validate:"required"`
	RoomID   string   `json:"room_id" validate:"required"`
	CheckIn  string   `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut string   `json:"check_out" validate:"required,datetime=2006-01-02"`
	AddOns   []string `json:"add_ons" validate:"omitempty,dive,required"`
}

type createBookingRequest struct {
	HotelID  string   `json:"hotel_id" validate:"required"`
	RoomID   string   `json:"room_id" validate:"required"`
	CheckIn  string   `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut string   `json:"check_out" validate:"required,datetime=2006-01-02"`
	AddOns   []string `json:"add_ons" validate:"omitempty,dive,required"`
}

type availabilityResponse struct {
	HotelID  string         `json:"hotel_id"`
	CheckIn  string         `json:"check_in"`
	CheckOut string         `json:"check_out"`
	Rooms    []*engine.Room `json:"rooms"`
}

// decodeAndValidate fills dst from the request body and runs struct
// validation, writing field-level errors on failure. Returns false if the
// response has been written.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		var validationErrs validator.ValidationErrors

		if !errors.As(err, &validationErrs) {
			s.l.LogErrorf("Could not validate request: %v", err.Error())
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return false
		}

		fields := make(map[string][]string, len(validationErrs))

		for _, fieldErr := range validationErrs {
			fields[fieldErr.Field()] = append(fields[fieldErr.Field()], "failed on '"+fieldErr.Tag()+"'")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)

		if err := json.NewEncoder(w).Encode(fields); err != nil {
			s.l.LogErrorf("Could not encode validation err: %v", err.Error())
		}

		return false
	}

	return true
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}

	return engine.NormalizeDate(t), nil
}

// writeEngineError maps the engine taxonomy to HTTP statuses. RoomUnavailable
// is a legitimate business outcome (409), ResourceBusy is the only retryable
// kind (503 + Retry-After).
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var status int

	switch {
	case errors.Is(err, engine.ErrInvalidDateRange), errors.Is(err, engine.ErrAddOnNotFound):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrHotelNotFound),
		errors.Is(err, engine.ErrRoomNotFound),
		errors.Is(err, engine.ErrBookingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrRoomUnavailable), errors.Is(err, engine.ErrAlreadyCancelled):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrResourceBusy):
		w.Header().Set("Retry-After", "1")

		status = http.StatusServiceUnavailable
	default:
		s.l.LogErrorf("Unhandled engine error: %v", err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := map[string]string{"error": err.Error()}

	if conflictErr := engine.IsConflictError(err); conflictErr != nil {
		body["room_id"] = conflictErr.RoomID
	}

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.l.LogErrorf("Could not encode error response: %v", err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.l.LogErrorf("Could not encode response: %v", err.Error())
	}
}

func (s *Server) availabilityHandler(w http.ResponseWriter, r *http.Request) {
	hotelID := mux.Vars(r)["hotelID"]

	checkIn, err := parseDate(r.URL.Query().Get("check_in"))
	if err != nil {
		http.Error(w, "check_in must be a date in 2006-01-02 form", http.StatusBadRequest)

		return
	}

	checkOut, err := parseDate(r.URL.Query().Get("check_out"))
	if err != nil {
		http.Error(w, "check_out must be a date in 2006-01-02 form", http.StatusBadRequest)

		return
	}

	rooms, err := s.manager.AvailableRooms(r.Context(), hotelID, checkIn, checkOut)
	if err != nil {
		s.writeEngineError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, availabilityResponse{
		HotelID:  hotelID,
		CheckIn:  checkIn.Format(time.DateOnly),
		CheckOut: checkOut.Format(time.DateOnly),
		Rooms:    rooms,
	})
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest

	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	checkIn, _ := parseDate(req.CheckIn)
	checkOut, _ := parseDate(req.CheckOut)

	quote, err := s.manager.QuoteRate(r.Context(), req.HotelID, req.RoomID, checkIn, checkOut, req.AddOns)
	if err != nil {
		s.writeEngineError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest

	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	checkIn, _ := parseDate(req.CheckIn)
	checkOut, _ := parseDate(req.CheckOut)

	booking, err := s.manager.CreateBooking(r.Context(), &engine.CreateBookingInput{
		HotelID:  req.HotelID,
		RoomID:   req.RoomID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		AddOns:   req.AddOns,
	})
	if err != nil {
		s.writeEngineError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, booking)
}

func (s *Server) cancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["bookingID"]

	if err := s.manager.CancelBooking(r.Context(), bookingID); err != nil {
		s.writeEngineError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getBookingHandler(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["bookingID"]

	booking, err := s.manager.GetBooking(r.Context(), bookingID)
	if err != nil {
		s.writeEngineError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, booking)
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addRoutes(r *mux.Router) {
	mw := func(h http.HandlerFunc) http.Handler {
		return s.applyMiddlewares(h, s.loggerMiddleware(), s.recoverMiddleware())
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/hotels/{hotelID}/availability", mw(s.availabilityHandler)).Methods(http.MethodGet)
	api.Handle("/quotes/v1", mw(s.quoteHandler)).Methods(http.MethodPost)
	api.Handle("/bookings/v1", mw(s.createBookingHandler)).Methods(http.MethodPost)
	api.Handle("/bookings/v1/{bookingID}", mw(s.getBookingHandler)).Methods(http.MethodGet)
	api.Handle("/bookings/v1/{bookingID}", mw(s.cancelBookingHandler)).Methods(http.MethodDelete)

	r.Handle(s.conf.LivenessEndpoint, mw(s.livenessHandler)).Methods(http.MethodGet)
}
