package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lodgekit/reserve/internal/logger"
)

type idGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type inventoryReader interface {
	GetHotel(ctx context.Context, hotelID string) (*Hotel, error)
	ListRooms(ctx context.Context, hotelID string) ([]*Room, error)
	GetRoom(ctx context.Context, hotelID, roomID string) (*Room, error)
	GetAddOn(ctx context.Context, name string) (*AddOn, error)
}

type ledger interface {
	UnavailableRooms(ctx context.Context, hotelID string, from, to time.Time) (map[string]struct{}, error)
	InsertBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, bookingID string) (*Booking, error)
	CancelBooking(ctx context.Context, bookingID string) (*Booking, error)
}

type storage interface {
	inventoryReader
	ledger
}

// Manager is the reservation engine. All writes for a given room are
// serialized by the storage layer; the manager validates input, resolves
// inventory and prices the stay.
type Manager struct {
	l       *logger.Logger
	storage storage
	idGen   idGenerator
}

func New(l *logger.Logger, storage storage, idGen idGenerator) *Manager {
	return &Manager{
		l:       l,
		storage: storage,
		idGen:   idGen,
	}
}

// AvailableRooms returns the hotel's rooms with no ACTIVE booking overlapping
// [checkIn, checkOut). Read-only.
func (m *Manager) AvailableRooms(ctx context.Context, hotelID string, checkIn, checkOut time.Time) ([]*Room, error) {
	checkIn = NormalizeDate(checkIn)
	checkOut = NormalizeDate(checkOut)

	if !checkOut.After(checkIn) {
		return nil, ErrInvalidDateRange
	}

	if _, err := m.storage.GetHotel(ctx, hotelID); err != nil {
		return nil, fmt.Errorf("get hotel %v: %w", hotelID, err)
	}

	rooms, err := m.storage.ListRooms(ctx, hotelID)
	if err != nil {
		return nil, fmt.Errorf("list rooms of hotel %v: %w", hotelID, err)
	}

	busy, err := m.storage.UnavailableRooms(ctx, hotelID, checkIn, checkOut)
	if err != nil {
		return nil, fmt.Errorf("resolve conflicting rooms of hotel %v: %w", hotelID, err)
	}

	available := make([]*Room, 0, len(rooms))

	for _, room := range rooms {
		if _, ok := busy[room.ID]; ok {
			continue
		}

		available = append(available, room)
	}

	return available, nil
}

// Quote is a priced stay for a concrete room, computed without touching the
// ledger.
type Quote struct {
	Room       *Room     `json:"room"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Nights     int       `json:"nights"`
	AddOns     []AddOn   `json:"add_ons,omitempty"`
	TotalPrice float64   `json:"total_price"`
}

// QuoteRate resolves the room and add-on names and prices the stay via
// CalculateRate.
func (m *Manager) QuoteRate(ctx context.Context, hotelID, roomID string, checkIn, checkOut time.Time, addOnNames []string) (*Quote, error) {
	checkIn = NormalizeDate(checkIn)
	checkOut = NormalizeDate(checkOut)

	if !checkOut.After(checkIn) {
		return nil, ErrInvalidDateRange
	}

	room, err := m.storage.GetRoom(ctx, hotelID, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room %v of hotel %v: %w", roomID, hotelID, err)
	}

	addOns, err := m.resolveAddOns(ctx, addOnNames)
	if err != nil {
		return nil, err
	}

	total, err := CalculateRate(room, checkIn, checkOut, addOns)
	if err != nil {
		return nil, err
	}

	return &Quote{
		Room:       room,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Nights:     Nights(checkIn, checkOut),
		AddOns:     addOns,
		TotalPrice: total,
	}, nil
}

type CreateBookingInput struct {
	HotelID  string
	RoomID   string
	CheckIn  time.Time
	CheckOut time.Time
	AddOns   []string
}

// CreateBooking re-checks availability and inserts the booking as one atomic
// unit per room; the storage layer owns that critical section. On overlap it
// fails with ErrRoomUnavailable, on lock-wait exhaustion with ErrResourceBusy.
func (m *Manager) CreateBooking(ctx context.Context, input *CreateBookingInput) (*Booking, error) {
	checkIn := NormalizeDate(input.CheckIn)
	checkOut := NormalizeDate(input.CheckOut)

	if !checkOut.After(checkIn) {
		return nil, ErrInvalidDateRange
	}

	room, err := m.storage.GetRoom(ctx, input.HotelID, input.RoomID)
	if err != nil {
		return nil, fmt.Errorf("get room %v of hotel %v: %w", input.RoomID, input.HotelID, err)
	}

	addOns, err := m.resolveAddOns(ctx, input.AddOns)
	if err != nil {
		return nil, err
	}

	total, err := CalculateRate(room, checkIn, checkOut, addOns)
	if err != nil {
		return nil, err
	}

	id, err := m.idGen.NewID(ctx)
	if err != nil {
		return nil, ErrNextID
	}

	booking := &Booking{
		ID:         id,
		RoomID:     room.ID,
		HotelID:    room.HotelID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		AddOns:     addOns,
		TotalPrice: total,
		Status:     StatusActive,
		CreatedAt:  time.Now().UTC(),
	}

	if err := m.storage.InsertBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("insert booking for room %v: %w", room.ID, err)
	}

	m.l.LogInfo(
		"booking %v created: room %v, %v to %v, total %.2f",
		booking.ID,
		booking.RoomID,
		checkIn.Format(time.DateOnly),
		checkOut.Format(time.DateOnly),
		booking.TotalPrice,
	)

	return booking, nil
}

// CancelBooking flips an ACTIVE booking to CANCELLED. The transition is
// terminal: cancelling twice fails with ErrAlreadyCancelled.
func (m *Manager) CancelBooking(ctx context.Context, bookingID string) error {
	booking, err := m.storage.CancelBooking(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("cancel booking %v: %w", bookingID, err)
	}

	m.l.LogInfo("booking %v cancelled: room %v freed", booking.ID, booking.RoomID)

	return nil
}

// GetBooking returns a booking by ID, any status.
func (m *Manager) GetBooking(ctx context.Context, bookingID string) (*Booking, error) {
	booking, err := m.storage.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking %v: %w", bookingID, err)
	}

	return booking, nil
}

// resolveAddOns maps catalog names to entries. Names are a set: duplicates
// collapse instead of billing twice.
func (m *Manager) resolveAddOns(ctx context.Context, names []string) ([]AddOn, error) {
	if len(names) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(names))
	addOns := make([]AddOn, 0, len(names))

	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}

		addOn, err := m.storage.GetAddOn(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve add-on %q: %w", name, err)
		}

		addOns = append(addOns, *addOn)
	}

	sort.Slice(addOns, func(i, j int) bool { return addOns[i].Name < addOns[j].Name })

	return addOns, nil
}
