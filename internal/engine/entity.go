package engine

import "time"

type RoomType string

const (
	RoomTypeStandard RoomType = "STANDARD"
	RoomTypeDeluxe   RoomType = "DELUXE"
	RoomTypeSuite    RoomType = "SUITE"
)

type BookingStatus string

const (
	StatusActive    BookingStatus = "ACTIVE"
	StatusCancelled BookingStatus = "CANCELLED"
)

type Hotel struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	RoomIDs []string `json:"room_ids"`
}

type Room struct {
	ID                string   `json:"id"`
	HotelID           string   `json:"hotel_id"`
	RoomNumber        string   `json:"room_number"`
	Type              RoomType `json:"type"`
	BasePricePerNight float64  `json:"base_price_per_night"`
}

// AddOn is a catalog entry billed per night of stay. The catalog is open:
// entries are seeded data, not code.
type AddOn struct {
	Name          string  `json:"name"`
	PricePerNight float64 `json:"price_per_night"`
}

// Booking covers the half-open range [CheckIn, CheckOut). TotalPrice is fixed
// at creation; Status is the only field that changes afterwards.
type Booking struct {
	ID         string        `json:"id"`
	RoomID     string        `json:"room_id"`
	HotelID    string        `json:"hotel_id"`
	CheckIn    time.Time     `json:"check_in"`
	CheckOut   time.Time     `json:"check_out"`
	AddOns     []AddOn       `json:"add_ons,omitempty"`
	TotalPrice float64       `json:"total_price"`
	Status     BookingStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Overlaps reports whether [from, to) intersects the booking's range.
// Ranges that only share a boundary date do not overlap, so back-to-back
// stays are allowed.
func (b *Booking) Overlaps(from, to time.Time) bool {
	return Overlaps(b.CheckIn, b.CheckOut, from, to)
}

// Overlaps implements the half-open interval rule: [s1,e1) and [s2,e2)
// overlap iff s1 < e2 && s2 < e1.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// NormalizeDate drops the time-of-day component, anchoring the date at UTC
// midnight. All engine date math happens on normalized values.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Nights returns the number of nights in [checkIn, checkOut). Both arguments
// must already be normalized.
func Nights(checkIn, checkOut time.Time) int {
	return int(checkOut.Sub(checkIn).Hours() / 24) //nolint:gomnd
}
