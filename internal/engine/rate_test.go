package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgekit/reserve/internal/engine"
)

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func TestCalculateRate(t *testing.T) {
	t.Parallel()

	room := &engine.Room{
		ID:                "r201",
		HotelID:           "grand-plaza",
		RoomNumber:        "201",
		Type:              engine.RoomTypeDeluxe,
		BasePricePerNight: 150,
	}

	breakfast := engine.AddOn{Name: "Breakfast", PricePerNight: 15}
	extraBed := engine.AddOn{Name: "Extra Bed", PricePerNight: 25}

	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		addOns   []engine.AddOn
		want     float64
	}{
		{
			name:     "base price only",
			checkIn:  date(2025, 6, 10),
			checkOut: date(2025, 6, 12),
			want:     300,
		},
		{
			name:     "single night",
			checkIn:  date(2025, 6, 10),
			checkOut: date(2025, 6, 11),
			want:     150,
		},
		{
			name:     "add-on billed per night",
			checkIn:  date(2025, 6, 10),
			checkOut: date(2025, 6, 13),
			addOns:   []engine.AddOn{breakfast},
			want:     495, // 150*3 + 15*3
		},
		{
			name:     "add-ons are additive",
			checkIn:  date(2025, 6, 10),
			checkOut: date(2025, 6, 12),
			addOns:   []engine.AddOn{breakfast, extraBed},
			want:     380, // 150*2 + 15*2 + 25*2
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := engine.CalculateRate(room, tt.checkIn, tt.checkOut, tt.addOns)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalculateRateInvalidRange(t *testing.T) {
	t.Parallel()

	room := &engine.Room{ID: "r101", BasePricePerNight: 100}

	_, err := engine.CalculateRate(room, date(2025, 6, 15), date(2025, 6, 14), nil)
	assert.ErrorIs(t, err, engine.ErrInvalidDateRange)

	_, err = engine.CalculateRate(room, date(2025, 6, 15), date(2025, 6, 15), nil)
	assert.ErrorIs(t, err, engine.ErrInvalidDateRange)
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{
			name: "identical ranges",
			s1:   date(2025, 6, 10), e1: date(2025, 6, 12),
			s2: date(2025, 6, 10), e2: date(2025, 6, 12),
			want: true,
		},
		{
			name: "partial overlap",
			s1:   date(2025, 6, 10), e1: date(2025, 6, 12),
			s2: date(2025, 6, 11), e2: date(2025, 6, 13),
			want: true,
		},
		{
			name: "contained range",
			s1:   date(2025, 6, 10), e1: date(2025, 6, 20),
			s2: date(2025, 6, 12), e2: date(2025, 6, 13),
			want: true,
		},
		{
			name: "back-to-back is not a conflict",
			s1:   date(2025, 6, 10), e1: date(2025, 6, 12),
			s2: date(2025, 6, 12), e2: date(2025, 6, 14),
			want: false,
		},
		{
			name: "disjoint ranges",
			s1:   date(2025, 6, 10), e1: date(2025, 6, 12),
			s2: date(2025, 6, 20), e2: date(2025, 6, 22),
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, engine.Overlaps(tt.s1, tt.e1, tt.s2, tt.e2))
			assert.Equal(t, tt.want, engine.Overlaps(tt.s2, tt.e2, tt.s1, tt.e1))
		})
	}
}

func TestNights(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, engine.Nights(date(2025, 6, 10), date(2025, 6, 11)))
	assert.Equal(t, 3, engine.Nights(date(2025, 6, 10), date(2025, 6, 13)))
}

func TestNormalizeDate(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2025, 6, 10, 14, 30, 12, 0, loc)

	assert.Equal(t, date(2025, 6, 10), engine.NormalizeDate(in))
}
