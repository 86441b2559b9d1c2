package migration

import (
	"context"
	"fmt"

	"github.com/lodgekit/reserve/internal/engine"
	"github.com/lodgekit/reserve/internal/logger"
)

type storage interface {
	SaveHotel(ctx context.Context, hotel *engine.Hotel) error
	SaveRooms(ctx context.Context, rooms []*engine.Room) error
	SaveAddOns(ctx context.Context, addOns []*engine.AddOn) error
}

// Seed loads the reference inventory: one hotel, its rooms and the add-on
// catalog. Bookings start empty.
func Seed(ctx context.Context, l *logger.Logger, storage storage) error {
	hotel := &engine.Hotel{
		ID:   "grand-plaza",
		Name: "Grand Plaza Hotel",
	}

	rooms := []*engine.Room{
		{
			ID:                "r101",
			HotelID:           hotel.ID,
			RoomNumber:        "101",
			Type:              engine.RoomTypeStandard,
			BasePricePerNight: 100,
		},
		{
			ID:                "r102",
			HotelID:           hotel.ID,
			RoomNumber:        "102",
			Type:              engine.RoomTypeStandard,
			BasePricePerNight: 100,
		},
		{
			ID:                "r201",
			HotelID:           hotel.ID,
			RoomNumber:        "201",
			Type:              engine.RoomTypeDeluxe,
			BasePricePerNight: 150,
		},
		{
			ID:                "r301",
			HotelID:           hotel.ID,
			RoomNumber:        "301",
			Type:              engine.RoomTypeSuite,
			BasePricePerNight: 250,
		},
	}

	addOns := []*engine.AddOn{
		{Name: "Breakfast", PricePerNight: 15},
		{Name: "Extra Bed", PricePerNight: 25},
		{Name: "Airport Transfer", PricePerNight: 50},
	}

	if err := storage.SaveHotel(ctx, hotel); err != nil {
		return fmt.Errorf("save hotel %v: %w", hotel.ID, err)
	}

	if err := storage.SaveRooms(ctx, rooms); err != nil {
		return fmt.Errorf("save rooms of hotel %v: %w", hotel.ID, err)
	}

	if err := storage.SaveAddOns(ctx, addOns); err != nil {
		return fmt.Errorf("save add-on catalog: %w", err)
	}

	l.LogInfo("seeded hotel %v with %d rooms and %d add-ons", hotel.ID, len(rooms), len(addOns))

	return nil
}
