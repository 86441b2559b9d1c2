package engine

import "time"

// CalculateRate prices a stay of [checkIn, checkOut) in a room: the base
// price per night times the number of nights, plus every add-on billed per
// night. Pure, no I/O.
func CalculateRate(room *Room, checkIn, checkOut time.Time, addOns []AddOn) (float64, error) {
	checkIn = NormalizeDate(checkIn)
	checkOut = NormalizeDate(checkOut)

	if !checkOut.After(checkIn) {
		return 0, ErrInvalidDateRange
	}

	nights := float64(Nights(checkIn, checkOut))

	total := room.BasePricePerNight * nights

	for _, addOn := range addOns {
		total += addOn.PricePerNight * nights
	}

	return total, nil
}
