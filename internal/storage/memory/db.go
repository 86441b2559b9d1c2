package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lodgekit/reserve/internal/engine"
	"github.com/lodgekit/reserve/internal/logger"
)

const defaultLockWait = 2 * time.Second

type Config struct {
	L *logger.Logger
	// LockWait bounds how long a writer waits for a room's lock before the
	// call fails with engine.ErrResourceBusy.
	LockWait time.Duration
}

// roomState is one room's slice of the ledger. Writers (insert, cancel) are
// serialized by wlock with a bounded wait; mu makes mutations invisible to
// readers until complete, so availability scans never see a half-written
// booking.
type roomState struct {
	mu       sync.RWMutex
	wlock    chan struct{}
	room     *engine.Room
	bookings []*engine.Booking // sorted by CheckIn, cancelled entries retained
}

// DB is an indexed in-memory rendition of the inventory store and booking
// ledger. Inventory is read-only after seeding; the per-room booking lists
// are the only mutable state.
type DB struct {
	mu           sync.RWMutex // guards the maps below, never held across room locks
	l            *logger.Logger
	lockWait     time.Duration
	hotels       map[string]*engine.Hotel
	rooms        map[string]*roomState
	roomsByHotel map[string][]string
	addOns       map[string]*engine.AddOn
	bookingRooms map[string]string // bookingID -> roomID
}

func New(conf Config) *DB {
	lockWait := conf.LockWait
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}

	return &DB{
		l:            conf.L,
		lockWait:     lockWait,
		hotels:       make(map[string]*engine.Hotel),
		rooms:        make(map[string]*roomState),
		roomsByHotel: make(map[string][]string),
		addOns:       make(map[string]*engine.AddOn),
		bookingRooms: make(map[string]string),
	}
}

// acquireWrite takes the room's writer lock, waiting at most lockWait.
func (db *DB) acquireWrite(ctx context.Context, rs *roomState) error {
	timer := time.NewTimer(db.lockWait)
	defer timer.Stop()

	select {
	case rs.wlock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for room lock: %w", ctx.Err())
	case <-timer.C:
		return engine.ErrResourceBusy
	}
}

func (db *DB) releaseWrite(rs *roomState) {
	<-rs.wlock
}

func (db *DB) SaveHotel(_ context.Context, hotel *engine.Hotel) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	h := *hotel
	db.hotels[h.ID] = &h

	if _, ok := db.roomsByHotel[h.ID]; !ok {
		db.roomsByHotel[h.ID] = nil
	}

	return nil
}

func (db *DB) SaveRooms(_ context.Context, rooms []*engine.Room) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, room := range rooms {
		if _, ok := db.hotels[room.HotelID]; !ok {
			return fmt.Errorf("hotel %v of room %v: %w", room.HotelID, room.ID, engine.ErrHotelNotFound)
		}

		r := *room

		if _, ok := db.rooms[r.ID]; !ok {
			db.roomsByHotel[r.HotelID] = append(db.roomsByHotel[r.HotelID], r.ID)
		}

		db.rooms[r.ID] = &roomState{
			wlock: make(chan struct{}, 1),
			room:  &r,
		}
	}

	return nil
}

func (db *DB) SaveAddOns(_ context.Context, addOns []*engine.AddOn) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, addOn := range addOns {
		a := *addOn
		db.addOns[a.Name] = &a
	}

	return nil
}

func (db *DB) GetHotel(_ context.Context, hotelID string) (*engine.Hotel, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	hotel, ok := db.hotels[hotelID]
	if !ok {
		return nil, engine.ErrHotelNotFound
	}

	h := *hotel
	h.RoomIDs = append([]string(nil), db.roomsByHotel[hotelID]...)

	return &h, nil
}

func (db *DB) ListRooms(_ context.Context, hotelID string) ([]*engine.Room, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if _, ok := db.hotels[hotelID]; !ok {
		return nil, engine.ErrHotelNotFound
	}

	roomIDs := db.roomsByHotel[hotelID]
	rooms := make([]*engine.Room, 0, len(roomIDs))

	for _, roomID := range roomIDs {
		r := *db.rooms[roomID].room
		rooms = append(rooms, &r)
	}

	return rooms, nil
}

func (db *DB) GetRoom(_ context.Context, hotelID, roomID string) (*engine.Room, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if _, ok := db.hotels[hotelID]; !ok {
		return nil, engine.ErrHotelNotFound
	}

	rs, ok := db.rooms[roomID]
	if !ok || rs.room.HotelID != hotelID {
		return nil, engine.ErrRoomNotFound
	}

	r := *rs.room

	return &r, nil
}

func (db *DB) GetAddOn(_ context.Context, name string) (*engine.AddOn, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	addOn, ok := db.addOns[name]
	if !ok {
		return nil, engine.ErrAddOnNotFound
	}

	a := *addOn

	return &a, nil
}

// UnavailableRooms returns the IDs of the hotel's rooms that have at least
// one ACTIVE booking overlapping [from, to). Each room's list is read under
// its snapshot lock; rooms are inspected independently.
func (db *DB) UnavailableRooms(_ context.Context, hotelID string, from, to time.Time) (map[string]struct{}, error) {
	db.mu.RLock()

	if _, ok := db.hotels[hotelID]; !ok {
		db.mu.RUnlock()

		return nil, engine.ErrHotelNotFound
	}

	states := make([]*roomState, 0, len(db.roomsByHotel[hotelID]))
	for _, roomID := range db.roomsByHotel[hotelID] {
		states = append(states, db.rooms[roomID])
	}
	db.mu.RUnlock()

	busy := make(map[string]struct{})

	for _, rs := range states {
		rs.mu.RLock()

		for _, b := range rs.bookings {
			if b.Status != engine.StatusActive {
				continue
			}

			if b.Overlaps(from, to) {
				busy[rs.room.ID] = struct{}{}

				break
			}
		}

		rs.mu.RUnlock()
	}

	return busy, nil
}

// InsertBooking is the check-then-insert critical section: with the room's
// writer lock held, no conflicting insert can interleave between the overlap
// scan and the append.
func (db *DB) InsertBooking(ctx context.Context, booking *engine.Booking) error {
	db.mu.RLock()
	rs, ok := db.rooms[booking.RoomID]
	db.mu.RUnlock()

	if !ok {
		return engine.ErrRoomNotFound
	}

	if err := db.acquireWrite(ctx, rs); err != nil {
		return err
	}
	defer db.releaseWrite(rs)

	rs.mu.RLock()

	for _, existing := range rs.bookings {
		if existing.Status != engine.StatusActive {
			continue
		}

		if existing.Overlaps(booking.CheckIn, booking.CheckOut) {
			rs.mu.RUnlock()

			return engine.NewConflictError(booking.RoomID, booking.CheckIn, booking.CheckOut)
		}
	}

	rs.mu.RUnlock()

	b := *booking
	b.AddOns = append([]engine.AddOn(nil), booking.AddOns...)

	rs.mu.Lock()
	idx := sort.Search(len(rs.bookings), func(i int) bool {
		return rs.bookings[i].CheckIn.After(b.CheckIn)
	})
	rs.bookings = append(rs.bookings, nil)
	copy(rs.bookings[idx+1:], rs.bookings[idx:])
	rs.bookings[idx] = &b
	rs.mu.Unlock()

	db.mu.Lock()
	db.bookingRooms[b.ID] = b.RoomID
	db.mu.Unlock()

	return nil
}

func (db *DB) GetBooking(_ context.Context, bookingID string) (*engine.Booking, error) {
	rs, err := db.roomOfBooking(bookingID)
	if err != nil {
		return nil, err
	}

	rs.mu.RLock()
	defer rs.mu.RUnlock()

	for _, b := range rs.bookings {
		if b.ID == bookingID {
			return cloneBooking(b), nil
		}
	}

	return nil, engine.ErrBookingNotFound
}

// CancelBooking flips the booking to CANCELLED under the room's writer lock,
// so a freed range is visible to the next availability check the moment the
// call returns.
func (db *DB) CancelBooking(ctx context.Context, bookingID string) (*engine.Booking, error) {
	rs, err := db.roomOfBooking(bookingID)
	if err != nil {
		return nil, err
	}

	if err := db.acquireWrite(ctx, rs); err != nil {
		return nil, err
	}
	defer db.releaseWrite(rs)

	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, b := range rs.bookings {
		if b.ID != bookingID {
			continue
		}

		if b.Status == engine.StatusCancelled {
			return nil, engine.ErrAlreadyCancelled
		}

		b.Status = engine.StatusCancelled

		return cloneBooking(b), nil
	}

	return nil, engine.ErrBookingNotFound
}

func (db *DB) roomOfBooking(bookingID string) (*roomState, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	roomID, ok := db.bookingRooms[bookingID]
	if !ok {
		return nil, engine.ErrBookingNotFound
	}

	return db.rooms[roomID], nil
}

func cloneBooking(b *engine.Booking) *engine.Booking {
	c := *b
	c.AddOns = append([]engine.AddOn(nil), b.AddOns...)

	return &c
}
