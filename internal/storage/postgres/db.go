package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	cache "github.com/patrickmn/go-cache"

	"github.com/lodgekit/reserve/internal/engine"
	"github.com/lodgekit/reserve/internal/logger"
)

// pq error codes mapped to the engine taxonomy.
const (
	codeExclusionViolation = "23P01"
	codeLockNotAvailable   = "55P03"
)

const (
	defaultLockWait = 2 * time.Second
	defaultCacheTTL = 5 * time.Minute
)

type Config struct {
	L   *logger.Logger
	DSN string
	// LockWait becomes the per-transaction lock_timeout; exhausting it maps
	// to engine.ErrResourceBusy.
	LockWait time.Duration
	// CacheTTL bounds the inventory read cache. Inventory is immutable to
	// the engine, the TTL only covers out-of-band reseeding.
	CacheTTL time.Duration
}

type DB struct {
	db       *sql.DB
	l        *logger.Logger
	lockWait time.Duration
	// inventory is read-mostly, so hotel/room/add-on lookups go through a
	// small cache instead of hitting the database on every quote.
	inventory *cache.Cache
}

func Open(ctx context.Context, conf Config) (*DB, error) {
	sqlDB, err := sql.Open("postgres", conf.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	lockWait := conf.LockWait
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}

	cacheTTL := conf.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	return &DB{
		db:        sqlDB,
		l:         conf.L,
		lockWait:  lockWait,
		inventory: cache.New(cacheTTL, cacheTTL),
	}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) SaveHotel(ctx context.Context, hotel *engine.Hotel) error {
	_, err := db.db.ExecContext(
		ctx,
		`INSERT INTO hotels (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		hotel.ID, hotel.Name,
	)
	if err != nil {
		return fmt.Errorf("insert hotel %v: %w", hotel.ID, err)
	}

	return nil
}

func (db *DB) SaveRooms(ctx context.Context, rooms []*engine.Room) error {
	for _, room := range rooms {
		_, err := db.db.ExecContext(
			ctx,
			`INSERT INTO rooms (id, hotel_id, room_number, room_type, base_price_per_night)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			room.ID, room.HotelID, room.RoomNumber, string(room.Type), room.BasePricePerNight,
		)
		if err != nil {
			return fmt.Errorf("insert room %v: %w", room.ID, err)
		}
	}

	return nil
}

func (db *DB) SaveAddOns(ctx context.Context, addOns []*engine.AddOn) error {
	for _, addOn := range addOns {
		_, err := db.db.ExecContext(
			ctx,
			`INSERT INTO add_ons (name, price_per_night) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			addOn.Name, addOn.PricePerNight,
		)
		if err != nil {
			return fmt.Errorf("insert add-on %q: %w", addOn.Name, err)
		}
	}

	return nil
}

func (db *DB) GetHotel(ctx context.Context, hotelID string) (*engine.Hotel, error) {
	key := "hotel:" + hotelID
	if cached, ok := db.inventory.Get(key); ok {
		h := *cached.(*engine.Hotel) //nolint:forcetypeassert

		return &h, nil
	}

	hotel := engine.Hotel{ID: hotelID}

	err := db.db.QueryRowContext(ctx, `SELECT name FROM hotels WHERE id = $1`, hotelID).Scan(&hotel.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrHotelNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("select hotel %v: %w", hotelID, err)
	}

	rows, err := db.db.QueryContext(ctx, `SELECT id FROM rooms WHERE hotel_id = $1 ORDER BY id`, hotelID)
	if err != nil {
		return nil, fmt.Errorf("select room ids of hotel %v: %w", hotelID, err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var roomID string
		if err := rows.Scan(&roomID); err != nil {
			return nil, fmt.Errorf("scan room id: %w", err)
		}

		hotel.RoomIDs = append(hotel.RoomIDs, roomID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate room ids: %w", err)
	}

	db.inventory.SetDefault(key, &hotel)

	h := hotel

	return &h, nil
}

func (db *DB) ListRooms(ctx context.Context, hotelID string) ([]*engine.Room, error) {
	key := "rooms:" + hotelID
	if cached, ok := db.inventory.Get(key); ok {
		return cloneRooms(cached.([]*engine.Room)), nil //nolint:forcetypeassert
	}

	if _, err := db.GetHotel(ctx, hotelID); err != nil {
		return nil, err
	}

	rows, err := db.db.QueryContext(
		ctx,
		`SELECT id, hotel_id, room_number, room_type, base_price_per_night
		 FROM rooms WHERE hotel_id = $1 ORDER BY id`,
		hotelID,
	)
	if err != nil {
		return nil, fmt.Errorf("select rooms of hotel %v: %w", hotelID, err)
	}
	defer rows.Close() //nolint:errcheck

	var rooms []*engine.Room

	for rows.Next() {
		var room engine.Room

		if err := rows.Scan(&room.ID, &room.HotelID, &room.RoomNumber, &room.Type, &room.BasePricePerNight); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}

		rooms = append(rooms, &room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}

	db.inventory.SetDefault(key, rooms)

	return cloneRooms(rooms), nil
}

func (db *DB) GetRoom(ctx context.Context, hotelID, roomID string) (*engine.Room, error) {
	key := "room:" + roomID
	if cached, ok := db.inventory.Get(key); ok {
		room := *cached.(*engine.Room) //nolint:forcetypeassert
		if room.HotelID != hotelID {
			return nil, engine.ErrRoomNotFound
		}

		return &room, nil
	}

	var room engine.Room

	err := db.db.QueryRowContext(
		ctx,
		`SELECT id, hotel_id, room_number, room_type, base_price_per_night FROM rooms WHERE id = $1`,
		roomID,
	).Scan(&room.ID, &room.HotelID, &room.RoomNumber, &room.Type, &room.BasePricePerNight)

	if errors.Is(err, sql.ErrNoRows) {
		if _, herr := db.GetHotel(ctx, hotelID); herr != nil {
			return nil, herr
		}

		return nil, engine.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("select room %v: %w", roomID, err)
	}

	db.inventory.SetDefault(key, &room)

	if room.HotelID != hotelID {
		if _, herr := db.GetHotel(ctx, hotelID); herr != nil {
			return nil, herr
		}

		return nil, engine.ErrRoomNotFound
	}

	r := room

	return &r, nil
}

func (db *DB) GetAddOn(ctx context.Context, name string) (*engine.AddOn, error) {
	key := "addon:" + name
	if cached, ok := db.inventory.Get(key); ok {
		a := *cached.(*engine.AddOn) //nolint:forcetypeassert

		return &a, nil
	}

	var addOn engine.AddOn

	err := db.db.QueryRowContext(
		ctx,
		`SELECT name, price_per_night FROM add_ons WHERE name = $1`,
		name,
	).Scan(&addOn.Name, &addOn.PricePerNight)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrAddOnNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("select add-on %q: %w", name, err)
	}

	db.inventory.SetDefault(key, &addOn)

	a := addOn

	return &a, nil
}

func (db *DB) UnavailableRooms(ctx context.Context, hotelID string, from, to time.Time) (map[string]struct{}, error) {
	rows, err := db.db.QueryContext(
		ctx,
		`SELECT DISTINCT room_id FROM bookings
		 WHERE hotel_id = $1 AND status = $2 AND check_in < $4 AND check_out > $3`,
		hotelID, string(engine.StatusActive), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select conflicting rooms of hotel %v: %w", hotelID, err)
	}
	defer rows.Close() //nolint:errcheck

	busy := make(map[string]struct{})

	for rows.Next() {
		var roomID string
		if err := rows.Scan(&roomID); err != nil {
			return nil, fmt.Errorf("scan conflicting room id: %w", err)
		}

		busy[roomID] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicting rooms: %w", err)
	}

	return busy, nil
}

// InsertBooking serializes per room by locking the room row, then relies on
// the exclusion constraint: a conflicting insert can never commit, whichever
// side of the race it is on.
func (db *DB) InsertBooking(ctx context.Context, booking *engine.Booking) (err error) {
	tx, err := db.begin(ctx)
	if err != nil {
		return err
	}
	defer db.finish(tx, &err)

	if err = db.lockRoom(ctx, tx, booking.RoomID); err != nil {
		return err
	}

	addOns, err := json.Marshal(booking.AddOns)
	if err != nil {
		return fmt.Errorf("marshal add-ons of booking %v: %w", booking.ID, err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO bookings (id, room_id, hotel_id, check_in, check_out, add_ons, total_price, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		booking.ID,
		booking.RoomID,
		booking.HotelID,
		booking.CheckIn,
		booking.CheckOut,
		addOns,
		booking.TotalPrice,
		string(booking.Status),
		booking.CreatedAt,
	)
	if err != nil {
		return mapInsertError(err, booking)
	}

	return nil
}

func (db *DB) GetBooking(ctx context.Context, bookingID string) (*engine.Booking, error) {
	booking, err := scanBooking(db.db.QueryRowContext(
		ctx,
		`SELECT id, room_id, hotel_id, check_in, check_out, add_ons, total_price, status, created_at
		 FROM bookings WHERE id = $1`,
		bookingID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrBookingNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("select booking %v: %w", bookingID, err)
	}

	return booking, nil
}

func (db *DB) CancelBooking(ctx context.Context, bookingID string) (_ *engine.Booking, err error) {
	tx, err := db.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer db.finish(tx, &err)

	var roomID string

	err = tx.QueryRowContext(ctx, `SELECT room_id FROM bookings WHERE id = $1`, bookingID).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrBookingNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("select room of booking %v: %w", bookingID, err)
	}

	// Same lock order as InsertBooking: room row first.
	if err = db.lockRoom(ctx, tx, roomID); err != nil {
		return nil, err
	}

	booking, err := scanBooking(tx.QueryRowContext(
		ctx,
		`SELECT id, room_id, hotel_id, check_in, check_out, add_ons, total_price, status, created_at
		 FROM bookings WHERE id = $1 FOR UPDATE`,
		bookingID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrBookingNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("select booking %v for update: %w", bookingID, err)
	}

	if booking.Status == engine.StatusCancelled {
		return nil, engine.ErrAlreadyCancelled
	}

	if _, err = tx.ExecContext(
		ctx,
		`UPDATE bookings SET status = $2 WHERE id = $1`,
		bookingID, string(engine.StatusCancelled),
	); err != nil {
		return nil, fmt.Errorf("update status of booking %v: %w", bookingID, err)
	}

	booking.Status = engine.StatusCancelled

	return booking, nil
}

func (db *DB) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	// Bound every row-lock wait in this transaction.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", db.lockWait.Milliseconds())); err != nil {
		_ = tx.Rollback()

		return nil, fmt.Errorf("set lock_timeout: %w", err)
	}

	return tx, nil
}

// finish commits on success and rolls back on error, keeping failed calls
// all-or-nothing.
func (db *DB) finish(tx *sql.Tx, err *error) {
	if *err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.l.LogErrorf("Could not rollback booking transaction: %v", rbErr.Error())
		}

		return
	}

	if cmErr := tx.Commit(); cmErr != nil {
		*err = fmt.Errorf("commit booking transaction: %w", cmErr)
	}
}

func (db *DB) lockRoom(ctx context.Context, tx *sql.Tx, roomID string) error {
	var id string

	err := tx.QueryRowContext(ctx, `SELECT id FROM rooms WHERE id = $1 FOR UPDATE`, roomID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.ErrRoomNotFound
	}

	if err != nil {
		if isPQCode(err, codeLockNotAvailable) {
			return engine.ErrResourceBusy
		}

		return fmt.Errorf("lock room %v: %w", roomID, err)
	}

	return nil
}

func mapInsertError(err error, booking *engine.Booking) error {
	if isPQCode(err, codeExclusionViolation) {
		return engine.NewConflictError(booking.RoomID, booking.CheckIn, booking.CheckOut)
	}

	if isPQCode(err, codeLockNotAvailable) {
		return engine.ErrResourceBusy
	}

	return fmt.Errorf("insert booking %v: %w", booking.ID, err)
}

func isPQCode(err error, code string) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*engine.Booking, error) {
	var (
		booking engine.Booking
		addOns  []byte
		status  string
	)

	if err := row.Scan(
		&booking.ID,
		&booking.RoomID,
		&booking.HotelID,
		&booking.CheckIn,
		&booking.CheckOut,
		&addOns,
		&booking.TotalPrice,
		&status,
		&booking.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(addOns, &booking.AddOns); err != nil {
		return nil, fmt.Errorf("unmarshal add-ons of booking %v: %w", booking.ID, err)
	}

	booking.Status = engine.BookingStatus(status)
	booking.CheckIn = engine.NormalizeDate(booking.CheckIn)
	booking.CheckOut = engine.NormalizeDate(booking.CheckOut)

	return &booking, nil
}

func cloneRooms(rooms []*engine.Room) []*engine.Room {
	out := make([]*engine.Room, 0, len(rooms))

	for _, room := range rooms {
		r := *room
		out = append(out, &r)
	}

	return out
}
