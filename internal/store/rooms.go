package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/lithammer/shortuuid/v3"
)

type RoomState string

const (
	RoomStateActive   RoomState = "ACTIVE"
	RoomStateInactive RoomState = "INACTIVE"
)

type Room struct {
	ID        string    `json:"id"`
	HostID    string    `json:"hostId"`
	PlayerIDs []string  `json:"playerIds"`
	State     RoomState `json:"state"`
	Created   time.Time `json:"created"`
}

// RoomUpdate is a single field update applied to a stored room.
// Implementations are StateUpdate, PlayerIDsUpdate and HostUpdate.
type RoomUpdate interface {
	apply(room *Room)
	field() string
}

type StateUpdate struct {
	State RoomState
}

func (u StateUpdate) apply(room *Room) { room.State = u.State }
func (StateUpdate) field() string      { return "state" }

type PlayerIDsUpdate struct {
	PlayerIDs []string
}

func (u PlayerIDsUpdate) apply(room *Room) { room.PlayerIDs = slices.Clone(u.PlayerIDs) }
func (PlayerIDsUpdate) field() string      { return "playerIds" }

type HostUpdate struct {
	HostID string
}

func (u HostUpdate) apply(room *Room) { room.HostID = u.HostID }
func (HostUpdate) field() string      { return "hostId" }

var errNoRoomSlotAvailable = errors.New("no room slot available")

func newRoomID() string {
	shortid := shortuuid.New()
	return shortid[:5]
}

// CreateRoom stores a new inactive room owned by hostID under a fresh
// short id.
func (s *Store) CreateRoom(ctx context.Context, hostID string) (Room, error) {
	room := Room{
		HostID:    hostID,
		PlayerIDs: []string{},
		State:     RoomStateInactive,
		Created:   time.Now().UTC(),
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		for retries := 50; retries > 0; retries-- {
			id := newRoomID()
			found, err := exists(txn, roomPrefix+id)
			if err != nil {
				return err
			}
			if !found {
				room.ID = id
				return setJSON(txn, roomPrefix+id, room)
			}
		}
		return errNoRoomSlotAvailable
	})
	if err != nil {
		return Room{}, fmt.Errorf("create room: %w", err)
	}

	return room, nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (Room, error) {
	var room Room
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, roomPrefix+id, &room)
	})
	if err != nil {
		return Room{}, fmt.Errorf("get room %q: %w", id, err)
	}
	return room, nil
}

// UpdateRoom applies u to the room in a single transaction.
func (s *Store) UpdateRoom(ctx context.Context, id string, u RoomUpdate) error {
	return s.modifyRoom(ctx, id, "update room "+u.field(), u.apply)
}

// AppendPlayer adds playerID at the end of the room player list.
func (s *Store) AppendPlayer(ctx context.Context, id, playerID string) error {
	return s.modifyRoom(ctx, id, "append player", func(room *Room) {
		room.PlayerIDs = append(room.PlayerIDs, playerID)
	})
}

func (s *Store) modifyRoom(ctx context.Context, id, op string, fn func(room *Room)) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		var room Room
		if err := getJSON(txn, roomPrefix+id, &room); err != nil {
			return err
		}
		fn(&room)
		return setJSON(txn, roomPrefix+id, room)
	})
	if err != nil {
		return fmt.Errorf("%s %q: %w", op, id, err)
	}
	return nil
}
