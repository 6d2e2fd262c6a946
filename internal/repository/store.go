// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhusu/zhusu/internal/database"
	"github.com/zhusu/zhusu/pkg/errors"
	"github.com/zhusu/zhusu/pkg/model"
)

// Store 引擎数据访问实现
//
// 写入原语在事务内以 SELECT ... FOR UPDATE 锁住目标房间，
// 在锁内复核容量与性别，复核失败返回 CONCURRENCY_CONFLICT。
// 每次写入同时向 assignment_log 追加一条审计记录；该表只写
// 不读，入住事实的唯一来源是 attendees.room_id。
type Store struct {
	db        *database.DB
	attendees *AttendeeRepository
	rooms     *RoomRepository
}

// NewStore 创建引擎数据访问实现
func NewStore(db *database.DB) *Store {
	return &Store{
		db:        db,
		attendees: NewAttendeeRepository(db),
		rooms:     NewRoomRepository(db),
	}
}

// Attendees 返回参会者仓储
func (s *Store) Attendees() *AttendeeRepository {
	return s.attendees
}

// Rooms 返回房间仓储
func (s *Store) Rooms() *RoomRepository {
	return s.rooms
}

// GetAttendee 按 ID 加载参会者
func (s *Store) GetAttendee(ctx context.Context, id uuid.UUID) (*model.Attendee, error) {
	attendee, err := s.attendees.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Database(err, "get attendee")
	}
	if attendee == nil {
		return nil, errors.NotFound("attendee", id.String())
	}
	return attendee, nil
}

// GetRoomState 加载房间及其当前住客
func (s *Store) GetRoomState(ctx context.Context, roomID uuid.UUID) (*model.RoomState, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, errors.Database(err, "get room")
	}
	if room == nil {
		return nil, errors.NotFound("room", roomID.String())
	}

	eventID, err := s.rooms.GetEventID(ctx, roomID)
	if err != nil {
		return nil, errors.Database(err, "get room event")
	}

	occupants, err := s.attendees.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, errors.Database(err, "list occupants")
	}

	return &model.RoomState{Room: room, EventID: eventID, Occupants: occupants}, nil
}

// ListAttendeesByIDs 按 ID 列表加载某活动的参会者
func (s *Store) ListAttendeesByIDs(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]*model.Attendee, error) {
	attendees, err := s.attendees.ListByIDs(ctx, eventID, ids)
	if err != nil {
		return nil, errors.Database(err, "list attendees by ids")
	}
	return attendees, nil
}

// ListUnassignedAttendees 列出某活动全部未分配参会者
func (s *Store) ListUnassignedAttendees(ctx context.Context, eventID uuid.UUID) ([]*model.Attendee, error) {
	attendees, err := s.attendees.ListUnassigned(ctx, eventID)
	if err != nil {
		return nil, errors.Database(err, "list unassigned attendees")
	}
	return attendees, nil
}

// ListAvailableRoomStates 列出某活动全部可用房间及住客
func (s *Store) ListAvailableRoomStates(ctx context.Context, eventID uuid.UUID) ([]*model.RoomState, error) {
	rooms, err := s.rooms.ListAvailableByEvent(ctx, eventID)
	if err != nil {
		return nil, errors.Database(err, "list available rooms")
	}

	states := make([]*model.RoomState, 0, len(rooms))
	for _, room := range rooms {
		occupants, err := s.attendees.ListByRoom(ctx, room.ID)
		if err != nil {
			return nil, errors.Database(err, "list occupants")
		}
		states = append(states, &model.RoomState{Room: room, EventID: eventID, Occupants: occupants})
	}
	return states, nil
}

// SetAttendeeRoom 设置或清除单个参会者的房间
//
// 换房时旧房的腾退与新房的入住由同一条 UPDATE 完成，不存在
// 只清不设的中间状态。
func (s *Store) SetAttendeeRoom(ctx context.Context, attendeeID uuid.UUID, roomID *uuid.UUID) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		fromRoomID, err := lockAttendee(ctx, tx, attendeeID)
		if err != nil {
			return err
		}

		if roomID != nil {
			if err := recheckRoom(ctx, tx, *roomID, []uuid.UUID{attendeeID}); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE attendees SET room_id = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`,
			attendeeID, roomID, time.Now(),
		); err != nil {
			return errors.Database(err, "set attendee room")
		}

		operation := "assign"
		if roomID == nil {
			operation = "unassign"
		}
		return appendLog(ctx, tx, attendeeID, fromRoomID, roomID, operation)
	})
}

// SetManyAttendeeRooms 将一批参会者放入同一房间（单事务，全有或全无）
func (s *Store) SetManyAttendeeRooms(ctx context.Context, attendeeIDs []uuid.UUID, roomID uuid.UUID) error {
	if len(attendeeIDs) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		fromRooms := make(map[uuid.UUID]*uuid.UUID, len(attendeeIDs))
		for _, id := range attendeeIDs {
			fromRoomID, err := lockAttendee(ctx, tx, id)
			if err != nil {
				return err
			}
			fromRooms[id] = fromRoomID
		}

		if err := recheckRoom(ctx, tx, roomID, attendeeIDs); err != nil {
			return err
		}

		placeholders := make([]string, len(attendeeIDs))
		args := make([]interface{}, 0, len(attendeeIDs)+2)
		args = append(args, roomID, time.Now())
		for i, id := range attendeeIDs {
			placeholders[i] = fmt.Sprintf("$%d", i+3)
			args = append(args, id)
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`UPDATE attendees SET room_id = $1, updated_at = $2 WHERE id IN (%s) AND deleted_at IS NULL`,
			strings.Join(placeholders, ","),
		), args...); err != nil {
			return errors.Database(err, "set attendee rooms")
		}

		rid := roomID
		for _, id := range attendeeIDs {
			if err := appendLog(ctx, tx, id, fromRooms[id], &rid, "bulk"); err != nil {
				return err
			}
		}
		return nil
	})
}

// lockAttendee 锁住参会者行并返回其当前房间
func lockAttendee(ctx context.Context, tx *sql.Tx, attendeeID uuid.UUID) (*uuid.UUID, error) {
	var roomID uuid.NullUUID
	err := tx.QueryRowContext(ctx,
		`SELECT room_id FROM attendees WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		attendeeID,
	).Scan(&roomID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("attendee", attendeeID.String())
	}
	if err != nil {
		return nil, errors.Database(err, "lock attendee")
	}
	if !roomID.Valid {
		return nil, nil
	}
	return &roomID.UUID, nil
}

// recheckRoom 在房间行锁内复核容量与性别
//
// 调用方的快照可能已经过期，这里是防止超卖的最后一道闸。
func recheckRoom(ctx context.Context, tx *sql.Tx, roomID uuid.UUID, attendeeIDs []uuid.UUID) error {
	var capacity int
	var sexType model.RoomSexType
	err := tx.QueryRowContext(ctx,
		`SELECT capacity, sex_type FROM rooms WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		roomID,
	).Scan(&capacity, &sexType)
	if err == sql.ErrNoRows {
		return errors.NotFound("room", roomID.String())
	}
	if err != nil {
		return errors.Database(err, "lock room")
	}

	// 性别复核
	if sexType != model.RoomSexMixed {
		placeholders := make([]string, len(attendeeIDs))
		args := make([]interface{}, 0, len(attendeeIDs)+1)
		for i, id := range attendeeIDs {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, id)
		}
		args = append(args, string(sexType))

		var mismatches int
		if err := tx.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT COUNT(*) FROM attendees WHERE id IN (%s) AND sex <> $%d AND deleted_at IS NULL`,
			strings.Join(placeholders, ","), len(attendeeIDs)+1,
		), args...).Scan(&mismatches); err != nil {
			return errors.Database(err, "recheck sex")
		}
		if mismatches > 0 {
			return errors.ConcurrencyConflict("room", "sex designation changed during commit")
		}
	}

	// 容量复核：现有住客（排除本批）+ 本批人数不得超过容量
	placeholders := make([]string, len(attendeeIDs))
	args := make([]interface{}, 0, len(attendeeIDs)+1)
	args = append(args, roomID)
	for i, id := range attendeeIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	var occupied int
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM attendees WHERE room_id = $1 AND id NOT IN (%s) AND deleted_at IS NULL`,
		strings.Join(placeholders, ","),
	), args...).Scan(&occupied); err != nil {
		return errors.Database(err, "recheck capacity")
	}
	if occupied+len(attendeeIDs) > capacity {
		return errors.ConcurrencyConflict("room", "occupancy changed during commit")
	}

	return nil
}

// appendLog 追加分配变更日志
func appendLog(ctx context.Context, tx *sql.Tx, attendeeID uuid.UUID, fromRoomID, toRoomID *uuid.UUID, operation string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO assignment_log (id, attendee_id, from_room_id, to_room_id, operation, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), attendeeID, fromRoomID, toRoomID, operation, time.Now(),
	); err != nil {
		return errors.Database(err, "append assignment log")
	}
	return nil
}
