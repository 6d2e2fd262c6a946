package model

import (
	"time"

	"github.com/google/uuid"
)

// Attendee 参会者
type Attendee struct {
	BaseModel
	EventID uuid.UUID `json:"event_id" db:"event_id"`
	Name    string    `json:"name" db:"name"`
	Sex     Sex       `json:"sex" db:"sex"`

	// 分配相关标记
	IsVIP     bool `json:"is_vip" db:"is_vip"`
	IsElderly bool `json:"is_elderly" db:"is_elderly"`
	IsLeader  bool `json:"is_leader" db:"is_leader"`

	// 当前入住房间（唯一事实来源，nil 表示未分配）
	RoomID *uuid.UUID `json:"room_id,omitempty" db:"room_id"`
}

// IsAssigned 检查参会者是否已分配房间
func (a *Attendee) IsAssigned() bool {
	return a.RoomID != nil
}

// AssignedTo 检查参会者是否入住指定房间
func (a *Attendee) AssignedTo(roomID uuid.UUID) bool {
	return a.RoomID != nil && *a.RoomID == roomID
}

// AssignmentLog 分配变更日志（追加式审计记录，引擎只写不读）
type AssignmentLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	AttendeeID uuid.UUID  `json:"attendee_id" db:"attendee_id"`
	FromRoomID *uuid.UUID `json:"from_room_id,omitempty" db:"from_room_id"`
	ToRoomID   *uuid.UUID `json:"to_room_id,omitempty" db:"to_room_id"`
	Operation  string     `json:"operation" db:"operation"` // assign/unassign/bulk/auto
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
