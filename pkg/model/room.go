package model

import (
	"github.com/google/uuid"
)

// Accommodation 住宿点（隶属于某一活动）
type Accommodation struct {
	BaseModel
	EventID uuid.UUID `json:"event_id" db:"event_id"`
	Name    string    `json:"name" db:"name"`
	Address string    `json:"address,omitempty" db:"address"`
}

// Building 楼栋（隶属于某一住宿点）
type Building struct {
	BaseModel
	AccommodationID uuid.UUID `json:"accommodation_id" db:"accommodation_id"`
	Name            string    `json:"name" db:"name"`
}

// Room 房间
type Room struct {
	BaseModel
	BuildingID uuid.UUID   `json:"building_id" db:"building_id"`
	Number     string      `json:"number" db:"number"`
	Capacity   int         `json:"capacity" db:"capacity"`
	SexType    RoomSexType `json:"sex_type" db:"sex_type"`
	Floor      int         `json:"floor" db:"floor"`

	// 可用性与属性标记
	IsAvailable           bool `json:"is_available" db:"is_available"`
	IsGroundFloorSuitable bool `json:"is_ground_floor_suitable" db:"is_ground_floor_suitable"`
	IsVIP                 bool `json:"is_vip" db:"is_vip"`
}

// RoomState 房间快照（房间及其当前住客，用于规则判定与规划）
type RoomState struct {
	Room      *Room       `json:"room"`
	EventID   uuid.UUID   `json:"event_id"`
	Occupants []*Attendee `json:"occupants"`
}

// Occupancy 当前入住人数（由住客列表派生，不单独存储）
func (s *RoomState) Occupancy() int {
	return len(s.Occupants)
}

// AvailableCapacity 剩余可入住人数
func (s *RoomState) AvailableCapacity() int {
	return s.Room.Capacity - len(s.Occupants)
}

// IsFull 检查房间是否已满
func (s *RoomState) IsFull() bool {
	return len(s.Occupants) >= s.Room.Capacity
}

// Contains 检查某参会者是否已在该房间内
func (s *RoomState) Contains(attendeeID uuid.UUID) bool {
	for _, o := range s.Occupants {
		if o.ID == attendeeID {
			return true
		}
	}
	return false
}

// FillRate 房间入住率（0~1，容量为零时返回 0）
func (s *RoomState) FillRate() float64 {
	if s.Room.Capacity <= 0 {
		return 0
	}
	return float64(len(s.Occupants)) / float64(s.Room.Capacity)
}
