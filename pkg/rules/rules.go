// Package rules 提供住宿分配的纯规则谓词
//
// 所有谓词均为无副作用的纯函数，由校验器、分配操作与自动规划器
// 按各自的语义组合使用。硬规则决定能否入住，软规则只产生警告。
package rules

import (
	"github.com/google/uuid"

	"github.com/zhusu/zhusu/pkg/model"
)

// ---- 硬规则 ----

// HasCapacity 检查房间是否还有剩余床位
func HasCapacity(state *model.RoomState) bool {
	return len(state.Occupants) < state.Room.Capacity
}

// HasCapacityFor 检查房间是否能再容纳 n 名参会者
func HasCapacityFor(state *model.RoomState, n int) bool {
	return len(state.Occupants)+n <= state.Room.Capacity
}

// SexCompatible 检查参会者性别与房间性别属性是否相容
func SexCompatible(room *model.Room, attendee *model.Attendee) bool {
	return room.SexType.Accepts(attendee.Sex)
}

// AccessibilityOK 检查老年参会者的无障碍要求（非老年人恒为真）
func AccessibilityOK(room *model.Room, attendee *model.Attendee) bool {
	return !attendee.IsElderly || room.IsGroundFloorSuitable
}

// SameEvent 检查房间与参会者是否属于同一活动
func SameEvent(state *model.RoomState, attendee *model.Attendee) bool {
	return state.EventID == attendee.EventID
}

// ---- 软规则（仅产生警告） ----

// WouldMixRoom 检查入住是否会打破混合房间内的性别同质性
func WouldMixRoom(state *model.RoomState, attendee *model.Attendee) bool {
	if state.Room.SexType != model.RoomSexMixed {
		return false
	}
	for _, o := range state.Occupants {
		if o.Sex != attendee.Sex {
			return true
		}
	}
	return false
}

// VIPIntoPlainRoom 检查是否将贵宾安排进普通房间
func VIPIntoPlainRoom(room *model.Room, attendee *model.Attendee) bool {
	return attendee.IsVIP && !room.IsVIP
}

// ElderlyOffGroundFloor 检查是否将老年人安排进不便利的楼层
func ElderlyOffGroundFloor(room *model.Room, attendee *model.Attendee) bool {
	return attendee.IsElderly && !room.IsGroundFloorSuitable
}

// WouldReplaceAssignment 检查参会者是否已有其他房间的分配
func WouldReplaceAssignment(attendee *model.Attendee, roomID uuid.UUID) bool {
	return attendee.RoomID != nil && *attendee.RoomID != roomID
}
