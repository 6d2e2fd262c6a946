package model

import (
	"testing"

	"github.com/google/uuid"
)

func TestRoomSexTypeAccepts(t *testing.T) {
	tests := []struct {
		name     string
		roomType RoomSexType
		sex      Sex
		want     bool
	}{
		{"A房接纳A", RoomSexA, SexA, true},
		{"A房拒绝B", RoomSexA, SexB, false},
		{"B房接纳B", RoomSexB, SexB, true},
		{"B房拒绝A", RoomSexB, SexA, false},
		{"混合房接纳A", RoomSexMixed, SexA, true},
		{"混合房接纳B", RoomSexMixed, SexB, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.roomType.Accepts(tt.sex); got != tt.want {
				t.Errorf("Accepts(%s) = %v, want %v", tt.sex, got, tt.want)
			}
		})
	}
}

func TestRoomStateOccupancy(t *testing.T) {
	room := &Room{BaseModel: NewBaseModel(), Capacity: 4}
	state := &RoomState{
		Room:    room,
		EventID: uuid.New(),
		Occupants: []*Attendee{
			{BaseModel: NewBaseModel(), Sex: SexA},
			{BaseModel: NewBaseModel(), Sex: SexA},
			{BaseModel: NewBaseModel(), Sex: SexA},
		},
	}

	if got := state.Occupancy(); got != 3 {
		t.Errorf("Occupancy() = %d, want 3", got)
	}
	if got := state.AvailableCapacity(); got != 1 {
		t.Errorf("AvailableCapacity() = %d, want 1", got)
	}
	if state.IsFull() {
		t.Error("IsFull() = true, want false")
	}
	if got := state.FillRate(); got != 0.75 {
		t.Errorf("FillRate() = %f, want 0.75", got)
	}

	state.Occupants = append(state.Occupants, &Attendee{BaseModel: NewBaseModel(), Sex: SexA})
	if !state.IsFull() {
		t.Error("IsFull() = false, want true after filling")
	}
}

func TestRoomStateContains(t *testing.T) {
	a := &Attendee{BaseModel: NewBaseModel(), Sex: SexA}
	state := &RoomState{
		Room:      &Room{BaseModel: NewBaseModel(), Capacity: 2},
		Occupants: []*Attendee{a},
	}

	if !state.Contains(a.ID) {
		t.Error("Contains() = false for an occupant")
	}
	if state.Contains(uuid.New()) {
		t.Error("Contains() = true for a stranger")
	}
}

func TestAttendeeAssignment(t *testing.T) {
	a := &Attendee{BaseModel: NewBaseModel(), Sex: SexB}
	if a.IsAssigned() {
		t.Error("IsAssigned() = true for fresh attendee")
	}

	roomID := uuid.New()
	a.RoomID = &roomID
	if !a.IsAssigned() {
		t.Error("IsAssigned() = false after assignment")
	}
	if !a.AssignedTo(roomID) {
		t.Error("AssignedTo() = false for the assigned room")
	}
	if a.AssignedTo(uuid.New()) {
		t.Error("AssignedTo() = true for another room")
	}
}
