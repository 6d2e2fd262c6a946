package stats

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/zhusu/zhusu/pkg/model"
)

func makeAttendee(sex model.Sex, assigned bool, opts ...func(*model.Attendee)) *model.Attendee {
	a := &model.Attendee{BaseModel: model.NewBaseModel(), Sex: sex}
	if assigned {
		id := uuid.New()
		a.RoomID = &id
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func vip(a *model.Attendee)     { a.IsVIP = true }
func elderly(a *model.Attendee) { a.IsElderly = true }

func makeState(number string, capacity, occupied int) *model.RoomState {
	occupants := make([]*model.Attendee, occupied)
	for i := range occupants {
		occupants[i] = makeAttendee(model.SexA, true)
	}
	return &model.RoomState{
		Room: &model.Room{
			BaseModel: model.NewBaseModel(),
			Number:    number,
			Capacity:  capacity,
		},
		Occupants: occupants,
	}
}

func TestAnalyzeEmptySnapshot(t *testing.T) {
	metrics := NewOccupancyAnalyzer().Analyze(nil, nil)

	if metrics.TotalAttendees != 0 || metrics.TotalRooms != 0 {
		t.Fatalf("metrics = %+v, want zeros", metrics)
	}
	if metrics.AssignmentRate != 0 || metrics.OccupancyRate != 0 {
		t.Error("rates should be 0 for empty input")
	}
}

func TestAnalyzeAttendeeCounts(t *testing.T) {
	attendees := []*model.Attendee{
		makeAttendee(model.SexA, true, vip),
		makeAttendee(model.SexA, false),
		makeAttendee(model.SexB, true, elderly),
		makeAttendee(model.SexB, true),
	}

	metrics := NewOccupancyAnalyzer().Analyze(attendees, nil)

	if metrics.TotalAttendees != 4 || metrics.AssignedAttendees != 3 || metrics.UnassignedAttendees != 1 {
		t.Fatalf("counts = %d/%d/%d, want 4/3/1",
			metrics.TotalAttendees, metrics.AssignedAttendees, metrics.UnassignedAttendees)
	}
	if metrics.AssignmentRate != 75 {
		t.Errorf("AssignmentRate = %f, want 75", metrics.AssignmentRate)
	}

	sexA := metrics.BySex[model.SexA]
	if sexA.Total != 2 || sexA.Assigned != 1 || sexA.AssignmentRate != 50 {
		t.Errorf("BySex[A] = %+v", sexA)
	}
	if metrics.VIP.Total != 1 || metrics.VIP.Assigned != 1 || metrics.VIP.AssignmentRate != 100 {
		t.Errorf("VIP = %+v", metrics.VIP)
	}
	if metrics.Elderly.Assigned != 1 {
		t.Errorf("Elderly = %+v", metrics.Elderly)
	}
}

func TestAnalyzeRoomCounts(t *testing.T) {
	states := []*model.RoomState{
		makeState("101", 4, 4), // 满
		makeState("102", 4, 2),
		makeState("103", 2, 0), // 空
	}

	metrics := NewOccupancyAnalyzer().Analyze(nil, states)

	if metrics.TotalRooms != 3 || metrics.TotalCapacity != 10 || metrics.TotalOccupied != 6 {
		t.Fatalf("rooms/capacity/occupied = %d/%d/%d, want 3/10/6",
			metrics.TotalRooms, metrics.TotalCapacity, metrics.TotalOccupied)
	}
	if metrics.OccupancyRate != 60 {
		t.Errorf("OccupancyRate = %f, want 60", metrics.OccupancyRate)
	}
	if metrics.FullRooms != 1 || metrics.EmptyRooms != 1 {
		t.Errorf("full/empty = %d/%d, want 1/1", metrics.FullRooms, metrics.EmptyRooms)
	}

	// 房间统计按利用率降序
	if metrics.RoomStats[0].Number != "101" || metrics.RoomStats[2].Number != "103" {
		t.Errorf("RoomStats order = %v", metrics.RoomStats)
	}
}

func TestAnalyzeUtilizationSpread(t *testing.T) {
	uniform := NewOccupancyAnalyzer().Analyze(nil, []*model.RoomState{
		makeState("101", 4, 2),
		makeState("102", 4, 2),
	})
	if uniform.UtilizationSpread != 0 {
		t.Errorf("UtilizationSpread = %f for uniform fill, want 0", uniform.UtilizationSpread)
	}

	// 利用率 100% 与 0%：标准差 50
	skewed := NewOccupancyAnalyzer().Analyze(nil, []*model.RoomState{
		makeState("101", 4, 4),
		makeState("102", 4, 0),
	})
	if math.Abs(skewed.UtilizationSpread-50) > 1e-9 {
		t.Errorf("UtilizationSpread = %f, want 50", skewed.UtilizationSpread)
	}
}
