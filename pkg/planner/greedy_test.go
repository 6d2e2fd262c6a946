package planner

import (
	"testing"

	"github.com/google/uuid"

	"github.com/zhusu/zhusu/pkg/model"
)

type snapshotBuilder struct {
	eventID   uuid.UUID
	attendees []*model.Attendee
	rooms     []*model.RoomState
}

func newSnapshotBuilder() *snapshotBuilder {
	return &snapshotBuilder{eventID: uuid.New()}
}

func (b *snapshotBuilder) addAttendee(name string, sex model.Sex, vip, elderly bool) *model.Attendee {
	a := &model.Attendee{
		BaseModel: model.NewBaseModel(),
		EventID:   b.eventID,
		Name:      name,
		Sex:       sex,
		IsVIP:     vip,
		IsElderly: elderly,
	}
	b.attendees = append(b.attendees, a)
	return a
}

func (b *snapshotBuilder) addRoom(number string, capacity int, sexType model.RoomSexType, opts ...func(*model.Room)) *model.RoomState {
	room := &model.Room{
		BaseModel:   model.NewBaseModel(),
		Number:      number,
		Capacity:    capacity,
		SexType:     sexType,
		IsAvailable: true,
	}
	for _, opt := range opts {
		opt(room)
	}
	state := &model.RoomState{Room: room, EventID: b.eventID, Occupants: []*model.Attendee{}}
	b.rooms = append(b.rooms, state)
	return state
}

func withVIP(r *model.Room)         { r.IsVIP = true }
func withGroundFloor(r *model.Room) { r.IsGroundFloorSuitable = true }
func unavailable(r *model.Room)     { r.IsAvailable = false }

func (b *snapshotBuilder) snapshot() *Snapshot {
	return &Snapshot{EventID: b.eventID, Attendees: b.attendees, Rooms: b.rooms}
}

func roomOf(t *testing.T, result *Result, attendeeID uuid.UUID) *uuid.UUID {
	t.Helper()
	for _, d := range result.Details {
		if d.AttendeeID == attendeeID {
			return d.RoomID
		}
	}
	t.Fatalf("no detail for attendee %s", attendeeID)
	return nil
}

func TestPlanAssignsAll(t *testing.T) {
	b := newSnapshotBuilder()
	b.addAttendee("a1", model.SexA, false, false)
	b.addAttendee("a2", model.SexA, false, false)
	b.addRoom("101", 2, model.RoomSexA)

	result := NewGreedyPlanner(DefaultWeights()).Plan(b.snapshot())

	if result.TotalAssigned != 2 || result.TotalUnassigned != 0 {
		t.Fatalf("assigned/unassigned = %d/%d, want 2/0", result.TotalAssigned, result.TotalUnassigned)
	}
}

func TestPlanVIPGetsVIPRoom(t *testing.T) {
	b := newSnapshotBuilder()
	regular := b.addAttendee("regular", model.SexA, false, false)
	vip := b.addAttendee("vip", model.SexA, true, false)
	plain := b.addRoom("101", 1, model.RoomSexA)
	vipRoom := b.addRoom("201", 1, model.RoomSexA, withVIP)

	result := NewGreedyPlanner(DefaultWeights()).Plan(b.snapshot())

	// 贵宾先处理，拿到贵宾房；普通参会者落入普通房
	if got := roomOf(t, result, vip.ID); got == nil || *got != vipRoom.Room.ID {
		t.Errorf("vip room = %v, want %s", got, vipRoom.Room.ID)
	}
	if got := roomOf(t, result, regular.ID); got == nil || *got != plain.Room.ID {
		t.Errorf("regular room = %v, want %s", got, plain.Room.ID)
	}
}

func TestPlanElderlyNeverOffGroundFloor(t *testing.T) {
	b := newSnapshotBuilder()
	elderly := b.addAttendee("elder", model.SexA, false, true)
	b.addRoom("301", 4, model.RoomSexA) // 楼上，无障碍不达标

	result := NewGreedyPlanner(DefaultWeights()).Plan(b.snapshot())

	if result.TotalUnassigned != 1 {
		t.Fatalf("TotalUnassigned = %d, want 1", result.TotalUnassigned)
	}
	d := result.Details[0]
	if d.AttendeeID != elderly.ID || d.RoomID != nil {
		t.Fatalf("detail = %+v, want unassigned elderly", d)
	}
	if d.Reason != "No suitable room found" {
		t.Errorf("Reason = %q, want %q", d.Reason, "No suitable room found")
	}
}

func TestPlanElderlyPrefersGroundFloor(t *testing.T) {
	b := newSnapshotBuilder()
	elderly := b.addAttendee("elder", model.SexB, false, true)
	b.addRoom("301", 2, model.RoomSexB)
	ground := b.addRoom("102", 2, model.RoomSexB, withGroundFloor)

	result := NewGreedyPlanner(DefaultWeights()).Plan(b.snapshot())

	if got := roomOf(t, result, elderly.ID); got == nil || *got != ground.Room.ID {
		t.Errorf("elderly room = %v, want ground-floor room %s", got, ground.Room.ID)
	}
}

func TestPlanInPassOccupancyVisible(t *testing.T) {
	b := newSnapshotBuilder()
	b.addAttendee("a1", model.SexA, false, false)
	b.addAttendee("a2", model.SexA, false, false)
	b.addAttendee("a3", model.SexA, false, false)
	b.addRoom("101", 2, model.RoomSexA)

	result := NewGreedyPlanner(DefaultWeights()).Plan(b.snapshot())

	// 容量在同一遍内被消耗：第三人装不下
	if result.TotalAssigned != 2 || result.TotalUnassigned != 1 {
		t.Fatalf("assigned/unassigned = %d/%d, want 2/1", result.TotalAssigned, result.TotalUnassigned)
	}
}

func TestPlanFillBonusPrefersOccupiedRoom(t *testing.T) {
	b := newSnapshotBuilder()
	newcomer := b.addAttendee("newcomer", model.SexA, false, false)
	empty := b.addRoom("101", 4, model.RoomSexA)
	half := b.addRoom("102", 4, model.RoomSexA)
	half.Occupants = append(half.Occupants, &model.Attendee{
		BaseModel: model.NewBaseModel(), EventID: b.eventID, Sex: model.SexA,
	})

	result := NewGreedyPlanner(DefaultWeights()).Plan(b.snapshot())

	if got := roomOf(t, result, newcomer.ID); got == nil || *got != half.Room.ID {
		t.Errorf("room = %v, want partially filled room %s (not %s)", got, half.Room.ID, empty.Room.ID)
	}
}

func TestPlanSkipsUnavailableRooms(t *testing.T) {
	b := newSnapshotBuilder()
	b.addAttendee("a1", model.SexA, false, false)
	b.addRoom("101", 4, model.RoomSexA, unavailable)

	result := NewGreedyPlanner(DefaultWeights()).Plan(b.snapshot())

	if result.TotalUnassigned != 1 {
		t.Fatalf("TotalUnassigned = %d, want 1", result.TotalUnassigned)
	}
}

func TestPlanDeterministic(t *testing.T) {
	build := func() (*Snapshot, []uuid.UUID) {
		b := newSnapshotBuilder()
		ids := make([]uuid.UUID, 0, 6)
		for i, spec := range []struct {
			sex          model.Sex
			vip, elderly bool
		}{
			{model.SexA, false, false},
			{model.SexB, true, false},
			{model.SexA, false, true},
			{model.SexB, false, false},
			{model.SexA, true, false},
			{model.SexB, false, true},
		} {
			a := b.addAttendee(string(rune('a'+i)), spec.sex, spec.vip, spec.elderly)
			ids = append(ids, a.ID)
		}
		b.addRoom("101", 2, model.RoomSexA, withGroundFloor)
		b.addRoom("102", 2, model.RoomSexB, withGroundFloor, withVIP)
		b.addRoom("201", 2, model.RoomSexMixed)
		return b.snapshot(), ids
	}

	// 两个内容相同的快照必须得到完全一致的方案。
	// uuid 不同无妨，按位置比较分配到的房间下标即可。
	snap1, _ := build()
	snap2, _ := build()

	planner := NewGreedyPlanner(DefaultWeights())
	r1 := planner.Plan(snap1)
	r2 := planner.Plan(snap2)

	if r1.TotalAssigned != r2.TotalAssigned || r1.TotalUnassigned != r2.TotalUnassigned {
		t.Fatalf("totals diverge: %d/%d vs %d/%d",
			r1.TotalAssigned, r1.TotalUnassigned, r2.TotalAssigned, r2.TotalUnassigned)
	}

	index := func(snap *Snapshot, roomID *uuid.UUID) int {
		if roomID == nil {
			return -1
		}
		for i, state := range snap.Rooms {
			if state.Room.ID == *roomID {
				return i
			}
		}
		return -2
	}

	for i := range r1.Details {
		if index(snap1, r1.Details[i].RoomID) != index(snap2, r2.Details[i].RoomID) {
			t.Errorf("detail %d diverges: %v vs %v", i, r1.Details[i].RoomID, r2.Details[i].RoomID)
		}
	}
}

func TestOrderAttendees(t *testing.T) {
	b := newSnapshotBuilder()
	plainB := b.addAttendee("plainB", model.SexB, false, false)
	elder := b.addAttendee("elder", model.SexA, false, true)
	vip := b.addAttendee("vip", model.SexB, true, false)
	plainA := b.addAttendee("plainA", model.SexA, false, false)

	ordered := orderAttendees(b.attendees)

	want := []uuid.UUID{vip.ID, elder.ID, plainA.ID, plainB.ID}
	for i, a := range ordered {
		if a.ID != want[i] {
			t.Fatalf("position %d = %s, want %s", i, a.Name, want[i])
		}
	}
}
