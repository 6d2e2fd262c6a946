package engine

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"

	"github.com/zhusu/zhusu/pkg/errors"
	"github.com/zhusu/zhusu/pkg/model"
)

// memStore 内存版 Store，写入原语按与真实存储相同的语义复核约束
type memStore struct {
	attendees map[uuid.UUID]*model.Attendee
	rooms     map[uuid.UUID]*model.Room
	roomEvent map[uuid.UUID]uuid.UUID

	attendeeOrder []uuid.UUID
	roomOrder     []uuid.UUID

	// 注入的并发冲突次数（每次批量写消耗一次）
	bulkConflicts int
	bulkCalls     int
}

func newMemStore() *memStore {
	return &memStore{
		attendees: make(map[uuid.UUID]*model.Attendee),
		rooms:     make(map[uuid.UUID]*model.Room),
		roomEvent: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *memStore) addAttendee(a *model.Attendee) {
	s.attendees[a.ID] = a
	s.attendeeOrder = append(s.attendeeOrder, a.ID)
}

func (s *memStore) addRoom(eventID uuid.UUID, r *model.Room) {
	s.rooms[r.ID] = r
	s.roomEvent[r.ID] = eventID
	s.roomOrder = append(s.roomOrder, r.ID)
}

func cloneAttendee(a *model.Attendee) *model.Attendee {
	c := *a
	if a.RoomID != nil {
		id := *a.RoomID
		c.RoomID = &id
	}
	return &c
}

func (s *memStore) occupants(roomID uuid.UUID) []*model.Attendee {
	var out []*model.Attendee
	for _, id := range s.attendeeOrder {
		a := s.attendees[id]
		if a.RoomID != nil && *a.RoomID == roomID {
			out = append(out, cloneAttendee(a))
		}
	}
	return out
}

func (s *memStore) GetAttendee(_ context.Context, id uuid.UUID) (*model.Attendee, error) {
	a, ok := s.attendees[id]
	if !ok {
		return nil, errors.NotFound("attendee", id.String())
	}
	return cloneAttendee(a), nil
}

func (s *memStore) GetRoomState(_ context.Context, roomID uuid.UUID) (*model.RoomState, error) {
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, errors.NotFound("room", roomID.String())
	}
	room := *r
	return &model.RoomState{
		Room:      &room,
		EventID:   s.roomEvent[roomID],
		Occupants: s.occupants(roomID),
	}, nil
}

func (s *memStore) ListAttendeesByIDs(_ context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]*model.Attendee, error) {
	var out []*model.Attendee
	for _, id := range ids {
		a, ok := s.attendees[id]
		if !ok || a.EventID != eventID {
			continue
		}
		out = append(out, cloneAttendee(a))
	}
	return out, nil
}

func (s *memStore) ListUnassignedAttendees(_ context.Context, eventID uuid.UUID) ([]*model.Attendee, error) {
	var out []*model.Attendee
	for _, id := range s.attendeeOrder {
		a := s.attendees[id]
		if a.EventID == eventID && a.RoomID == nil {
			out = append(out, cloneAttendee(a))
		}
	}
	return out, nil
}

func (s *memStore) ListAvailableRoomStates(_ context.Context, eventID uuid.UUID) ([]*model.RoomState, error) {
	var out []*model.RoomState
	for _, id := range s.roomOrder {
		r := s.rooms[id]
		if s.roomEvent[id] != eventID || !r.IsAvailable {
			continue
		}
		room := *r
		out = append(out, &model.RoomState{
			Room:      &room,
			EventID:   eventID,
			Occupants: s.occupants(id),
		})
	}
	return out, nil
}

func (s *memStore) SetAttendeeRoom(_ context.Context, attendeeID uuid.UUID, roomID *uuid.UUID) error {
	a, ok := s.attendees[attendeeID]
	if !ok {
		return errors.NotFound("attendee", attendeeID.String())
	}
	if roomID == nil {
		a.RoomID = nil
		return nil
	}
	if err := s.recheck([]uuid.UUID{attendeeID}, *roomID); err != nil {
		return err
	}
	id := *roomID
	a.RoomID = &id
	return nil
}

func (s *memStore) SetManyAttendeeRooms(_ context.Context, attendeeIDs []uuid.UUID, roomID uuid.UUID) error {
	s.bulkCalls++
	if s.bulkConflicts > 0 {
		s.bulkConflicts--
		return errors.ConcurrencyConflict("room", "occupancy changed during commit")
	}
	if err := s.recheck(attendeeIDs, roomID); err != nil {
		return err
	}
	for _, id := range attendeeIDs {
		rid := roomID
		s.attendees[id].RoomID = &rid
	}
	return nil
}

// recheck 模拟写入事务内对房间的加锁复核
func (s *memStore) recheck(attendeeIDs []uuid.UUID, roomID uuid.UUID) error {
	room, ok := s.rooms[roomID]
	if !ok {
		return errors.NotFound("room", roomID.String())
	}

	incoming := 0
	for _, id := range attendeeIDs {
		a, ok := s.attendees[id]
		if !ok {
			return errors.NotFound("attendee", id.String())
		}
		if !room.SexType.Accepts(a.Sex) {
			return errors.ConcurrencyConflict("room", "sex designation changed during commit")
		}
		if a.RoomID == nil || *a.RoomID != roomID {
			incoming++
		}
	}

	if len(s.occupants(roomID))+incoming > room.Capacity {
		return errors.ConcurrencyConflict("room", "occupancy changed during commit")
	}
	return nil
}

// ---- 测试构造助手 ----

type fixture struct {
	store   *memStore
	engine  *Engine
	eventID uuid.UUID
}

func newFixture() *fixture {
	store := newMemStore()
	return &fixture{
		store:   store,
		engine:  New(store),
		eventID: uuid.New(),
	}
}

func (f *fixture) attendee(name string, sex model.Sex, opts ...func(*model.Attendee)) *model.Attendee {
	a := &model.Attendee{
		BaseModel: model.NewBaseModel(),
		EventID:   f.eventID,
		Name:      name,
		Sex:       sex,
	}
	for _, opt := range opts {
		opt(a)
	}
	f.store.addAttendee(a)
	return a
}

func (f *fixture) room(number string, capacity int, sexType model.RoomSexType, opts ...func(*model.Room)) *model.Room {
	r := &model.Room{
		BaseModel:   model.NewBaseModel(),
		Number:      number,
		Capacity:    capacity,
		SexType:     sexType,
		IsAvailable: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	f.store.addRoom(f.eventID, r)
	return r
}

func asVIP(a *model.Attendee)     { a.IsVIP = true }
func asElderly(a *model.Attendee) { a.IsElderly = true }

func groundFloor(r *model.Room) { r.IsGroundFloorSuitable = true }

// ---- 单个分配 ----

func TestAssignSuccess(t *testing.T) {
	f := newFixture()
	a := f.attendee("zhang", model.SexA)
	r := f.room("101", 2, model.RoomSexA)

	if err := f.engine.Assign(context.Background(), a.ID, &r.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	got := f.store.attendees[a.ID]
	if got.RoomID == nil || *got.RoomID != r.ID {
		t.Errorf("RoomID = %v, want %s", got.RoomID, r.ID)
	}
}

func TestAssignClear(t *testing.T) {
	f := newFixture()
	a := f.attendee("zhang", model.SexA)
	r := f.room("101", 2, model.RoomSexA)
	a.RoomID = &r.ID

	if err := f.engine.Assign(context.Background(), a.ID, nil); err != nil {
		t.Fatalf("Assign(nil): %v", err)
	}
	if f.store.attendees[a.ID].RoomID != nil {
		t.Error("RoomID not cleared")
	}
}

func TestAssignReassignIsAtomic(t *testing.T) {
	f := newFixture()
	a := f.attendee("zhang", model.SexA)
	old := f.room("101", 2, model.RoomSexA)
	next := f.room("102", 2, model.RoomSexA)
	a.RoomID = &old.ID

	if err := f.engine.Assign(context.Background(), a.ID, &next.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	got := f.store.attendees[a.ID]
	if got.RoomID == nil || *got.RoomID != next.ID {
		t.Errorf("RoomID = %v, want %s", got.RoomID, next.ID)
	}
	if len(f.store.occupants(old.ID)) != 0 {
		t.Error("old room still lists the attendee")
	}
}

func TestAssignRejectsFullRoom(t *testing.T) {
	f := newFixture()
	occupant := f.attendee("wang", model.SexA)
	a := f.attendee("zhang", model.SexA)
	r := f.room("101", 1, model.RoomSexA)
	occupant.RoomID = &r.ID

	err := f.engine.Assign(context.Background(), a.ID, &r.ID)
	if !errors.Is(err, errors.CodeValidationFail) {
		t.Fatalf("err = %v, want VALIDATION_FAILED", err)
	}
	if f.store.attendees[a.ID].RoomID != nil {
		t.Error("attendee assigned despite full room")
	}
}

func TestAssignRejectsSexMismatch(t *testing.T) {
	f := newFixture()
	a := f.attendee("zhang", model.SexB)
	r := f.room("101", 2, model.RoomSexA)

	err := f.engine.Assign(context.Background(), a.ID, &r.ID)
	if !errors.Is(err, errors.CodeValidationFail) {
		t.Fatalf("err = %v, want VALIDATION_FAILED", err)
	}
	var appErr *errors.AppError
	if !errorsAs(err, &appErr) || appErr.Message != "Room is designated for A attendees only" {
		t.Errorf("message = %v", err)
	}
}

func TestAssignRejectsCrossEvent(t *testing.T) {
	f := newFixture()
	r := f.room("101", 2, model.RoomSexMixed)

	outsider := &model.Attendee{
		BaseModel: model.NewBaseModel(),
		EventID:   uuid.New(),
		Name:      "outsider",
		Sex:       model.SexA,
	}
	f.store.addAttendee(outsider)

	err := f.engine.Assign(context.Background(), outsider.ID, &r.ID)
	if !errors.Is(err, errors.CodeValidationFail) {
		t.Fatalf("err = %v, want VALIDATION_FAILED", err)
	}
}

func TestAssignNotFound(t *testing.T) {
	f := newFixture()
	a := f.attendee("zhang", model.SexA)
	missing := uuid.New()

	if err := f.engine.Assign(context.Background(), missing, nil); !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("missing attendee: err = %v, want NOT_FOUND", err)
	}
	if err := f.engine.Assign(context.Background(), a.ID, &missing); !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("missing room: err = %v, want NOT_FOUND", err)
	}
}

// ---- 校验 ----

func TestValidateReportsWithoutMutating(t *testing.T) {
	f := newFixture()
	a := f.attendee("zhang", model.SexA, asVIP)
	r := f.room("101", 2, model.RoomSexA)

	report, err := f.engine.Validate(context.Background(), a.ID, r.ID)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.IsValid {
		t.Fatalf("IsValid = false, errors: %v", report.Errors)
	}
	if len(report.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one VIP warning", report.Warnings)
	}
	if f.store.attendees[a.ID].RoomID != nil {
		t.Error("Validate mutated the store")
	}
}

func TestValidateAlreadyInRoom(t *testing.T) {
	f := newFixture()
	a := f.attendee("zhang", model.SexA)
	r := f.room("101", 2, model.RoomSexA)
	a.RoomID = &r.ID

	report, err := f.engine.Validate(context.Background(), a.ID, r.ID)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.IsValid {
		t.Fatal("IsValid = true for attendee already in the room")
	}
	if report.Errors[0] != "Attendee is already assigned to this room" {
		t.Errorf("Errors = %v", report.Errors)
	}
}

// ---- 批量分配 ----

func TestBulkAssignSuccess(t *testing.T) {
	f := newFixture()
	a1 := f.attendee("a1", model.SexA)
	a2 := f.attendee("a2", model.SexA)
	r := f.room("101", 4, model.RoomSexA)

	if err := f.engine.BulkAssign(context.Background(), []uuid.UUID{a1.ID, a2.ID}, r.ID); err != nil {
		t.Fatalf("BulkAssign: %v", err)
	}
	if len(f.store.occupants(r.ID)) != 2 {
		t.Errorf("occupants = %d, want 2", len(f.store.occupants(r.ID)))
	}
}

func TestBulkAssignRejectsEmpty(t *testing.T) {
	f := newFixture()
	r := f.room("101", 4, model.RoomSexA)

	if err := f.engine.BulkAssign(context.Background(), nil, r.ID); !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestBulkAssignRejectsDuplicates(t *testing.T) {
	f := newFixture()
	a := f.attendee("a1", model.SexA)
	r := f.room("101", 4, model.RoomSexA)

	err := f.engine.BulkAssign(context.Background(), []uuid.UUID{a.ID, a.ID}, r.ID)
	if !errors.Is(err, errors.CodeValidationFail) {
		t.Errorf("err = %v, want VALIDATION_FAILED", err)
	}
}

func TestBulkAssignRejectsMissingAttendees(t *testing.T) {
	f := newFixture()
	a := f.attendee("a1", model.SexA)
	r := f.room("101", 4, model.RoomSexA)

	err := f.engine.BulkAssign(context.Background(), []uuid.UUID{a.ID, uuid.New()}, r.ID)
	if !errors.Is(err, errors.CodeValidationFail) {
		t.Fatalf("err = %v, want VALIDATION_FAILED", err)
	}
	if f.store.attendees[a.ID].RoomID != nil {
		t.Error("partial assignment happened")
	}
}

func TestBulkAssignRejectsOverCapacity(t *testing.T) {
	f := newFixture()
	occupant := f.attendee("resident", model.SexA)
	a1 := f.attendee("a1", model.SexA)
	a2 := f.attendee("a2", model.SexA)
	a3 := f.attendee("a3", model.SexA)
	r := f.room("101", 3, model.RoomSexA)
	occupant.RoomID = &r.ID

	err := f.engine.BulkAssign(context.Background(), []uuid.UUID{a1.ID, a2.ID, a3.ID}, r.ID)
	if !errors.Is(err, errors.CodeValidationFail) {
		t.Fatalf("err = %v, want VALIDATION_FAILED", err)
	}
	var appErr *errors.AppError
	want := "Cannot assign 3 attendees: only 2 available spaces"
	if !errorsAs(err, &appErr) || appErr.Message != want {
		t.Errorf("message = %v, want %q", err, want)
	}
	if len(f.store.occupants(r.ID)) != 1 {
		t.Error("batch partially applied")
	}
}

func TestBulkAssignRejectsSexMismatch(t *testing.T) {
	f := newFixture()
	a1 := f.attendee("a1", model.SexA)
	b1 := f.attendee("b1", model.SexB)
	r := f.room("101", 4, model.RoomSexA)

	err := f.engine.BulkAssign(context.Background(), []uuid.UUID{a1.ID, b1.ID}, r.ID)
	if !errors.Is(err, errors.CodeValidationFail) {
		t.Fatalf("err = %v, want VALIDATION_FAILED", err)
	}
	if len(f.store.occupants(r.ID)) != 0 {
		t.Error("batch partially applied")
	}
}

func TestBulkAssignMixedRoomAcceptsBothSexes(t *testing.T) {
	f := newFixture()
	a1 := f.attendee("a1", model.SexA)
	b1 := f.attendee("b1", model.SexB)
	r := f.room("101", 4, model.RoomSexMixed)

	if err := f.engine.BulkAssign(context.Background(), []uuid.UUID{a1.ID, b1.ID}, r.ID); err != nil {
		t.Fatalf("BulkAssign: %v", err)
	}
	if len(f.store.occupants(r.ID)) != 2 {
		t.Error("mixed room batch not applied")
	}
}

// ---- 自动分配 ----

func TestAutoAssignPlacesEveryone(t *testing.T) {
	f := newFixture()
	f.attendee("a1", model.SexA)
	f.attendee("a2", model.SexA)
	f.attendee("b1", model.SexB)
	f.room("101", 2, model.RoomSexA)
	f.room("102", 2, model.RoomSexB)

	result, err := f.engine.AutoAssign(context.Background(), f.eventID, nil)
	if err != nil {
		t.Fatalf("AutoAssign: %v", err)
	}
	if result.TotalAssigned != 3 || result.TotalUnassigned != 0 {
		t.Fatalf("assigned/unassigned = %d/%d, want 3/0", result.TotalAssigned, result.TotalUnassigned)
	}
	for id, a := range f.store.attendees {
		if a.RoomID == nil {
			t.Errorf("attendee %s not persisted", id)
		}
	}
}

func TestAutoAssignReportsUnassignable(t *testing.T) {
	f := newFixture()
	elder := f.attendee("elder", model.SexA, asElderly)
	f.room("301", 2, model.RoomSexA) // 无障碍不达标

	result, err := f.engine.AutoAssign(context.Background(), f.eventID, nil)
	if err != nil {
		t.Fatalf("AutoAssign: %v", err)
	}
	if result.TotalUnassigned != 1 {
		t.Fatalf("TotalUnassigned = %d, want 1", result.TotalUnassigned)
	}
	d := result.Details[0]
	if d.AttendeeID != elder.ID || d.Reason != "No suitable room found" {
		t.Errorf("detail = %+v", d)
	}
	if f.store.attendees[elder.ID].RoomID != nil {
		t.Error("elderly attendee placed in an unsuitable room")
	}
}

func TestAutoAssignRetriesOnConflict(t *testing.T) {
	f := newFixture()
	a := f.attendee("a1", model.SexA)
	f.room("101", 2, model.RoomSexA, groundFloor)
	f.store.bulkConflicts = 1

	result, err := f.engine.AutoAssign(context.Background(), f.eventID, nil)
	if err != nil {
		t.Fatalf("AutoAssign: %v", err)
	}
	if result.TotalAssigned != 1 {
		t.Fatalf("TotalAssigned = %d, want 1", result.TotalAssigned)
	}
	if f.store.attendees[a.ID].RoomID == nil {
		t.Error("assignment not persisted after retry")
	}
	if f.store.bulkCalls != 2 {
		t.Errorf("bulk calls = %d, want 2 (conflict then success)", f.store.bulkCalls)
	}
}

func TestAutoAssignGivesUpAfterMaxRetries(t *testing.T) {
	f := newFixture()
	f.attendee("a1", model.SexA)
	f.room("101", 2, model.RoomSexA)
	f.store.bulkConflicts = 10

	_, err := f.engine.AutoAssign(context.Background(), f.eventID, nil)
	if !errors.Is(err, errors.CodeConcurrencyConflict) {
		t.Fatalf("err = %v, want CONCURRENCY_CONFLICT", err)
	}
	if f.store.bulkCalls != 3 {
		t.Errorf("bulk calls = %d, want 3", f.store.bulkCalls)
	}
}

func TestAutoAssignNoUnassignedAttendees(t *testing.T) {
	f := newFixture()
	a := f.attendee("a1", model.SexA)
	r := f.room("101", 2, model.RoomSexA)
	a.RoomID = &r.ID

	result, err := f.engine.AutoAssign(context.Background(), f.eventID, nil)
	if err != nil {
		t.Fatalf("AutoAssign: %v", err)
	}
	if result.TotalAssigned != 0 || result.TotalUnassigned != 0 || len(result.Details) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

// errorsAs 标准库 errors.As 的别名，避免与本项目 errors 包重名
func errorsAs(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
