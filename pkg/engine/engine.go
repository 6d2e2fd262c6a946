// Package engine 提供住宿分配的核心操作
//
// 引擎编排校验、提交与自动规划，本身不持有数据：全部读写
// 经由 Store 接口完成。所有校验先于写入；写入要么整体生效
// 要么毫无变化。
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zhusu/zhusu/pkg/errors"
	"github.com/zhusu/zhusu/pkg/logger"
	"github.com/zhusu/zhusu/pkg/model"
	"github.com/zhusu/zhusu/pkg/planner"
	"github.com/zhusu/zhusu/pkg/rules"
	"github.com/zhusu/zhusu/pkg/validator"
)

// Store 引擎的数据访问接口
//
// 写入原语在事务内对目标房间加锁并复核容量与性别约束；
// 复核失败返回 CONCURRENCY_CONFLICT，由调用方决定是否重试。
type Store interface {
	// GetAttendee 按 ID 加载参会者
	GetAttendee(ctx context.Context, id uuid.UUID) (*model.Attendee, error)

	// GetRoomState 加载房间及其当前住客
	GetRoomState(ctx context.Context, roomID uuid.UUID) (*model.RoomState, error)

	// ListAttendeesByIDs 按 ID 列表加载某活动的参会者（缺失的 ID 直接略过）
	ListAttendeesByIDs(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]*model.Attendee, error)

	// ListUnassignedAttendees 列出某活动全部未分配参会者
	ListUnassignedAttendees(ctx context.Context, eventID uuid.UUID) ([]*model.Attendee, error)

	// ListAvailableRoomStates 列出某活动全部可用房间及住客
	ListAvailableRoomStates(ctx context.Context, eventID uuid.UUID) ([]*model.RoomState, error)

	// SetAttendeeRoom 设置或清除（roomID 为 nil）单个参会者的房间
	SetAttendeeRoom(ctx context.Context, attendeeID uuid.UUID, roomID *uuid.UUID) error

	// SetManyAttendeeRooms 将一批参会者放入同一房间（单事务，全有或全无）
	SetManyAttendeeRooms(ctx context.Context, attendeeIDs []uuid.UUID, roomID uuid.UUID) error
}

// Engine 住宿分配引擎
type Engine struct {
	store          Store
	logger         *logger.EngineLogger
	maxRetries     int
	defaultWeights planner.Weights
}

// New 创建分配引擎
func New(store Store) *Engine {
	return &Engine{
		store:          store,
		logger:         logger.NewEngineLogger(),
		maxRetries:     3,
		defaultWeights: planner.DefaultWeights(),
	}
}

// SetMaxRetries 设置自动分配的冲突重试上限
func (e *Engine) SetMaxRetries(max int) {
	e.maxRetries = max
}

// SetDefaultWeights 设置请求未指定权重时使用的默认规划权重
func (e *Engine) SetDefaultWeights(w planner.Weights) {
	e.defaultWeights = w
}

// Validate 生成参会者入住某房间的兼容性报告（只读）
func (e *Engine) Validate(ctx context.Context, attendeeID, roomID uuid.UUID) (*validator.Report, error) {
	attendee, err := e.store.GetAttendee(ctx, attendeeID)
	if err != nil {
		return nil, err
	}
	state, err := e.store.GetRoomState(ctx, roomID)
	if err != nil {
		return nil, err
	}

	report := validator.Check(attendee, state)
	if !rules.SameEvent(state, attendee) {
		report.AddError("Room does not belong to the attendee's event")
	}
	return report, nil
}

// Assign 分配或清除（roomID 为 nil）单个参会者的房间
//
// 跨活动、满房与性别不符是硬性拒绝；贵宾与老年人偏好不符
// 在此不拦截，手工分配允许覆盖软偏好。换房是一次原子写入。
func (e *Engine) Assign(ctx context.Context, attendeeID uuid.UUID, roomID *uuid.UUID) error {
	attendee, err := e.store.GetAttendee(ctx, attendeeID)
	if err != nil {
		return err
	}

	if roomID == nil {
		if err := e.store.SetAttendeeRoom(ctx, attendeeID, nil); err != nil {
			return err
		}
		e.logger.AssignmentCleared(attendeeID.String())
		return nil
	}

	state, err := e.store.GetRoomState(ctx, *roomID)
	if err != nil {
		return err
	}

	if !rules.SameEvent(state, attendee) {
		e.logger.AssignmentRejected(attendeeID.String(), roomID.String(), "cross-event")
		return errors.Validation("Room does not belong to the attendee's event")
	}
	if !rules.HasCapacity(state) {
		e.logger.AssignmentRejected(attendeeID.String(), roomID.String(), "full")
		return errors.Validation("Room is at full capacity")
	}
	if !rules.SexCompatible(state.Room, attendee) {
		e.logger.AssignmentRejected(attendeeID.String(), roomID.String(), "sex mismatch")
		return errors.Validation(fmt.Sprintf("Room is designated for %s attendees only", state.Room.SexType))
	}

	if err := e.store.SetAttendeeRoom(ctx, attendeeID, roomID); err != nil {
		return err
	}
	e.logger.AssignmentCommitted(attendeeID.String(), roomID.String())
	return nil
}

// BulkAssign 将一批参会者放入同一房间（全有或全无）
func (e *Engine) BulkAssign(ctx context.Context, attendeeIDs []uuid.UUID, roomID uuid.UUID) error {
	if len(attendeeIDs) == 0 {
		return errors.InvalidInput("attendee_ids", "must not be empty")
	}
	seen := make(map[uuid.UUID]bool, len(attendeeIDs))
	for _, id := range attendeeIDs {
		if seen[id] {
			return errors.Validation("Duplicate attendee ids in request")
		}
		seen[id] = true
	}

	state, err := e.store.GetRoomState(ctx, roomID)
	if err != nil {
		return err
	}

	attendees, err := e.store.ListAttendeesByIDs(ctx, state.EventID, attendeeIDs)
	if err != nil {
		return err
	}
	if len(attendees) != len(attendeeIDs) {
		return errors.Validation("Some attendees were not found in this event")
	}

	if available := state.AvailableCapacity(); len(attendeeIDs) > available {
		return errors.Validation(fmt.Sprintf("Cannot assign %d attendees: only %d available spaces", len(attendeeIDs), available))
	}

	for _, attendee := range attendees {
		if !rules.SexCompatible(state.Room, attendee) {
			return errors.Validation(fmt.Sprintf("Room is designated for %s attendees only", state.Room.SexType))
		}
	}

	if err := e.store.SetManyAttendeeRooms(ctx, attendeeIDs, roomID); err != nil {
		return err
	}
	e.logger.BulkCommitted(roomID.String(), len(attendeeIDs))
	return nil
}

// AutoAssign 对活动的未分配参会者执行自动规划并提交
//
// 每轮：读取快照，纯规划，按房间分组提交。提交遇到并发冲突
// 时重新读取快照再规划，最多重试 maxRetries 轮；规划结果按
// 参会者聚合，后一轮覆盖前一轮的未分配记录。
func (e *Engine) AutoAssign(ctx context.Context, eventID uuid.UUID, weights *planner.Weights) (*planner.Result, error) {
	w := e.defaultWeights
	if weights != nil {
		w = *weights
	}
	p := planner.NewGreedyPlanner(w)

	startTime := time.Now()
	var order []uuid.UUID
	details := make(map[uuid.UUID]planner.Detail)

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		attendees, err := e.store.ListUnassignedAttendees(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if len(attendees) == 0 {
			break
		}
		roomStates, err := e.store.ListAvailableRoomStates(ctx, eventID)
		if err != nil {
			return nil, err
		}

		e.logger.PlanStart(eventID.String(), len(attendees), len(roomStates))
		plan := p.Plan(&planner.Snapshot{
			EventID:   eventID,
			Attendees: attendees,
			Rooms:     roomStates,
		})

		record := func(d planner.Detail) {
			if _, ok := details[d.AttendeeID]; !ok {
				order = append(order, d.AttendeeID)
			}
			details[d.AttendeeID] = d
		}

		conflicted := false
		for _, group := range groupByRoom(plan.Details) {
			err := e.store.SetManyAttendeeRooms(ctx, group.attendeeIDs, group.roomID)
			if errors.Is(err, errors.CodeConcurrencyConflict) {
				conflicted = true
				e.logger.ConflictRetry(eventID.String(), attempt)
				continue
			}
			if err != nil {
				return nil, err
			}
			roomID := group.roomID
			for _, id := range group.attendeeIDs {
				record(planner.Detail{AttendeeID: id, RoomID: &roomID})
			}
		}

		for _, d := range plan.Details {
			if d.RoomID == nil {
				record(d)
			}
		}

		if !conflicted {
			break
		}
		if attempt == e.maxRetries {
			return nil, errors.ConcurrencyConflict("room", "auto assignment could not commit after retries")
		}
	}

	result := &planner.Result{
		Details:  make([]planner.Detail, 0, len(order)),
		Duration: time.Since(startTime),
	}
	for _, id := range order {
		d := details[id]
		if d.RoomID != nil {
			result.TotalAssigned++
		} else {
			result.TotalUnassigned++
		}
		result.Details = append(result.Details, d)
	}

	e.logger.PlanComplete(eventID.String(), result.TotalAssigned, result.TotalUnassigned, result.Duration)
	return result, nil
}

// roomGroup 同一房间的一批计划分配
type roomGroup struct {
	roomID      uuid.UUID
	attendeeIDs []uuid.UUID
}

// groupByRoom 将规划明细按房间分组，保持首次出现的次序
func groupByRoom(details []planner.Detail) []roomGroup {
	index := make(map[uuid.UUID]int)
	var groups []roomGroup

	for _, d := range details {
		if d.RoomID == nil {
			continue
		}
		i, ok := index[*d.RoomID]
		if !ok {
			i = len(groups)
			index[*d.RoomID] = i
			groups = append(groups, roomGroup{roomID: *d.RoomID})
		}
		groups[i].attendeeIDs = append(groups[i].attendeeIDs, d.AttendeeID)
	}

	return groups
}
