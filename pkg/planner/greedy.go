// Package planner 提供贪心自动分配规划器
//
// 规划器是纯函数：对一份快照单遍规划，不接触存储。同一快照
// 与同一权重必然得到同一方案，便于提交失败后重新规划。
package planner

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zhusu/zhusu/pkg/model"
	"github.com/zhusu/zhusu/pkg/rules"
)

// Weights 软偏好评分权重
type Weights struct {
	Sex           float64 `json:"sex"`
	RoomType      float64 `json:"room_type"`
	Floor         float64 `json:"floor"` // 预留参数，当前评分不消费
	Accessibility float64 `json:"accessibility"`
}

// DefaultWeights 返回默认权重
func DefaultWeights() Weights {
	return Weights{
		Sex:           0.8,
		RoomType:      0.6,
		Floor:         0.4,
		Accessibility: 1.0,
	}
}

// Snapshot 规划输入快照（未分配参会者 + 可用房间及其住客）
type Snapshot struct {
	EventID   uuid.UUID
	Attendees []*model.Attendee
	Rooms     []*model.RoomState
}

// Detail 单个参会者的规划明细
type Detail struct {
	AttendeeID uuid.UUID  `json:"attendee_id"`
	RoomID     *uuid.UUID `json:"room_id,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// Result 规划结果
type Result struct {
	TotalAssigned   int           `json:"total_assigned"`
	TotalUnassigned int           `json:"total_unassigned"`
	Details         []Detail      `json:"details"`
	Duration        time.Duration `json:"duration"`
}

// GreedyPlanner 贪心规划器
type GreedyPlanner struct {
	weights Weights
}

// NewGreedyPlanner 创建贪心规划器
func NewGreedyPlanner(weights Weights) *GreedyPlanner {
	return &GreedyPlanner{weights: weights}
}

// Name 返回规划器名称
func (p *GreedyPlanner) Name() string {
	return "GreedyPlanner"
}

// Plan 对快照执行单遍贪心规划
//
// 参会者按贵宾、老年人、性别的固定次序处理；每人从通过硬规则
// 过滤的房间中取评分严格最高者，评分并列时取先出现的房间。
// 规划过程中在内存住客列表上登记结果，后续参会者据此决策。
func (p *GreedyPlanner) Plan(snapshot *Snapshot) *Result {
	startTime := time.Now()

	result := &Result{
		Details: make([]Detail, 0, len(snapshot.Attendees)),
	}

	attendees := orderAttendees(snapshot.Attendees)

	for _, attendee := range attendees {
		room := p.pickRoom(attendee, snapshot.Rooms)
		if room == nil {
			result.TotalUnassigned++
			result.Details = append(result.Details, Detail{
				AttendeeID: attendee.ID,
				Reason:     "No suitable room found",
			})
			continue
		}

		// 登记到内存快照，使同一遍内的后续决策看到该入住
		room.Occupants = append(room.Occupants, attendee)
		roomID := room.Room.ID
		attendee.RoomID = &roomID

		result.TotalAssigned++
		result.Details = append(result.Details, Detail{
			AttendeeID: attendee.ID,
			RoomID:     &roomID,
		})
	}

	result.Duration = time.Since(startTime)
	return result
}

// pickRoom 为参会者挑选评分最高的合格房间
func (p *GreedyPlanner) pickRoom(attendee *model.Attendee, roomStates []*model.RoomState) *model.RoomState {
	var best *model.RoomState
	var bestScore float64

	for _, state := range roomStates {
		if !p.eligible(attendee, state) {
			continue
		}
		score := p.score(attendee, state)
		if best == nil || score > bestScore {
			best = state
			bestScore = score
		}
	}

	return best
}

// eligible 硬规则过滤（容量、性别、老年人无障碍）
func (p *GreedyPlanner) eligible(attendee *model.Attendee, state *model.RoomState) bool {
	if !state.Room.IsAvailable {
		return false
	}
	if !rules.HasCapacity(state) {
		return false
	}
	if !rules.SexCompatible(state.Room, attendee) {
		return false
	}
	// 手工分配允许覆盖，自动规划从不把老年人放上楼
	if !rules.AccessibilityOK(state.Room, attendee) {
		return false
	}
	return true
}

// score 软偏好评分
func (p *GreedyPlanner) score(attendee *model.Attendee, state *model.RoomState) float64 {
	var score float64

	// 性别契合：专属房或混合房均计分
	if state.Room.SexType.Accepts(attendee.Sex) {
		score += p.weights.Sex * 10
	}

	// 贵宾房型契合
	if attendee.IsVIP && state.Room.IsVIP {
		score += p.weights.RoomType * 10
	}

	// 老年人无障碍契合
	if attendee.IsElderly && state.Room.IsGroundFloorSuitable {
		score += p.weights.Accessibility * 10
	}

	// 填充奖励：倾向填满已有人的房间，减少零散占用
	score += state.FillRate() * 5

	return score
}

// orderAttendees 规划处理顺序：贵宾在前，老年人次之，再按性别分组
//
// 在此之下保持输入顺序，保证规划的确定性。
func orderAttendees(attendees []*model.Attendee) []*model.Attendee {
	ordered := make([]*model.Attendee, len(attendees))
	copy(ordered, attendees)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].IsVIP != ordered[j].IsVIP {
			return ordered[i].IsVIP
		}
		if ordered[i].IsElderly != ordered[j].IsElderly {
			return ordered[i].IsElderly
		}
		return ordered[i].Sex < ordered[j].Sex
	})

	return ordered
}
