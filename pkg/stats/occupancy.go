// Package stats 提供住宿分配统计分析功能
package stats

import (
	"math"
	"sort"

	"github.com/zhusu/zhusu/pkg/model"
)

// OccupancyMetrics 入住率指标
type OccupancyMetrics struct {
	// 参会者维度
	TotalAttendees      int     `json:"total_attendees"`      // 参会者总数
	AssignedAttendees   int     `json:"assigned_attendees"`   // 已分配人数
	UnassignedAttendees int     `json:"unassigned_attendees"` // 未分配人数
	AssignmentRate      float64 `json:"assignment_rate"`      // 分配率 (%)

	// 房间维度
	TotalRooms    int     `json:"total_rooms"`    // 房间总数
	TotalCapacity int     `json:"total_capacity"` // 总床位数
	TotalOccupied int     `json:"total_occupied"` // 已占用床位数
	OccupancyRate float64 `json:"occupancy_rate"` // 入住率 (%)
	FullRooms     int     `json:"full_rooms"`     // 满员房间数
	EmptyRooms    int     `json:"empty_rooms"`    // 空房间数

	// 分组统计
	BySex   map[model.Sex]GroupStat `json:"by_sex"`  // 按性别
	VIP     GroupStat               `json:"vip"`     // 贵宾
	Elderly GroupStat               `json:"elderly"` // 老年人

	// 房间级别统计
	RoomStats []RoomStat `json:"room_stats"` // 各房间利用率

	// 均匀度：各房间利用率的标准差（越低越均匀）
	UtilizationSpread float64 `json:"utilization_spread"`
}

// GroupStat 分组统计
type GroupStat struct {
	Total          int     `json:"total"`
	Assigned       int     `json:"assigned"`
	AssignmentRate float64 `json:"assignment_rate"`
}

// RoomStat 单个房间统计
type RoomStat struct {
	RoomID      string  `json:"room_id"`
	Number      string  `json:"number"`
	Capacity    int     `json:"capacity"`
	Occupied    int     `json:"occupied"`
	Utilization float64 `json:"utilization"` // 利用率 (%)
}

// OccupancyAnalyzer 入住率分析器
type OccupancyAnalyzer struct{}

// NewOccupancyAnalyzer 创建入住率分析器
func NewOccupancyAnalyzer() *OccupancyAnalyzer {
	return &OccupancyAnalyzer{}
}

// Analyze 对一份快照做入住统计
func (a *OccupancyAnalyzer) Analyze(attendees []*model.Attendee, roomStates []*model.RoomState) *OccupancyMetrics {
	metrics := &OccupancyMetrics{
		BySex:     make(map[model.Sex]GroupStat),
		RoomStats: make([]RoomStat, 0, len(roomStates)),
	}

	// 参会者统计
	sexTotals := make(map[model.Sex]int)
	sexAssigned := make(map[model.Sex]int)

	for _, attendee := range attendees {
		metrics.TotalAttendees++
		sexTotals[attendee.Sex]++

		assigned := attendee.IsAssigned()
		if assigned {
			metrics.AssignedAttendees++
			sexAssigned[attendee.Sex]++
		} else {
			metrics.UnassignedAttendees++
		}

		if attendee.IsVIP {
			metrics.VIP.Total++
			if assigned {
				metrics.VIP.Assigned++
			}
		}
		if attendee.IsElderly {
			metrics.Elderly.Total++
			if assigned {
				metrics.Elderly.Assigned++
			}
		}
	}

	if metrics.TotalAttendees > 0 {
		metrics.AssignmentRate = float64(metrics.AssignedAttendees) / float64(metrics.TotalAttendees) * 100
	}
	metrics.VIP.AssignmentRate = groupRate(metrics.VIP)
	metrics.Elderly.AssignmentRate = groupRate(metrics.Elderly)

	for sex, total := range sexTotals {
		stat := GroupStat{Total: total, Assigned: sexAssigned[sex]}
		stat.AssignmentRate = groupRate(stat)
		metrics.BySex[sex] = stat
	}

	// 房间统计
	utilizations := make([]float64, 0, len(roomStates))
	for _, state := range roomStates {
		metrics.TotalRooms++
		metrics.TotalCapacity += state.Room.Capacity
		occupied := state.Occupancy()
		metrics.TotalOccupied += occupied

		if state.IsFull() {
			metrics.FullRooms++
		}
		if occupied == 0 {
			metrics.EmptyRooms++
		}

		utilization := state.FillRate() * 100
		utilizations = append(utilizations, utilization)
		metrics.RoomStats = append(metrics.RoomStats, RoomStat{
			RoomID:      state.Room.ID.String(),
			Number:      state.Room.Number,
			Capacity:    state.Room.Capacity,
			Occupied:    occupied,
			Utilization: utilization,
		})
	}

	if metrics.TotalCapacity > 0 {
		metrics.OccupancyRate = float64(metrics.TotalOccupied) / float64(metrics.TotalCapacity) * 100
	}
	metrics.UtilizationSpread = stdDev(utilizations)

	// 利用率高的房间排前面，便于报表展示
	sort.SliceStable(metrics.RoomStats, func(i, j int) bool {
		return metrics.RoomStats[i].Utilization > metrics.RoomStats[j].Utilization
	})

	return metrics
}

// groupRate 计算分组分配率
func groupRate(stat GroupStat) float64 {
	if stat.Total == 0 {
		return 0
	}
	return float64(stat.Assigned) / float64(stat.Total) * 100
}

// stdDev 计算标准差
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}
