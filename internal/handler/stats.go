// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/zhusu/zhusu/internal/metrics"
	"github.com/zhusu/zhusu/pkg/errors"
	"github.com/zhusu/zhusu/pkg/model"
	"github.com/zhusu/zhusu/pkg/stats"
)

// StatsHandler 统计处理器
type StatsHandler struct {
	analyzer *stats.OccupancyAnalyzer
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler() *StatsHandler {
	return &StatsHandler{analyzer: stats.NewOccupancyAnalyzer()}
}

// OccupancyRequest 入住统计请求（快照由调用方提供）
type OccupancyRequest struct {
	EventID   string          `json:"event_id,omitempty"`
	Attendees []AttendeeInput `json:"attendees"`
	Rooms     []RoomInput     `json:"rooms"`
}

// AttendeeInput 参会者输入
type AttendeeInput struct {
	ID        string  `json:"id"`
	Sex       string  `json:"sex"`
	IsVIP     bool    `json:"is_vip,omitempty"`
	IsElderly bool    `json:"is_elderly,omitempty"`
	RoomID    *string `json:"room_id,omitempty"`
}

// RoomInput 房间输入
type RoomInput struct {
	ID       string `json:"id"`
	Number   string `json:"number,omitempty"`
	Capacity int    `json:"capacity"`
}

// Occupancy 计算入住统计
//
// 住客关系由参会者的 room_id 推导，快照自洽即可，无需预先聚合。
func (h *StatsHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "only POST is supported"))
		return
	}

	var req OccupancyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "failed to parse request"))
		return
	}

	attendees := make([]*model.Attendee, 0, len(req.Attendees))
	byRoom := make(map[uuid.UUID][]*model.Attendee)
	for _, in := range req.Attendees {
		id, err := uuid.Parse(in.ID)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "invalid attendee id: "+in.ID))
			return
		}
		attendee := &model.Attendee{
			BaseModel: model.BaseModel{ID: id},
			Sex:       model.Sex(in.Sex),
			IsVIP:     in.IsVIP,
			IsElderly: in.IsElderly,
		}
		if in.RoomID != nil {
			roomID, err := uuid.Parse(*in.RoomID)
			if err != nil {
				respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "invalid room id: "+*in.RoomID))
				return
			}
			attendee.RoomID = &roomID
			byRoom[roomID] = append(byRoom[roomID], attendee)
		}
		attendees = append(attendees, attendee)
	}

	states := make([]*model.RoomState, 0, len(req.Rooms))
	for _, in := range req.Rooms {
		id, err := uuid.Parse(in.ID)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "invalid room id: "+in.ID))
			return
		}
		states = append(states, &model.RoomState{
			Room: &model.Room{
				BaseModel: model.BaseModel{ID: id},
				Number:    in.Number,
				Capacity:  in.Capacity,
			},
			Occupants: byRoom[id],
		})
	}

	result := h.analyzer.Analyze(attendees, states)

	if req.EventID != "" {
		metrics.SetOccupancyRate(req.EventID, result.OccupancyRate)
		metrics.SetAssignmentRate(req.EventID, result.AssignmentRate)
	}

	respondJSON(w, http.StatusOK, result)
}
