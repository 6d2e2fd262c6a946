// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zhusu/zhusu/internal/metrics"
	"github.com/zhusu/zhusu/pkg/engine"
	"github.com/zhusu/zhusu/pkg/errors"
	"github.com/zhusu/zhusu/pkg/planner"
)

// AssignmentHandler 分配处理器
type AssignmentHandler struct {
	engine *engine.Engine
}

// NewAssignmentHandler 创建分配处理器
func NewAssignmentHandler(eng *engine.Engine) *AssignmentHandler {
	return &AssignmentHandler{engine: eng}
}

// ValidateRequest 兼容性校验请求
type ValidateRequest struct {
	AttendeeID string `json:"attendee_id"`
	RoomID     string `json:"room_id"`
}

// AssignRequest 单个分配请求（room_id 为 null 表示清除分配）
type AssignRequest struct {
	AttendeeID string  `json:"attendee_id"`
	RoomID     *string `json:"room_id"`
}

// BulkAssignRequest 批量分配请求
type BulkAssignRequest struct {
	AttendeeIDs []string `json:"attendee_ids"`
	RoomID      string   `json:"room_id"`
}

// AutoAssignRequest 自动分配请求
type AutoAssignRequest struct {
	EventID string        `json:"event_id"`
	Weights *WeightsInput `json:"weights,omitempty"`
}

// WeightsInput 规划权重输入
type WeightsInput struct {
	Sex           *float64 `json:"sex,omitempty"`
	RoomType      *float64 `json:"room_type,omitempty"`
	Floor         *float64 `json:"floor,omitempty"`
	Accessibility *float64 `json:"accessibility,omitempty"`
}

// OperationResponse 操作结果响应
type OperationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Validate 校验参会者与房间的兼容性（只读）
func (h *AssignmentHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "only POST is supported"))
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "failed to parse request"))
		return
	}

	attendeeID, err := uuid.Parse(req.AttendeeID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "invalid attendee id"))
		return
	}
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "invalid room id"))
		return
	}

	report, err := h.engine.Validate(r.Context(), attendeeID, roomID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Assign 分配或清除单个参会者的房间
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "only POST is supported"))
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "failed to parse request"))
		return
	}

	attendeeID, err := uuid.Parse(req.AttendeeID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "invalid attendee id"))
		return
	}

	var roomID *uuid.UUID
	if req.RoomID != nil {
		id, err := uuid.Parse(*req.RoomID)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "invalid room id"))
			return
		}
		roomID = &id
	}

	err = h.engine.Assign(r.Context(), attendeeID, roomID)
	metrics.RecordAssignmentOperation("assign", err == nil)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, OperationResponse{Success: true})
}

// Bulk 批量分配（全有或全无）
func (h *AssignmentHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "only POST is supported"))
		return
	}

	var req BulkAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "failed to parse request"))
		return
	}

	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "invalid room id"))
		return
	}

	attendeeIDs := make([]uuid.UUID, 0, len(req.AttendeeIDs))
	for _, raw := range req.AttendeeIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "invalid attendee id: "+raw))
			return
		}
		attendeeIDs = append(attendeeIDs, id)
	}

	err = h.engine.BulkAssign(r.Context(), attendeeIDs, roomID)
	metrics.RecordAssignmentOperation("bulk", err == nil)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, OperationResponse{Success: true})
}

// Auto 自动分配
func (h *AssignmentHandler) Auto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "only POST is supported"))
		return
	}

	var req AutoAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "failed to parse request"))
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "invalid event id"))
		return
	}

	var weights *planner.Weights
	if req.Weights != nil {
		wt := planner.DefaultWeights()
		if req.Weights.Sex != nil {
			wt.Sex = *req.Weights.Sex
		}
		if req.Weights.RoomType != nil {
			wt.RoomType = *req.Weights.RoomType
		}
		if req.Weights.Floor != nil {
			wt.Floor = *req.Weights.Floor
		}
		if req.Weights.Accessibility != nil {
			wt.Accessibility = *req.Weights.Accessibility
		}
		weights = &wt
	}

	start := time.Now()
	result, err := h.engine.AutoAssign(r.Context(), eventID, weights)
	metrics.RecordAssignmentOperation("auto", err == nil)
	if err != nil {
		if errors.Is(err, errors.CodeConcurrencyConflict) {
			metrics.RecordAssignmentConflict("auto")
		}
		respondAppError(w, err)
		return
	}
	metrics.RecordAutoAssignDuration(eventID.String(), time.Since(start))

	respondJSON(w, http.StatusOK, result)
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}

// respondAppError 将任意错误转换为统一错误响应
func respondAppError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(err, errors.CodeInternal, "internal error")
	}
	respondError(w, appErr)
}
