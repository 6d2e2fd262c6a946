// Package validator 提供分配兼容性校验功能
package validator

import (
	"fmt"

	"github.com/zhusu/zhusu/pkg/model"
	"github.com/zhusu/zhusu/pkg/rules"
)

// Report 兼容性报告（只读，校验从不修改任何状态）
type Report struct {
	IsValid  bool            `json:"is_valid"`
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Room     *model.Room     `json:"room,omitempty"`
	Attendee *model.Attendee `json:"attendee,omitempty"`
}

// AddError 添加硬性错误并使报告失效
func (r *Report) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.IsValid = false
}

// AddWarning 添加软性警告（不影响有效性）
func (r *Report) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Check 校验参会者入住某房间的兼容性
//
// 收集全部错误与警告后一并返回，不在首个失败处提前结束。
// 参会者或房间不存在属于调用方在加载阶段处理的问题，这里假定输入完整。
func Check(attendee *model.Attendee, state *model.RoomState) *Report {
	report := &Report{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
		Room:     state.Room,
		Attendee: attendee,
	}

	// 硬规则
	if !rules.HasCapacity(state) {
		report.AddError("Room is at full capacity")
	}
	if !rules.SexCompatible(state.Room, attendee) {
		report.AddError(fmt.Sprintf("Room is designated for %s attendees only", state.Room.SexType))
	}
	if state.Contains(attendee.ID) {
		report.AddError("Attendee is already assigned to this room")
	}

	// 软规则
	if rules.WouldMixRoom(state, attendee) {
		report.AddWarning("Assignment would mix sexes in a shared room")
	}
	if rules.VIPIntoPlainRoom(state.Room, attendee) {
		report.AddWarning("VIP attendee assigned to a non-VIP room")
	}
	if rules.ElderlyOffGroundFloor(state.Room, attendee) {
		report.AddWarning("Elderly attendee assigned to a room without ground-floor access")
	}
	if rules.WouldReplaceAssignment(attendee, state.Room.ID) {
		report.AddWarning("Attendee already has a room assignment that will be replaced")
	}

	return report
}
