// Package model 定义住宿分配引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// Sex 参会者性别分组（二值枚举）
type Sex string

const (
	SexA Sex = "A"
	SexB Sex = "B"
)

// RoomSexType 房间性别属性
type RoomSexType string

const (
	RoomSexA     RoomSexType = "A"
	RoomSexB     RoomSexType = "B"
	RoomSexMixed RoomSexType = "MIXED"
)

// Accepts 检查房间性别属性是否接纳某性别的参会者
func (t RoomSexType) Accepts(s Sex) bool {
	return t == RoomSexMixed || string(t) == string(s)
}

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JSONMap 用于存储 JSONB 数据
type JSONMap map[string]interface{}

// Event 活动（仅引擎所需的最小投影，活动管理由外部系统负责）
type Event struct {
	BaseModel
	Name string `json:"name" db:"name"`
	Code string `json:"code,omitempty" db:"code"`
}
