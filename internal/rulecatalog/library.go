// Package rulecatalog 规则目录
//
// 以机器可读的形式描述引擎的硬规则、软规则与规划权重参数，
// 供前端构建规则说明与权重调节界面。
package rulecatalog

// RuleParam 规则参数定义
type RuleParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, float, string, bool
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// RuleDefinition 规则定义
type RuleDefinition struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	Type        string      `json:"type"`     // hard 硬规则, soft 软规则
	Category    string      `json:"category"` // 分类
	Description string      `json:"description"`
	AppliesTo   []string    `json:"applies_to"` // 适用操作
	Params      []RuleParam `json:"params"`
}

// LibraryResponse 规则库响应
type LibraryResponse struct {
	Library []RuleDefinition `json:"library"`
}

// GetLibrary 获取完整的规则库
func GetLibrary() []RuleDefinition {
	return []RuleDefinition{
		// =====================================================
		// 硬规则
		// =====================================================
		{
			Name:        "room_capacity",
			DisplayName: "房间容量",
			Type:        "hard",
			Category:    "容量限制",
			Description: "入住人数不得超过房间容量。任何操作路径都不允许超员，提交时在行锁内复核。",
			AppliesTo:   []string{"validate", "assign", "bulk", "auto"},
			Params:      []RuleParam{},
		},
		{
			Name:        "sex_designation",
			DisplayName: "性别专属房间",
			Type:        "hard",
			Category:    "性别隔离",
			Description: "性别专属房间只接纳对应性别的参会者，MIXED 房间不限。",
			AppliesTo:   []string{"validate", "assign", "bulk", "auto"},
			Params:      []RuleParam{},
		},
		{
			Name:        "same_event",
			DisplayName: "同一活动",
			Type:        "hard",
			Category:    "归属校验",
			Description: "参会者只能入住其所属活动的房间。",
			AppliesTo:   []string{"assign", "bulk", "auto"},
			Params:      []RuleParam{},
		},
		{
			Name:        "elderly_ground_floor",
			DisplayName: "老年人无障碍楼层",
			Type:        "hard",
			Category:    "无障碍",
			Description: "自动分配从不将老年参会者安排进无障碍不达标的房间；手工分配仅产生警告，允许人为覆盖。",
			AppliesTo:   []string{"auto"},
			Params:      []RuleParam{},
		},
		// =====================================================
		// 软规则
		// =====================================================
		{
			Name:        "sex_homogeneity",
			DisplayName: "混合房间同质性",
			Type:        "soft",
			Category:    "性别隔离",
			Description: "入住会在 MIXED 房间内造成性别混住时产生警告。",
			AppliesTo:   []string{"validate"},
			Params: []RuleParam{
				{Name: "weight", Type: "float", Description: "规划评分权重", Default: "0.8", Min: "0", Max: "1"},
			},
		},
		{
			Name:        "vip_room_match",
			DisplayName: "贵宾房型匹配",
			Type:        "soft",
			Category:    "偏好",
			Description: "贵宾参会者优先安排贵宾房间；安排进普通房间时产生警告。",
			AppliesTo:   []string{"validate", "auto"},
			Params: []RuleParam{
				{Name: "weight", Type: "float", Description: "规划评分权重", Default: "0.6", Min: "0", Max: "1"},
			},
		},
		{
			Name:        "floor_preference",
			DisplayName: "楼层偏好",
			Type:        "soft",
			Category:    "偏好",
			Description: "楼层偏好权重参数，当前评分不消费，保留供将来使用。",
			AppliesTo:   []string{"auto"},
			Params: []RuleParam{
				{Name: "weight", Type: "float", Description: "规划评分权重", Default: "0.4", Min: "0", Max: "1"},
			},
		},
		{
			Name:        "accessibility_preference",
			DisplayName: "无障碍偏好",
			Type:        "soft",
			Category:    "无障碍",
			Description: "老年参会者安排进无障碍达标房间时提升评分；手工安排不达标房间时产生警告。",
			AppliesTo:   []string{"validate", "auto"},
			Params: []RuleParam{
				{Name: "weight", Type: "float", Description: "规划评分权重", Default: "1.0", Min: "0", Max: "1"},
			},
		},
		{
			Name:        "replace_existing",
			DisplayName: "替换现有分配",
			Type:        "soft",
			Category:    "归属校验",
			Description: "参会者已有其他房间的分配时产生警告；换房本身是一次原子写入。",
			AppliesTo:   []string{"validate", "assign"},
			Params:      []RuleParam{},
		},
	}
}
