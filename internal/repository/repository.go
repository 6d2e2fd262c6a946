// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Repository 通用仓储接口
type Repository[T any] interface {
	Create(ctx context.Context, entity *T) error
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*T, int, error)
}

// ListFilter 列表查询过滤器
type ListFilter struct {
	EventID  *uuid.UUID             `json:"event_id,omitempty"`
	Search   string                 `json:"search,omitempty"`
	Offset   int                    `json:"offset"`
	Limit    int                    `json:"limit"`
	OrderBy  string                 `json:"order_by,omitempty"`
	OrderDir string                 `json:"order_dir,omitempty"` // asc/desc
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{
		Offset:   0,
		Limit:    20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset 设置偏移
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithEventID 设置活动ID
func (f ListFilter) WithEventID(eventID uuid.UUID) ListFilter {
	f.EventID = &eventID
	return f
}

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Tx 事务接口
type Tx interface {
	DB
	Commit() error
	Rollback() error
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}
