// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhusu/zhusu/pkg/model"
)

// roomColumns 房间查询列（带 r. 前缀以便联表）
const roomColumns = `r.id, r.building_id, r.number, r.capacity, r.sex_type, r.floor,
	r.is_available, r.is_ground_floor_suitable, r.is_vip, r.created_at, r.updated_at`

// RoomRepository 房间仓储
type RoomRepository struct {
	db DB
}

// NewRoomRepository 创建房间仓储
func NewRoomRepository(db DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create 创建房间
func (r *RoomRepository) Create(ctx context.Context, room *model.Room) error {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now

	query := `
		INSERT INTO rooms (
			id, building_id, number, capacity, sex_type, floor,
			is_available, is_ground_floor_suitable, is_vip, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		room.ID, room.BuildingID, room.Number, room.Capacity, room.SexType, room.Floor,
		room.IsAvailable, room.IsGroundFloorSuitable, room.IsVIP,
		room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建房间失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取房间
func (r *RoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM rooms r
		WHERE r.id = $1 AND r.deleted_at IS NULL
	`, roomColumns)

	return scanRoom(r.db.QueryRowContext(ctx, query, id))
}

// GetEventID 获取房间所属活动（经由楼栋与住宿点）
func (r *RoomRepository) GetEventID(ctx context.Context, roomID uuid.UUID) (uuid.UUID, error) {
	query := `
		SELECT a.event_id
		FROM rooms r
		JOIN buildings b ON r.building_id = b.id
		JOIN accommodations a ON b.accommodation_id = a.id
		WHERE r.id = $1 AND r.deleted_at IS NULL
	`

	var eventID uuid.UUID
	err := r.db.QueryRowContext(ctx, query, roomID).Scan(&eventID)
	if err == sql.ErrNoRows {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("查询房间所属活动失败: %w", err)
	}
	return eventID, nil
}

// Update 更新房间
func (r *RoomRepository) Update(ctx context.Context, room *model.Room) error {
	room.UpdatedAt = time.Now()

	query := `
		UPDATE rooms SET
			number = $2, capacity = $3, sex_type = $4, floor = $5,
			is_available = $6, is_ground_floor_suitable = $7, is_vip = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		room.ID, room.Number, room.Capacity, room.SexType, room.Floor,
		room.IsAvailable, room.IsGroundFloorSuitable, room.IsVIP, room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新房间失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("房间不存在")
	}

	return nil
}

// Delete 软删除房间
func (r *RoomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE rooms SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除房间失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("房间不存在")
	}

	return nil
}

// List 查询房间列表
func (r *RoomRepository) List(ctx context.Context, filter ListFilter) ([]*model.Room, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "r.deleted_at IS NULL")

	joins := ""
	if filter.EventID != nil {
		joins = `
			JOIN buildings b ON r.building_id = b.id
			JOIN accommodations a ON b.accommodation_id = a.id`
		conditions = append(conditions, fmt.Sprintf("a.event_id = $%d", argIndex))
		args = append(args, *filter.EventID)
		argIndex++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("r.number ILIKE $%d", argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	if available, ok := filter.Extra["available"].(bool); ok && available {
		conditions = append(conditions, "r.is_available = TRUE")
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM rooms r%s WHERE %s", joins, whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "r.created_at"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "desc"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM rooms r%s
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, roomColumns, joins, whereClause, orderBy, orderDir, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	rooms, err := scanRoomRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return rooms, total, nil
}

// ListAvailableByEvent 获取某活动全部可用房间（按楼栋与房号稳定排序）
func (r *RoomRepository) ListAvailableByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.Room, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM rooms r
		JOIN buildings b ON r.building_id = b.id
		JOIN accommodations a ON b.accommodation_id = a.id
		WHERE a.event_id = $1 AND r.is_available = TRUE AND r.deleted_at IS NULL
		ORDER BY b.name ASC, r.number ASC, r.id ASC
	`, roomColumns)

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("查询可用房间失败: %w", err)
	}
	defer rows.Close()

	return scanRoomRows(rows)
}

// scanRoom 扫描单行房间数据
func scanRoom(row *sql.Row) (*model.Room, error) {
	room := &model.Room{}
	err := row.Scan(
		&room.ID, &room.BuildingID, &room.Number, &room.Capacity, &room.SexType, &room.Floor,
		&room.IsAvailable, &room.IsGroundFloorSuitable, &room.IsVIP,
		&room.CreatedAt, &room.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描房间数据失败: %w", err)
	}
	return room, nil
}

// scanRoomRows 扫描多行房间数据
func scanRoomRows(rows *sql.Rows) ([]*model.Room, error) {
	var rooms []*model.Room
	for rows.Next() {
		room := &model.Room{}
		err := rows.Scan(
			&room.ID, &room.BuildingID, &room.Number, &room.Capacity, &room.SexType, &room.Floor,
			&room.IsAvailable, &room.IsGroundFloorSuitable, &room.IsVIP,
			&room.CreatedAt, &room.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("扫描房间数据失败: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
