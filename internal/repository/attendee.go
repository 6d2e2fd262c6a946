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

// attendeeColumns 参会者查询列
const attendeeColumns = `id, event_id, name, sex, is_vip, is_elderly, is_leader, room_id, created_at, updated_at`

// AttendeeRepository 参会者仓储
type AttendeeRepository struct {
	db DB
}

// NewAttendeeRepository 创建参会者仓储
func NewAttendeeRepository(db DB) *AttendeeRepository {
	return &AttendeeRepository{db: db}
}

// Create 创建参会者
func (r *AttendeeRepository) Create(ctx context.Context, attendee *model.Attendee) error {
	if attendee.ID == uuid.Nil {
		attendee.ID = uuid.New()
	}
	now := time.Now()
	attendee.CreatedAt = now
	attendee.UpdatedAt = now

	query := `
		INSERT INTO attendees (
			id, event_id, name, sex, is_vip, is_elderly, is_leader, room_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		attendee.ID, attendee.EventID, attendee.Name, attendee.Sex,
		attendee.IsVIP, attendee.IsElderly, attendee.IsLeader, attendee.RoomID,
		attendee.CreatedAt, attendee.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建参会者失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取参会者
func (r *AttendeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attendee, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM attendees
		WHERE id = $1 AND deleted_at IS NULL
	`, attendeeColumns)

	return scanAttendee(r.db.QueryRowContext(ctx, query, id))
}

// Update 更新参会者
func (r *AttendeeRepository) Update(ctx context.Context, attendee *model.Attendee) error {
	attendee.UpdatedAt = time.Now()

	query := `
		UPDATE attendees SET
			name = $2, sex = $3, is_vip = $4, is_elderly = $5, is_leader = $6, updated_at = $7
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		attendee.ID, attendee.Name, attendee.Sex,
		attendee.IsVIP, attendee.IsElderly, attendee.IsLeader, attendee.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新参会者失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("参会者不存在")
	}

	return nil
}

// Delete 软删除参会者
func (r *AttendeeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE attendees SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除参会者失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("参会者不存在")
	}

	return nil
}

// List 查询参会者列表
func (r *AttendeeRepository) List(ctx context.Context, filter ListFilter) ([]*model.Attendee, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.EventID != nil {
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", argIndex))
		args = append(args, *filter.EventID)
		argIndex++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	if unassigned, ok := filter.Extra["unassigned"].(bool); ok && unassigned {
		conditions = append(conditions, "room_id IS NULL")
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendees WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "desc"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM attendees
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, attendeeColumns, whereClause, orderBy, orderDir, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	attendees, err := scanAttendeeRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return attendees, total, nil
}

// ListByIDs 根据ID列表获取某活动的参会者（缺失的ID直接略过）
func (r *AttendeeRepository) ListByIDs(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]*model.Attendee, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, eventID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM attendees
		WHERE event_id = $1 AND id IN (%s) AND deleted_at IS NULL
	`, attendeeColumns, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询参会者失败: %w", err)
	}
	defer rows.Close()

	return scanAttendeeRows(rows)
}

// ListUnassigned 获取某活动全部未分配参会者（按创建时间升序，保证规划输入稳定）
func (r *AttendeeRepository) ListUnassigned(ctx context.Context, eventID uuid.UUID) ([]*model.Attendee, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM attendees
		WHERE event_id = $1 AND room_id IS NULL AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, attendeeColumns)

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("查询未分配参会者失败: %w", err)
	}
	defer rows.Close()

	return scanAttendeeRows(rows)
}

// ListByRoom 获取某房间的全部住客
func (r *AttendeeRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*model.Attendee, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM attendees
		WHERE room_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, attendeeColumns)

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("查询房间住客失败: %w", err)
	}
	defer rows.Close()

	return scanAttendeeRows(rows)
}

// scanAttendee 扫描单行参会者数据
func scanAttendee(row *sql.Row) (*model.Attendee, error) {
	attendee := &model.Attendee{}
	var roomID uuid.NullUUID
	err := row.Scan(
		&attendee.ID, &attendee.EventID, &attendee.Name, &attendee.Sex,
		&attendee.IsVIP, &attendee.IsElderly, &attendee.IsLeader, &roomID,
		&attendee.CreatedAt, &attendee.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描参会者数据失败: %w", err)
	}
	if roomID.Valid {
		attendee.RoomID = &roomID.UUID
	}
	return attendee, nil
}

// scanAttendeeRows 扫描多行参会者数据
func scanAttendeeRows(rows *sql.Rows) ([]*model.Attendee, error) {
	var attendees []*model.Attendee
	for rows.Next() {
		attendee := &model.Attendee{}
		var roomID uuid.NullUUID
		err := rows.Scan(
			&attendee.ID, &attendee.EventID, &attendee.Name, &attendee.Sex,
			&attendee.IsVIP, &attendee.IsElderly, &attendee.IsLeader, &roomID,
			&attendee.CreatedAt, &attendee.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("扫描参会者数据失败: %w", err)
		}
		if roomID.Valid {
			attendee.RoomID = &roomID.UUID
		}
		attendees = append(attendees, attendee)
	}
	return attendees, rows.Err()
}
