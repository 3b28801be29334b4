package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teacher-transfer-api/internal/models"
)

const transferDetailColumns = `tr.id, tr.teacher_id, tr.from_school_id, tr.to_school_id, tr.status, tr.status_reason, tr.created_at,
       t.first_name AS teacher_first_name, t.last_name AS teacher_last_name, t.email AS teacher_email,
       fs.name AS from_school_name, ts.name AS to_school_name`

const transferDetailJoins = `FROM transfer_requests tr
       JOIN teachers t ON t.id = tr.teacher_id
       JOIN schools fs ON fs.id = tr.from_school_id
       JOIN schools ts ON ts.id = tr.to_school_id`

// UpdateTransferStatusParams carries a guarded status transition. The update
// only lands when the row is still in one of the expected source statuses.
type UpdateTransferStatusParams struct {
	ID       string
	Status   models.TransferStatus
	Reason   string
	Expected []models.TransferStatus
}

// ApproveTransferParams finalises an approval: the transfer row moves to
// approved and the teacher is reassigned to the destination school.
type ApproveTransferParams struct {
	ID        string
	TeacherID string
	ToSchool  string
	Reason    string
	Expected  []models.TransferStatus
}

// TransferRepository manages persistence for transfer requests.
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository constructs a TransferRepository.
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create inserts a new transfer request in pending state.
func (r *TransferRepository) Create(ctx context.Context, request *models.TransferRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.TransferStatusPending
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO transfer_requests (id, teacher_id, from_school_id, to_school_id, status, status_reason, created_at)
		VALUES (:id, :teacher_id, :from_school_id, :to_school_id, :status, :status_reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create transfer request: %w", err)
	}
	return nil
}

// GetByID fetches a transfer request by ID.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*models.TransferRequest, error) {
	const query = `SELECT id, teacher_id, from_school_id, to_school_id, status, status_reason, created_at
		FROM transfer_requests WHERE id = $1`
	var request models.TransferRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// GetDetailByID fetches a transfer request joined with teacher and school names.
func (r *TransferRepository) GetDetailByID(ctx context.Context, id string) (*models.TransferRequestDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE tr.id = $1`, transferDetailColumns, transferDetailJoins)
	var detail models.TransferRequestDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns transfer requests matching the filter, newest first. An empty
// filter returns everything.
func (r *TransferRepository) List(ctx context.Context, filter models.TransferFilter) ([]models.TransferRequestDetail, error) {
	var conditions []string
	var args []interface{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("tr.teacher_id = $%d", len(args)))
	}
	if filter.FromSchoolID != "" {
		args = append(args, filter.FromSchoolID)
		conditions = append(conditions, fmt.Sprintf("tr.from_school_id = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s %s`, transferDetailColumns, transferDetailJoins)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY tr.created_at DESC"

	var requests []models.TransferRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list transfer requests: %w", err)
	}
	return requests, nil
}

// HasPending reports whether the teacher already has a pending request. The
// partial unique index remains the authoritative guard; this check exists to
// return a clean conflict without burning the insert.
func (r *TransferRepository) HasPending(ctx context.Context, teacherID string) (bool, error) {
	const query = `SELECT 1 FROM transfer_requests WHERE teacher_id = $1 AND status = 'pending' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending transfer: %w", err)
	}
	return true, nil
}

// UpdateStatus applies a guarded status transition. Returns sql.ErrNoRows
// when the row is missing or no longer in an expected source status, so a
// losing concurrent writer observes a conflict instead of clobbering the row.
func (r *TransferRepository) UpdateStatus(ctx context.Context, params UpdateTransferStatusParams) error {
	query, args := statusUpdateQuery(params)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update transfer status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transfer status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Approve reassigns the teacher and closes the request as approved inside a
// single transaction. The row is locked first so concurrent deciders
// serialize; the guarded update then rejects any transition from a status
// outside the expected set.
func (r *TransferRepository) Approve(ctx context.Context, params ApproveTransferParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approval tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status models.TransferStatus
	if err := tx.GetContext(ctx, &status, `SELECT status FROM transfer_requests WHERE id = $1 FOR UPDATE`, params.ID); err != nil {
		return err
	}
	if !statusExpected(status, params.Expected) {
		return sql.ErrNoRows
	}

	result, err := tx.ExecContext(ctx, `UPDATE teachers SET current_school_id = $1, updated_at = $2 WHERE id = $3`,
		params.ToSchool, time.Now().UTC(), params.TeacherID)
	if err != nil {
		return fmt.Errorf("reassign teacher: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reassignment rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	query, args := statusUpdateQuery(UpdateTransferStatusParams{
		ID:       params.ID,
		Status:   models.TransferStatusApproved,
		Reason:   params.Reason,
		Expected: params.Expected,
	})
	result, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update transfer status: %w", err)
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transfer status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approval tx: %w", err)
	}
	return nil
}

func statusUpdateQuery(params UpdateTransferStatusParams) (string, []interface{}) {
	args := []interface{}{params.Status, params.Reason, params.ID}
	placeholders := make([]string, 0, len(params.Expected))
	for _, expected := range params.Expected {
		args = append(args, expected)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	query := fmt.Sprintf(`UPDATE transfer_requests SET status = $1, status_reason = $2 WHERE id = $3 AND status IN (%s)`,
		strings.Join(placeholders, ", "))
	return query, args
}

func statusExpected(status models.TransferStatus, expected []models.TransferStatus) bool {
	for _, candidate := range expected {
		if status == candidate {
			return true
		}
	}
	return false
}
