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

const teacherColumns = `id, first_name, last_name, email, nrc, ts_no, address, marital_status,
       medical_certificate, academic_qualifications, professional_qualifications,
       current_school_type, current_position, subject_specialization, experience,
       current_school_id, created_at, updated_at`

const teacherDetailColumns = `t.id, t.first_name, t.last_name, t.email, t.nrc, t.ts_no, t.address, t.marital_status,
       t.medical_certificate, t.academic_qualifications, t.professional_qualifications,
       t.current_school_type, t.current_position, t.subject_specialization, t.experience,
       t.current_school_id, t.created_at, t.updated_at,
       s.name AS school_name, s.code AS school_code, s.district AS school_district`

// TeacherRepository manages persistence for teacher profiles.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teacher profiles joined with their current school.
func (r *TeacherRepository) List(ctx context.Context) ([]models.TeacherDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM teachers t JOIN schools s ON s.id = t.current_school_id ORDER BY t.last_name ASC, t.first_name ASC`, teacherDetailColumns)
	var teachers []models.TeacherDetail
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// FindByID fetches a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf(`SELECT %s FROM teachers WHERE id = $1`, teacherColumns)
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindDetailByID fetches a teacher with the current school joined in.
func (r *TeacherRepository) FindDetailByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM teachers t JOIN schools s ON s.id = t.current_school_id WHERE t.id = $1`, teacherDetailColumns)
	var teacher models.TeacherDetail
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ExistsByEmail checks if a teacher already uses the email.
func (r *TeacherRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "LOWER(email) = LOWER($1)", email)
}

// ExistsByNRC checks if a teacher already uses the NRC.
func (r *TeacherRepository) ExistsByNRC(ctx context.Context, nrc string) (bool, error) {
	return r.exists(ctx, "nrc = $1", nrc)
}

// ExistsByTsNo checks if a teacher already uses the TS number.
func (r *TeacherRepository) ExistsByTsNo(ctx context.Context, tsNo string) (bool, error) {
	if strings.TrimSpace(tsNo) == "" {
		return false, nil
	}
	return r.exists(ctx, "ts_no = $1", tsNo)
}

func (r *TeacherRepository) exists(ctx context.Context, condition string, arg interface{}) (bool, error) {
	query := "SELECT 1 FROM teachers WHERE " + condition + " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher existence: %w", err)
	}
	return true, nil
}

// CreateWithAccount inserts the teacher profile and its user account as one
// unit of work; neither row persists if the other insert fails.
func (r *TeacherRepository) CreateWithAccount(ctx context.Context, teacher *models.Teacher, user *models.User) error {
	applyTeacherDefaults(teacher)
	user.TeacherProfileID = &teacher.ID
	applyUserDefaults(user)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provisioning tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const teacherQuery = `INSERT INTO teachers
		(id, first_name, last_name, email, nrc, ts_no, address, marital_status,
		 medical_certificate, academic_qualifications, professional_qualifications,
		 current_school_type, current_position, subject_specialization, experience,
		 current_school_id, created_at, updated_at)
		VALUES (:id, :first_name, :last_name, :email, :nrc, :ts_no, :address, :marital_status,
		 :medical_certificate, :academic_qualifications, :professional_qualifications,
		 :current_school_type, :current_position, :subject_specialization, :experience,
		 :current_school_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, teacherQuery, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}

	const userQuery = `INSERT INTO users (id, username, password_hash, role, teacher_profile_id, created_at, updated_at)
		VALUES (:id, :username, :password_hash, :role, :teacher_profile_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit provisioning tx: %w", err)
	}
	return nil
}

// UpdateProfile modifies the mutable profile attributes.
func (r *TeacherRepository) UpdateProfile(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET first_name = :first_name, last_name = :last_name, address = :address,
		marital_status = :marital_status, current_position = :current_position,
		subject_specialization = :subject_specialization, experience = :experience, updated_at = :updated_at
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, teacher)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check teacher update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the teacher profile. The linked user account disappears with
// it through the foreign-key cascade.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM teachers WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check teacher delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func applyTeacherDefaults(teacher *models.Teacher) {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	if len(teacher.Experience) == 0 {
		teacher.Experience = []byte("[]")
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now
}
