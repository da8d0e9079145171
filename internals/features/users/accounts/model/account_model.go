package model

import (
	"time"

	"github.com/google/uuid"
)

type AccountModel struct {
	AccountID           uuid.UUID `gorm:"column:account_id;type:uuid;default:gen_random_uuid();primaryKey" json:"account_id"`
	AccountEmail        string    `gorm:"column:account_email;type:varchar(160);not null;uniqueIndex" json:"account_email"`
	AccountFullName     string    `gorm:"column:account_full_name;type:varchar(160);not null" json:"account_full_name"`
	AccountRole         string    `gorm:"column:account_role;type:varchar(20);not null;default:'student'" json:"account_role"`
	AccountPasswordHash string    `gorm:"column:account_password_hash;type:text;not null" json:"-"`

	AccountCreatedAt time.Time `gorm:"column:account_created_at;not null;autoCreateTime" json:"account_created_at"`
	AccountUpdatedAt time.Time `gorm:"column:account_updated_at;not null;autoUpdateTime" json:"account_updated_at"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

// StudentModel is the competitor. A tutor's account can register several students.
type StudentModel struct {
	StudentID         uuid.UUID  `gorm:"column:student_id;type:uuid;default:gen_random_uuid();primaryKey" json:"student_id"`
	StudentAccountID  *uuid.UUID `gorm:"column:student_account_id;type:uuid;index" json:"student_account_id"`
	StudentFullName   string     `gorm:"column:student_full_name;type:varchar(160);not null" json:"student_full_name"`
	StudentSchoolName *string    `gorm:"column:student_school_name;type:varchar(160)" json:"student_school_name"`
	StudentGrade      *string    `gorm:"column:student_grade;type:varchar(40)" json:"student_grade"`

	StudentCreatedAt time.Time `gorm:"column:student_created_at;not null;autoCreateTime" json:"student_created_at"`
	StudentUpdatedAt time.Time `gorm:"column:student_updated_at;not null;autoUpdateTime" json:"student_updated_at"`
}

func (StudentModel) TableName() string {
	return "students"
}
