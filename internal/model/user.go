package model

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case Student, Teacher, Admin:
		return true
	}
	return false
}

const DefaultSchoolName = "Demo School"

// swagger:model User
type User struct {
	BaseModel
	Username   string   `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email      string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password   string   `gorm:"size:100;not null" json:"-"`
	FullName   string   `gorm:"size:100;not null" json:"full_name"`
	Role       UserRole `gorm:"size:20;not null;default:'student'" json:"role"`
	ClassName  *string  `gorm:"size:100;index" json:"class_name"`
	SchoolName string   `gorm:"size:100;default:'Demo School'" json:"school_name"`
	IsActive   bool     `gorm:"default:true" json:"is_active"`
}

func (User) TableName() string {
	return "users"
}
