package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Schedule 表示用户课表中的一条时段记录。
//
// 记录只通过 UserID 外键归属用户，不做内存级联；同一用户同一时段
// 允许重复（不做冲突检测）。FromTime/ToTime 按原样字符串保存。
type Schedule struct {
	ID        uint      `gorm:"primaryKey" json:"id"` // 记录 ID
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID   uint   `gorm:"not null;index" json:"user_id"`              // 所属用户 ID
	Period   int    `gorm:"not null" json:"period"`                     // 节次
	Section  string `gorm:"type:varchar(32);not null" json:"section"`   // 班级分组（统一大写）
	Semester int    `gorm:"not null" json:"semester"`                   // 学期
	Branch   string `gorm:"type:varchar(64);not null" json:"branch"`    // 专业方向（统一小写）
	Subject  string `gorm:"type:varchar(128);not null" json:"subject"`  // 科目（统一小写）
	Day      string `gorm:"type:varchar(16);not null;index" json:"day"` // 星期（统一小写）
	FromTime string `gorm:"type:varchar(16);not null" json:"from_time"` // 开始时间
	ToTime   string `gorm:"type:varchar(16);not null" json:"to_time"`   // 结束时间
}

// BeforeSave 落库前统一大小写。
func (s *Schedule) BeforeSave(tx *gorm.DB) error {
	s.Section = strings.ToUpper(s.Section)
	s.Branch = strings.ToLower(s.Branch)
	s.Subject = strings.ToLower(s.Subject)
	s.Day = strings.ToLower(s.Day)
	return nil
}

// UserInfo 表示用户的扩展资料，一个用户至多一条。
type UserInfo struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID       uint    `gorm:"uniqueIndex;not null" json:"user_id"` // 所属用户 ID
	OriginalName *string `gorm:"type:varchar(191)" json:"original_name"`
	PhoneNumber  *int64  `json:"phone_number"`
	Bio          *string `gorm:"type:varchar(512)" json:"bio"`        // 统一小写
	About        *string `gorm:"type:varchar(1024)" json:"about"`     // 统一小写
	Profession   *string `gorm:"type:varchar(191)" json:"profession"` // 统一小写
}

// BeforeSave 落库前统一小写。
func (i *UserInfo) BeforeSave(tx *gorm.DB) error {
	lowerInPlace(i.Bio)
	lowerInPlace(i.About)
	lowerInPlace(i.Profession)
	return nil
}

func lowerInPlace(s *string) {
	if s != nil {
		*s = strings.ToLower(*s)
	}
}
