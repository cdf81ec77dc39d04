package model

import (
	"strings"
	"time"

	"schedulr/internal/api/auth"

	"gorm.io/gorm"
)

// User 表示系统用户。
//
// Password 字段在内存中短暂持有明文，BeforeCreate 钩子落库前会替换为
// bcrypt 哈希，数据库中永远不存明文。
type User struct {
	ID              uint    `gorm:"primaryKey"`                             // 用户 ID
	Username        string  `gorm:"type:varchar(191);not null;index"`       // 用户名
	Email           string  `gorm:"type:varchar(191);uniqueIndex;not null"` // 邮箱（唯一，统一小写）
	Password        string  `gorm:"not null"`                               // bcrypt 哈希
	ProfileImageURI *string `gorm:"type:varchar(512)"`                      // 头像链接（可选）
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BeforeCreate 落库前规范化邮箱并哈希密码。
//
// 唯一索引建立在小写后的邮箱上，大小写不同的同一邮箱在这里统一，
// 并发插入时由索引兜底触发重复键错误。
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	if u.Password != "" {
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return err
		}
		u.Password = hash
	}
	return nil
}

// NormalizeEmail 返回邮箱的规范形式（去空白、小写）。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
