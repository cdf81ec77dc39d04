package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"schedulr/internal/api/auth"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&User{}, &Schedule{}, &UserInfo{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestUserBeforeCreate_HashesAndNormalizes(t *testing.T) {
	db := newTestDB(t)

	u := User{Username: "alice", Email: "  Alice@Example.COM ", Password: "secret"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	var stored User
	if err := db.First(&stored, u.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", stored.Email)
	}
	if stored.Password == "secret" {
		t.Fatalf("plaintext password must never be stored")
	}
	if !auth.CheckPassword("secret", stored.Password) {
		t.Fatalf("stored digest does not verify original password")
	}
}

func TestUserEmailUniqueIndex(t *testing.T) {
	db := newTestDB(t)

	if err := db.Create(&User{Username: "alice", Email: "a@x.com", Password: "pw"}).Error; err != nil {
		t.Fatalf("create first user: %v", err)
	}
	// 大小写不同的同一邮箱在钩子里统一小写，撞唯一索引
	err := db.Create(&User{Username: "bob", Email: "A@X.com", Password: "pw"}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected ErrDuplicatedKey, got %v", err)
	}
}

func TestScheduleBeforeSave_Normalizes(t *testing.T) {
	db := newTestDB(t)

	sched := Schedule{
		UserID:   1,
		Period:   3,
		Section:  "b",
		Semester: 5,
		Branch:   "CSE",
		Subject:  "Operating Systems",
		Day:      "Monday",
		FromTime: "10:00",
		ToTime:   "11:00",
	}
	if err := db.Create(&sched).Error; err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	var stored Schedule
	if err := db.First(&stored, sched.ID).Error; err != nil {
		t.Fatalf("reload schedule: %v", err)
	}
	if stored.Section != "B" {
		t.Fatalf("section should be uppercased, got %q", stored.Section)
	}
	if stored.Branch != "cse" || stored.Subject != "operating systems" || stored.Day != "monday" {
		t.Fatalf("branch/subject/day should be lowercased: %+v", stored)
	}
}

func TestUserInfoBeforeSave_LowersTextFields(t *testing.T) {
	db := newTestDB(t)

	bio := "Loves Go"
	name := "Alice"
	info := UserInfo{UserID: 1, Bio: &bio, OriginalName: &name}
	if err := db.Create(&info).Error; err != nil {
		t.Fatalf("create info: %v", err)
	}

	var stored UserInfo
	if err := db.First(&stored, info.ID).Error; err != nil {
		t.Fatalf("reload info: %v", err)
	}
	if stored.Bio == nil || *stored.Bio != "loves go" {
		t.Fatalf("bio should be lowercased, got %v", stored.Bio)
	}
	// 姓名保持原样
	if stored.OriginalName == nil || *stored.OriginalName != "Alice" {
		t.Fatalf("original name must keep its case, got %v", stored.OriginalName)
	}
}

func TestUserInfoUniquePerUser(t *testing.T) {
	db := newTestDB(t)

	if err := db.Create(&UserInfo{UserID: 7}).Error; err != nil {
		t.Fatalf("create info: %v", err)
	}
	err := db.Create(&UserInfo{UserID: 7}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected ErrDuplicatedKey for second profile row, got %v", err)
	}
}
