package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type txRecord struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"type:varchar(64)"`
}

func newTxDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
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

	if err := db.AutoMigrate(&txRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTxRouter(t *testing.T, db *gorm.DB, handler gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(UnitOfWork(db, nil))
	r.POST("/write", handler)
	return r
}

func postWrite(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUnitOfWork_CommitsOnSuccess(t *testing.T) {
	db := newTxDB(t)
	r := newTxRouter(t, db, func(c *gin.Context) {
		if err := Tx(c, db).Create(&txRecord{Name: "committed"}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"Error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"Status": "Okay"})
	})

	if w := postWrite(r); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var count int64
	db.Model(&txRecord{}).Count(&count)
	if count != 1 {
		t.Fatalf("write must be committed, count=%d", count)
	}
}

func TestUnitOfWork_CommitsOnClientError(t *testing.T) {
	db := newTxDB(t)
	r := newTxRouter(t, db, func(c *gin.Context) {
		// 部分更新语义：即使最终回复 4xx，已执行的写入也要生效
		if err := Tx(c, db).Create(&txRecord{Name: "partial"}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"Error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"Status": "Failed"})
	})

	if w := postWrite(r); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var count int64
	db.Model(&txRecord{}).Count(&count)
	if count != 1 {
		t.Fatalf("4xx must still commit completed writes, count=%d", count)
	}
}

func TestUnitOfWork_RollsBackOnServerError(t *testing.T) {
	db := newTxDB(t)
	r := newTxRouter(t, db, func(c *gin.Context) {
		if err := Tx(c, db).Create(&txRecord{Name: "doomed"}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"Error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"Status": "Failed"})
	})

	if w := postWrite(r); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	var count int64
	db.Model(&txRecord{}).Count(&count)
	if count != 0 {
		t.Fatalf("5xx must roll the transaction back, count=%d", count)
	}
}

func TestUnitOfWork_RollsBackOnPanic(t *testing.T) {
	db := newTxDB(t)
	r := newTxRouter(t, db, func(c *gin.Context) {
		if err := Tx(c, db).Create(&txRecord{Name: "doomed"}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"Error": err.Error()})
			return
		}
		panic("boom")
	})

	w := postWrite(r)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("panic should surface as 500, got %d", w.Code)
	}

	var count int64
	db.Model(&txRecord{}).Count(&count)
	if count != 0 {
		t.Fatalf("panic must roll the transaction back, count=%d", count)
	}
}

func TestTx_FallsBackWithoutMiddleware(t *testing.T) {
	db := newTxDB(t)
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := Tx(c, db); got != db {
		t.Fatalf("expected fallback handle without middleware")
	}
}
