package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const txKey = "dbTx"

// UnitOfWork 为每个请求开启一个数据库事务，请求结束时统一收尾。
//
// 连接池进程级常驻，这里只圈定逻辑事务：2xx/4xx 提交（部分更新语义要求
// 已执行的字段更新在 4xx 下仍然生效），5xx 或 panic 回滚。收尾阶段若响应
// 已经写出则绝不再写第二份，避免双重响应。
func UnitOfWork(db *gorm.DB, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tx := db.WithContext(c.Request.Context()).Begin()
		if tx.Error != nil {
			if logger != nil {
				logger.Error("begin transaction failed", slog.String("error", tx.Error.Error()))
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"Message": "Internal server error for database",
				"Status":  "Failed",
			})
			return
		}
		c.Set(txKey, tx)

		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback().Error
				if logger != nil {
					logger.Error("panic in request",
						slog.Any("panic", r),
						slog.String("path", c.Request.URL.Path),
					)
				}
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"Message": "Internal server error",
						"Status":  "Failed",
					})
				} else {
					c.Abort()
				}
			}
		}()

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			if err := tx.Rollback().Error; err != nil && logger != nil {
				logger.Warn("rollback failed", slog.String("error", err.Error()))
			}
			return
		}
		if err := tx.Commit().Error; err != nil {
			if logger != nil {
				logger.Error("commit failed",
					slog.String("error", err.Error()),
					slog.String("path", c.Request.URL.Path),
				)
			}
			if !c.Writer.Written() {
				c.JSON(http.StatusInternalServerError, gin.H{
					"Message": "Internal server error for database",
					"Status":  "Failed",
				})
			}
		}
	}
}

// Tx 返回当前请求的事务句柄；中间件未启用时退回进程级连接池。
func Tx(c *gin.Context, fallback *gorm.DB) *gorm.DB {
	if v, ok := c.Get(txKey); ok {
		if tx, ok := v.(*gorm.DB); ok {
			return tx
		}
	}
	return fallback
}
