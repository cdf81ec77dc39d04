package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"schedulr/internal/api/auth"
	"schedulr/internal/model"
	"schedulr/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type createUserRequest struct {
	Username        string  `form:"username" json:"username" binding:"required"`
	Email           string  `form:"email" json:"email" binding:"required,email"`
	Password        string  `form:"password" json:"password" binding:"required"`
	ProfileImageURI *string `form:"profileImageURI" json:"profileImageURI"`
}

type verifyUserRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required"`
}

type deleteUserRequest struct {
	Password string `form:"password" json:"password" binding:"required"`
}

// handleCreateUser 创建新用户并签发令牌。
//
// POST /api/create/user
//
// 存在性预检只是快路径，并发重复注册由邮箱唯一索引兜底。
func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := bindBody(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Unsuccessfull",
			"Status":  "Request rejected",
			"Error":   err.Error(),
		})
		return
	}
	email := model.NormalizeEmail(req.Email)

	tx := s.tx(c)
	var existing model.User
	err := tx.Where("username = ? AND email = ?", req.Username, email).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "User already exist in database",
			"Status":  "Request rejected",
		})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("query user failed", slog.String("email", email), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for database",
			"Status":  "Failed",
		})
		return
	}

	// 密码哈希与邮箱小写化发生在 model.User 的 BeforeCreate 钩子里
	user := model.User{
		Username:        req.Username,
		Email:           email,
		Password:        req.Password,
		ProfileImageURI: req.ProfileImageURI,
	}
	if err := tx.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusBadRequest, gin.H{
				"Message": "Unsuccessfull",
				"Error":   "This email already exist in database",
			})
			return
		}
		s.logger.Error("create user failed", slog.String("email", email), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for database",
			"Status":  "Failed",
		})
		return
	}

	token, err := auth.IssueToken(user.Username, user.Email, s.cfg.Security.TokenExpiry, s.secret)
	if err != nil {
		s.logger.Error("sign token failed", slog.String("email", email), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for JWT",
			"Status":  "Failed",
		})
		return
	}

	s.logger.Info("user created", slog.String("username", user.Username), slog.String("email", email))
	c.JSON(http.StatusOK, gin.H{
		"Message":   "User successfully created in database",
		"JWT_Token": token,
		"Status":    "Okay",
	})
}

// handleVerifyUser 校验用户凭证并签发新令牌（登录）。
//
// POST /api/verify/user
func (s *Server) handleVerifyUser(c *gin.Context) {
	var req verifyUserRequest
	if err := bindBody(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Unsuccessfull",
			"Status":  "Request rejected",
			"Error":   err.Error(),
		})
		return
	}
	email := model.NormalizeEmail(req.Email)

	if !s.loginLimiter.Allow(c.Request.Context(), strings.ToLower(req.Username)) {
		metrics.LoginThrottledTotal.Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"Message": "Too many verify attempts",
			"Status":  "Request rejected",
		})
		return
	}

	var user model.User
	err := s.tx(c).Where("username = ? AND email = ?", req.Username, email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"Message": "User not exist in database",
				"Status":  "Verify failed",
			})
			return
		}
		s.logger.Error("query user failed", slog.String("email", email), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for database",
			"Status":  "Failed",
		})
		return
	}

	if !auth.CheckPassword(req.Password, user.Password) {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Unsuccessfull",
			"Error":   "Verify failed",
		})
		return
	}

	token, err := auth.IssueToken(user.Username, user.Email, s.cfg.Security.TokenExpiry, s.secret)
	if err != nil {
		s.logger.Error("sign token failed", slog.String("email", email), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for JWT",
			"Status":  "Failed",
		})
		return
	}

	s.logger.Info("user verified", slog.String("username", user.Username), slog.String("email", email))
	c.JSON(http.StatusOK, gin.H{
		"Message":   "User successfully verified",
		"JWT_Token": token,
		"Status":    "Okay",
	})
}

// handleDeleteUser 校验密码后注销账户，并级联清理其课表与资料。
//
// DELETE /api/delete/user（需要令牌 + 密码）
//
// 级联发生在请求级事务里：令牌对但密码错时用户及其数据原样保留。
func (s *Server) handleDeleteUser(c *gin.Context) {
	var req deleteUserRequest
	if err := bindBody(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Unsuccessfull",
			"Status":  "Request rejected",
			"Error":   err.Error(),
		})
		return
	}

	username, email := authIdentity(c)
	tx := s.tx(c)

	var user model.User
	err := tx.Where("username = ? AND email = ?", username, email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"Message": "User not exist in database",
				"Status":  "Not found",
			})
			return
		}
		s.logger.Error("query user failed", slog.String("username", username), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for database",
			"Status":  "Failed",
		})
		return
	}

	if !auth.CheckPassword(req.Password, user.Password) {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Unsuccessfull",
			"Error":   "Password mismatch",
		})
		return
	}

	if err := tx.Where("user_id = ?", user.ID).Delete(&model.Schedule{}).Error; err != nil {
		s.logger.Error("delete schedules failed", slog.String("username", username), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for database",
			"Status":  "Failed",
		})
		return
	}
	if err := tx.Where("user_id = ?", user.ID).Delete(&model.UserInfo{}).Error; err != nil {
		s.logger.Error("delete user info failed", slog.String("username", username), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for database",
			"Status":  "Failed",
		})
		return
	}
	if err := tx.Delete(&user).Error; err != nil {
		s.logger.Error("delete user failed", slog.String("username", username), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for database",
			"Status":  "Failed",
		})
		return
	}

	s.logger.Info("user deleted", slog.String("username", username), slog.String("email", email))
	c.JSON(http.StatusOK, gin.H{
		"Message": "User successfully deleted from database",
		"Status":  "Okay",
	})
}
