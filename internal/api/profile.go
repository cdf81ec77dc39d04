package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"schedulr/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type updateInfoRequest struct {
	OriginalName *string `form:"original_name" json:"original_name"`
	PhoneNumber  *int64  `form:"phone_number" json:"phone_number"`
	Bio          *string `form:"bio" json:"bio"`
	About        *string `form:"about" json:"about"`
	Profession   *string `form:"profession" json:"profession"`
}

// handleUpdateInfo 创建或部分更新令牌归属用户的扩展资料。
//
// PATCH /api/update/info
func (s *Server) handleUpdateInfo(c *gin.Context) {
	var req updateInfoRequest
	if err := bindBody(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Unsuccessfull",
			"Status":  "Request rejected",
			"Error":   err.Error(),
		})
		return
	}

	// map 更新绕过 gorm 钩子，小写化在这里做
	updates := map[string]interface{}{}
	if req.OriginalName != nil {
		updates["original_name"] = *req.OriginalName
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.Bio != nil {
		updates["bio"] = strings.ToLower(*req.Bio)
	}
	if req.About != nil {
		updates["about"] = strings.ToLower(*req.About)
	}
	if req.Profession != nil {
		updates["profession"] = strings.ToLower(*req.Profession)
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Nothing to update",
			"Status":  "Request rejected",
		})
		return
	}

	owner, ok := s.ownerOr404(c)
	if !ok {
		return
	}

	tx := s.tx(c)
	var info model.UserInfo
	err := tx.Where("user_id = ?", owner.ID).First(&info).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		info = model.UserInfo{
			UserID:       owner.ID,
			OriginalName: req.OriginalName,
			PhoneNumber:  req.PhoneNumber,
			Bio:          req.Bio,
			About:        req.About,
			Profession:   req.Profession,
		}
		if err := tx.Create(&info).Error; err != nil {
			s.logger.Error("create user info failed",
				slog.Uint64("user_id", uint64(owner.ID)),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusBadRequest, gin.H{
				"Message": "User info not updated",
				"Status":  "Failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"Message": "User info successfully updated",
			"Status":  "Okay",
		})
		return
	}
	if err != nil {
		s.logger.Error("query user info failed",
			slog.Uint64("user_id", uint64(owner.ID)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for database",
			"Status":  "Failed",
		})
		return
	}

	if err := tx.Model(&model.UserInfo{}).Where("user_id = ?", owner.ID).Updates(updates).Error; err != nil {
		s.logger.Error("update user info failed",
			slog.Uint64("user_id", uint64(owner.ID)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "User info not updated",
			"Status":  "Failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"Message": "User info successfully updated",
		"Status":  "Okay",
	})
}

// handleGetInfo 返回令牌归属用户的扩展资料。
//
// GET /api/get/info
//
// 与课表查询一致：没有资料时返回 404 和哨兵值 "Empty"。
func (s *Server) handleGetInfo(c *gin.Context) {
	owner, ok := s.ownerOr404(c)
	if !ok {
		return
	}

	var info model.UserInfo
	err := s.tx(c).Where("user_id = ?", owner.ID).First(&info).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"Message": "User info successfully fetched",
			"Data":    "Empty",
			"Status":  "Okay",
		})
		return
	}
	if err != nil {
		s.logger.Error("query user info failed",
			slog.Uint64("user_id", uint64(owner.ID)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for database",
			"Status":  "Failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"Message": "User info successfully fetched",
		"Data":    info,
		"Status":  "Okay",
	})
}
