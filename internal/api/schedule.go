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

type createScheduleRequest struct {
	Period   *int   `form:"period" json:"period" binding:"required"`
	Section  string `form:"section" json:"section" binding:"required"`
	Semester *int   `form:"semester" json:"semester" binding:"required"`
	Branch   string `form:"branch" json:"branch" binding:"required"`
	Subject  string `form:"subject" json:"subject" binding:"required"`
	Day      string `form:"day" json:"day" binding:"required"`
	FromTime string `form:"from_time" json:"from_time" binding:"required"`
	ToTime   string `form:"to_time" json:"to_time" binding:"required"`
}

type updateScheduleRequest struct {
	ObjectID    uint    `form:"object_id" json:"object_id" binding:"required"`
	NewPeriod   *int    `form:"new_period" json:"new_period"`
	NewSection  *string `form:"new_section" json:"new_section"`
	NewSemester *int    `form:"new_semester" json:"new_semester"`
	NewBranch   *string `form:"new_branch" json:"new_branch"`
	NewSubject  *string `form:"new_subject" json:"new_subject"`
	NewDay      *string `form:"new_day" json:"new_day"`
	NewFromTime *string `form:"new_from_time" json:"new_from_time"`
	NewToTime   *string `form:"new_to_time" json:"new_to_time"`
}

type getScheduleRequest struct {
	Day string `form:"day" json:"day" binding:"required"`
}

// handleCreateSchedule 为令牌归属的用户插入一条课表记录。
//
// POST /api/create/schedule
func (s *Server) handleCreateSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := bindBody(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Schedule not created",
			"Status":  "Failed",
			"Error":   err.Error(),
		})
		return
	}

	owner, ok := s.ownerOr404(c)
	if !ok {
		return
	}

	// 大小写规范化在 model.Schedule 的 BeforeSave 钩子里
	sched := model.Schedule{
		UserID:   owner.ID,
		Period:   *req.Period,
		Section:  req.Section,
		Semester: *req.Semester,
		Branch:   req.Branch,
		Subject:  req.Subject,
		Day:      req.Day,
		FromTime: req.FromTime,
		ToTime:   req.ToTime,
	}
	if err := s.tx(c).Create(&sched).Error; err != nil {
		s.logger.Error("create schedule failed",
			slog.Uint64("user_id", uint64(owner.ID)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Schedule not created",
			"Status":  "Failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"Message": "Schedule successfully created",
		"Status":  "Okay",
	})
}

// scheduleField 是部分更新里的一个待写字段。
type scheduleField struct {
	column string
	value  interface{}
}

// handleUpdateSchedule 对单条课表记录做字段级部分更新。
//
// PATCH /api/update/schedule
//
// 只有归属当前令牌用户的记录可以被改，不信任请求体里的记录 ID 归属。
// 各字段独立更新、独立汇报，不合并成一次原子写。
func (s *Server) handleUpdateSchedule(c *gin.Context) {
	var req updateScheduleRequest
	if err := bindBody(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Schedule not updated",
			"Status":  "Failed",
			"Error":   err.Error(),
		})
		return
	}

	owner, ok := s.ownerOr404(c)
	if !ok {
		return
	}

	tx := s.tx(c)
	var sched model.Schedule
	err := tx.First(&sched, req.ObjectID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("query schedule failed",
			slog.Uint64("schedule_id", uint64(req.ObjectID)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"Message": "Internal server error for database",
			"Status":  "Failed",
		})
		return
	}
	// 记录不存在和不归属当前用户对外不可区分，都按未找到处理
	if errors.Is(err, gorm.ErrRecordNotFound) || sched.UserID != owner.ID {
		c.JSON(http.StatusNotFound, gin.H{
			"Message": "Schedule not found",
			"Status":  "Not found",
		})
		return
	}

	fields := make([]scheduleField, 0, 8)
	if req.NewPeriod != nil {
		fields = append(fields, scheduleField{"period", *req.NewPeriod})
	}
	if req.NewSection != nil {
		fields = append(fields, scheduleField{"section", strings.ToUpper(*req.NewSection)})
	}
	if req.NewSemester != nil {
		fields = append(fields, scheduleField{"semester", *req.NewSemester})
	}
	if req.NewBranch != nil {
		fields = append(fields, scheduleField{"branch", strings.ToLower(*req.NewBranch)})
	}
	if req.NewSubject != nil {
		fields = append(fields, scheduleField{"subject", strings.ToLower(*req.NewSubject)})
	}
	if req.NewDay != nil {
		fields = append(fields, scheduleField{"day", strings.ToLower(*req.NewDay)})
	}
	if req.NewFromTime != nil {
		fields = append(fields, scheduleField{"from_time", *req.NewFromTime})
	}
	if req.NewToTime != nil {
		fields = append(fields, scheduleField{"to_time", *req.NewToTime})
	}

	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Nothing to update",
			"Status":  "Request rejected",
		})
		return
	}

	results := gin.H{}
	anyFailed := false
	for _, f := range fields {
		err := tx.Model(&model.Schedule{}).
			Where("id = ?", sched.ID).
			Update(f.column, f.value).Error
		if err != nil {
			anyFailed = true
			results[f.column] = "Schedule " + f.column + " not updated"
			s.logger.Error("update schedule field failed",
				slog.Uint64("schedule_id", uint64(sched.ID)),
				slog.String("field", f.column),
				slog.String("error", err.Error()),
			)
			continue
		}
		results[f.column] = "Schedule " + f.column + " successfully updated"
	}

	if anyFailed {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Schedule partially updated",
			"Status":  "Failed",
			"Data":    results,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"Message": "Schedule successfully updated",
		"Status":  "Okay",
		"Data":    results,
	})
}

// handleDeleteSchedule 删除令牌归属用户的全部课表记录。
//
// DELETE /api/delete/schedule（没有单条删除路径）
func (s *Server) handleDeleteSchedule(c *gin.Context) {
	owner, ok := s.ownerOr404(c)
	if !ok {
		return
	}

	if err := s.tx(c).Where("user_id = ?", owner.ID).Delete(&model.Schedule{}).Error; err != nil {
		s.logger.Error("delete schedules failed",
			slog.Uint64("user_id", uint64(owner.ID)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Schedule not deleted",
			"Status":  "Failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"Message": "All schedule successfully deleted",
		"Status":  "Okay",
	})
}

// handleGetSchedule 查询令牌归属用户某一天的全部课表记录。
//
// GET /api/get/schedule
//
// 没有记录时返回 404 和哨兵值 "Empty" 而不是空数组，这是历史接口契约，
// 客户端靠它区分“查到空”与“出错”。
func (s *Server) handleGetSchedule(c *gin.Context) {
	var req getScheduleRequest
	if err := bindBody(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Unsuccessfull",
			"Status":  "Request rejected",
			"Error":   err.Error(),
		})
		return
	}

	owner, ok := s.ownerOr404(c)
	if !ok {
		return
	}

	var items []model.Schedule
	err := s.tx(c).
		Where("user_id = ? AND day = ?", owner.ID, strings.ToLower(req.Day)).
		Find(&items).Error
	if err != nil {
		s.logger.Error("query schedules failed",
			slog.Uint64("user_id", uint64(owner.ID)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"Message": "Schedule not fetched",
			"Status":  "Failed",
		})
		return
	}

	if len(items) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"Message": "Schedule successfully fetched",
			"Data":    "Empty",
			"Status":  "Okay",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"Message": "Schedule successfully fetched",
		"Data":    items,
		"Status":  "Okay",
	})
}
