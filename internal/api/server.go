package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"schedulr/internal/api/middleware"
	"schedulr/internal/config"
	"schedulr/internal/model"
	"schedulr/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接池、Redis 客户端（登录限流用）以及 Gin 路由引擎。
// 连接池进程级常驻，每个请求只圈定一个逻辑事务（见 middleware.UnitOfWork）。
type Server struct {
	cfg          *config.Config
	logger       *slog.Logger
	db           *gorm.DB
	rdb          *redis.Client
	router       *gin.Engine
	loginLimiter *ratelimit.Limiter
	secret       []byte
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis（失败只告警，限流器 fail-open）
// 3. 初始化 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
		TranslateError: true,                                          // 统一成 gorm.ErrDuplicatedKey 等哨兵错误
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Schedule{}, &model.UserInfo{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// 限流是防护层不是登录路径的单点，Redis 不可用时继续启动
		logger.Warn("redis unavailable, login rate limiting disabled", slog.String("error", err.Error()))
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		rdb:          rdb,
		router:       r,
		loginLimiter: ratelimit.NewLimiter(rdb, logger, "schedulr:ratelimit:login:", cfg.App.LoginRateLimit, cfg.App.LoginRateBurst),
		secret:       []byte(cfg.Security.JWTSecret),
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/healthz", s.handleHealthz)

	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// /api 下的所有请求共享一个请求级事务
	api := s.router.Group("/api")
	api.Use(middleware.UnitOfWork(s.db, s.logger))

	api.POST("/create/user", s.handleCreateUser)
	api.POST("/verify/user", s.handleVerifyUser)

	authed := api.Group("")
	authed.Use(middleware.BodyAuth(s.cfg.Security.JWTSecret, s.logger))
	authed.DELETE("/delete/user", s.handleDeleteUser)
	authed.POST("/create/schedule", s.handleCreateSchedule)
	authed.PATCH("/update/schedule", s.handleUpdateSchedule)
	authed.DELETE("/delete/schedule", s.handleDeleteSchedule)
	authed.GET("/get/schedule", s.handleGetSchedule)
	authed.PATCH("/update/info", s.handleUpdateInfo)
	authed.GET("/get/info", s.handleGetInfo)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"Message": "Server Started",
		"Status":  "Okay",
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	redisStatus := "ok"
	if s.rdb == nil || s.rdb.Ping(ctx).Err() != nil {
		redisStatus = "down" // 限流 fail-open，不影响整体健康
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": redisStatus})
}

// tx 返回当前请求的事务句柄。
func (s *Server) tx(c *gin.Context) *gorm.DB {
	return middleware.Tx(c, s.db)
}

// authIdentity 返回 Auth Guard 注入的已验证身份。
func authIdentity(c *gin.Context) (username, email string) {
	return c.GetString(middleware.CtxUsername), c.GetString(middleware.CtxEmail)
}

// ownerOr404 按令牌身份解析归属用户，找不到时写出 404 并返回 false。
//
// 受保护的 handler 一律以它解析 owner，绝不信任请求体里的用户标识。
func (s *Server) ownerOr404(c *gin.Context) (*model.User, bool) {
	username, email := authIdentity(c)
	var user model.User
	err := s.tx(c).Where("username = ? AND email = ?", username, email).First(&user).Error
	if err == nil {
		return &user, true
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"Message": "User not found",
			"Status":  "Failed",
		})
		return nil, false
	}
	s.logger.Error("resolve user failed",
		slog.String("username", username),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"Message": "Internal server error for database",
		"Status":  "Failed",
	})
	return nil, false
}

const maxBindBytes = 1 << 20

// bindBody 把请求体解析到 out，兼容 JSON 与表单两种编码。
//
// 历史客户端在 GET/DELETE 请求里也携带表单体，而标准库的 ParseForm
// 不会为这些方法读 body，所以这里手工缓存后解析，解析完恢复请求体。
func bindBody(c *gin.Context, out interface{}) error {
	var data []byte
	if c.Request.Body != nil {
		var err error
		data, err = io.ReadAll(io.LimitReader(c.Request.Body, maxBindBytes))
		if err != nil {
			return err
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(data))
	}

	if len(data) > 0 {
		if strings.Contains(c.ContentType(), "json") || data[0] == '{' {
			if err := json.Unmarshal(data, out); err != nil {
				return err
			}
		} else {
			values, err := url.ParseQuery(string(data))
			if err != nil {
				return err
			}
			if err := binding.MapFormWithTag(out, values, "form"); err != nil {
				return err
			}
		}
	}

	return binding.Validator.ValidateStruct(out)
}
