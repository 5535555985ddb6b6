package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reportcard/config"
	"reportcard/internal/api/handler"
	"reportcard/internal/api/middleware"
	"reportcard/internal/model"
	"reportcard/pkg/jwt"
)

// Deps 路由依赖的外部组件
// Blacklist / Limiter 在 Redis 不可用时为 nil，对应功能降级放行
type Deps struct {
	JWT       *jwt.Manager
	Blacklist middleware.Blacklist
	Limiter   middleware.RateLimiter
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, deps Deps, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	adminOnly := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(deps.Limiter, cfg.Auth.LoginRateLimit, time.Minute), h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(deps.JWT, deps.Blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 学生模块
			students := authorized.Group("/students")
			{
				students.GET("", h.Student.ListStudents)
				students.GET("/:id", h.Student.GetStudent)
				students.POST("", h.Student.CreateStudent)
				students.PUT("/:id", h.Student.UpdateStudent)
				students.DELETE("/:id", adminOnly, h.Student.DeleteStudent)
			}

			// 科目模块
			subjects := authorized.Group("/subjects")
			{
				subjects.GET("", h.Subject.ListSubjects)
				subjects.GET("/:id", h.Subject.GetSubject)
				subjects.POST("", adminOnly, h.Subject.CreateSubject)
				subjects.PUT("/:id", adminOnly, h.Subject.UpdateSubject)
				subjects.DELETE("/:id", adminOnly, h.Subject.DeleteSubject)
			}

			// 成绩单模块
			reportCards := authorized.Group("/report-cards")
			{
				reportCards.GET("", h.ReportCard.ListReportCards)
				reportCards.POST("", h.ReportCard.CreateReportCard)
				reportCards.GET("/student/:student_id/year/:year", h.ReportCard.GetStudentYear)
				reportCards.GET("/:id", h.ReportCard.GetReportCard)
				reportCards.PATCH("/:id/marks", h.ReportCard.UpdateMarks)
				reportCards.DELETE("/:id/marks/:subject_id", h.ReportCard.DeleteMark)
				reportCards.DELETE("/:id", adminOnly, h.ReportCard.DeleteReportCard)
			}

			// 学期汇总模块
			summaries := authorized.Group("/summaries")
			{
				summaries.GET("", h.Summary.ListSummaries)
				summaries.GET("/student/:student_id/term/:term/year/:year", h.Summary.GetSummary)
				summaries.POST("/recalculate", h.Summary.Recalculate)
				summaries.POST("/recalculate/jobs", h.Summary.EnqueueRecalculate)
				summaries.POST("/recalculate-all", adminOnly, h.Summary.RecalculateAll)
				summaries.GET("/averages", h.Summary.GetAverages)
				summaries.POST("/averages/jobs", h.Summary.EnqueueAverages)
			}

			// 后台任务
			authorized.GET("/jobs/:id", h.Job.GetJob)

			// 导出模块
			export := authorized.Group("/export")
			{
				export.GET("/summaries", h.Export.ExportSummaries)
			}
		}
	}

	return r
}
