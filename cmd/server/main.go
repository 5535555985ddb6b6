package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"reportcard/config"
	"reportcard/internal/api/handler"
	"reportcard/internal/api/router"
	"reportcard/internal/api/validator"
	"reportcard/internal/job"
	"reportcard/internal/repository"
	"reportcard/internal/service"
	"reportcard/pkg/database"
	"reportcard/pkg/jwt"
	applogger "reportcard/pkg/logger"
	"reportcard/pkg/redis"
)

func main() {
	// 分数以 JSON 数字输出
	decimal.MarshalJSONWithoutQuotes = true

	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("REPORT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单与登录限流不可用，任务队列改用进程内队列", zap.Error(err))
		rdb = nil
	}

	// 5. 任务队列：Redis 可用时多实例共享，否则使用进程内队列
	var broker job.Broker
	deps := router.Deps{JWT: jwt.NewManager(&cfg.Auth)}
	var blacklist service.TokenBlacklist
	if rdb != nil {
		broker = job.NewRedisBroker(rdb, cfg.Job.ResultTTL)
		deps.Blacklist = rdb
		deps.Limiter = rdb
		blacklist = rdb
	} else {
		broker = job.NewMemoryBroker(0, cfg.Job.ResultTTL)
	}
	dispatcher := job.NewDispatcher(broker, logger)
	if !cfg.Job.Enabled && rdb == nil {
		// 进程内队列只有本进程的 worker 消费
		logger.Warn("后台任务未启用且无 Redis，任务接口将返回 503")
		dispatcher.Disable()
	}

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, deps.JWT, blacklist, dispatcher, logger)
	h := handler.NewHandler(svc)

	// 7. 注册校验规则并初始化路由
	if err := validator.Setup(); err != nil {
		logger.Fatal("注册校验规则失败", zap.Error(err))
	}
	gin.SetMode(gin.ReleaseMode)
	engine := router.Setup(cfg, h, deps, logger)

	// 8. 后台任务：worker 池与定时全量汇总
	jobCtx, stopJobs := context.WithCancel(context.Background())
	var jobWG sync.WaitGroup
	if cfg.Job.Enabled {
		pool := job.NewPool(broker, service.NewJobExecutor(svc.Summary), cfg.Job.Workers, cfg.Job.QueueTimeout, logger)
		jobWG.Add(1)
		go func() {
			defer jobWG.Done()
			pool.Run(jobCtx)
		}()
	}

	var scheduler *job.Scheduler
	if cfg.Job.Cron != "" && dispatcher.Enabled() {
		scheduler = job.NewScheduler(logger)
		if err := scheduler.EnqueueEvery(cfg.Job.Cron, dispatcher, job.TypeSummarizeAll, nil); err != nil {
			logger.Fatal("注册定时汇总失败", zap.Error(err))
		}
		scheduler.Start()
	}

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 先停止投递，再等待 worker 处理完手头任务
	if scheduler != nil {
		scheduler.Stop(ctx)
	}
	stopJobs()
	jobWG.Wait()

	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
