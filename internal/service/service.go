package service

import (
	"go.uber.org/zap"

	"reportcard/config"
	"reportcard/internal/job"
	"reportcard/internal/repository"
	"reportcard/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	Student    StudentService
	Subject    SubjectService
	ReportCard ReportCardService
	Summary    SummaryService
	Job        JobService
	Export     ExportService
}

// NewService 创建 Service 聚合
// blacklist 在 Redis 不可用时传 nil
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	dispatcher *job.Dispatcher,
	logger *zap.Logger,
) *Service {
	summary := NewSummaryService(repo, cfg.Job.BatchConcurrency, logger)
	return &Service{
		Auth:       NewAuthService(repo, jwtMgr, blacklist, logger),
		Student:    NewStudentService(repo, logger),
		Subject:    NewSubjectService(repo, summary, logger),
		ReportCard: NewReportCardService(repo, summary, cfg.Feature.SummarizeOnMarkChange, logger),
		Summary:    summary,
		Job:        NewJobService(dispatcher, logger),
		Export:     NewExportService(repo, logger),
	}
}
