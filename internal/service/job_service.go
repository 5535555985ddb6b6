package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reportcard/internal/dto"
	"reportcard/internal/job"
	"reportcard/internal/model"
)

var (
	// ErrJobNotFound 任务不存在或记录已过期
	ErrJobNotFound = errors.New("任务不存在或已过期")
	// ErrJobsUnavailable 后台任务未启用或队列已满
	ErrJobsUnavailable = errors.New("后台任务暂不可用")
)

// summarizePayload summarize 任务参数
type summarizePayload struct {
	StudentID string `json:"student_id"`
	Term      int    `json:"term"`
	Year      int    `json:"year"`
}

// yearAveragesPayload year_averages 任务参数
type yearAveragesPayload struct {
	StudentID string `json:"student_id"`
	Year      int    `json:"year"`
	Term      *int   `json:"term,omitempty"`
}

// JobService 后台任务业务接口
type JobService interface {
	EnqueueSummarize(ctx context.Context, key model.TermKey) (*dto.JobResponse, error)
	EnqueueSummarizeAll(ctx context.Context) (*dto.JobResponse, error)
	EnqueueYearAverages(ctx context.Context, req *dto.AveragesRequest) (*dto.JobResponse, error)
	Get(ctx context.Context, id string) (*dto.JobResponse, error)
}

type jobService struct {
	dispatcher *job.Dispatcher
	logger     *zap.Logger
}

// NewJobService 创建 JobService 实例
func NewJobService(dispatcher *job.Dispatcher, logger *zap.Logger) JobService {
	return &jobService{dispatcher: dispatcher, logger: logger}
}

func (s *jobService) EnqueueSummarize(ctx context.Context, key model.TermKey) (*dto.JobResponse, error) {
	if !model.ValidTerm(key.Term) {
		return nil, ErrInvalidTerm
	}
	return s.enqueue(ctx, job.TypeSummarize, summarizePayload{StudentID: key.StudentID, Term: key.Term, Year: key.Year})
}

func (s *jobService) EnqueueSummarizeAll(ctx context.Context) (*dto.JobResponse, error) {
	return s.enqueue(ctx, job.TypeSummarizeAll, nil)
}

func (s *jobService) EnqueueYearAverages(ctx context.Context, req *dto.AveragesRequest) (*dto.JobResponse, error) {
	if req.Term != nil && !model.ValidTerm(*req.Term) {
		return nil, ErrInvalidTerm
	}
	return s.enqueue(ctx, job.TypeYearAverages, yearAveragesPayload{StudentID: req.StudentID, Year: req.Year, Term: req.Term})
}

func (s *jobService) Get(ctx context.Context, id string) (*dto.JobResponse, error) {
	rec, err := s.dispatcher.Get(ctx, id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		s.logger.Error("查询任务失败", zap.String("job_id", id), zap.Error(err))
		return nil, err
	}
	return toJobResponse(rec), nil
}

func (s *jobService) enqueue(ctx context.Context, typ job.Type, payload interface{}) (*dto.JobResponse, error) {
	rec, err := s.dispatcher.Enqueue(ctx, typ, payload)
	if err != nil {
		if errors.Is(err, job.ErrDisabled) || errors.Is(err, job.ErrQueueFull) {
			s.logger.Warn("任务未入队", zap.String("type", string(typ)), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrJobsUnavailable, err)
		}
		s.logger.Error("任务入队失败", zap.String("type", string(typ)), zap.Error(err))
		return nil, err
	}
	return toJobResponse(rec), nil
}

// ────────────────────── Executor ──────────────────────

// NewJobExecutor 将任务类型分派到 SummaryService
func NewJobExecutor(summary SummaryService) job.Executor {
	return job.ExecutorFunc(func(ctx context.Context, j *job.Job) (interface{}, error) {
		switch j.Type {
		case job.TypeSummarize:
			var p summarizePayload
			if err := j.DecodePayload(&p); err != nil {
				return nil, err
			}
			return summary.Summarize(ctx, model.TermKey{StudentID: p.StudentID, Term: p.Term, Year: p.Year})

		case job.TypeSummarizeAll:
			return summary.SummarizeAll(ctx)

		case job.TypeYearAverages:
			var p yearAveragesPayload
			if err := j.DecodePayload(&p); err != nil {
				return nil, err
			}
			return summary.SubjectAndOverallAverages(ctx, p.StudentID, p.Year, p.Term)
		}
		return nil, fmt.Errorf("%w: %s", job.ErrUnknownType, j.Type)
	})
}

func toJobResponse(rec *job.Record) *dto.JobResponse {
	resp := &dto.JobResponse{
		ID:         rec.ID,
		Type:       string(rec.Type),
		Status:     string(rec.Status),
		Result:     rec.Result,
		Error:      rec.Error,
		EnqueuedAt: rec.EnqueuedAt.Format(time.RFC3339),
	}
	if rec.StartedAt != nil {
		resp.StartedAt = rec.StartedAt.Format(time.RFC3339)
	}
	if rec.FinishedAt != nil {
		resp.FinishedAt = rec.FinishedAt.Format(time.RFC3339)
	}
	return resp
}
