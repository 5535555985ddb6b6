package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"reportcard/internal/dto"
	"reportcard/internal/grading"
	"reportcard/internal/model"
	"reportcard/internal/repository"
	pkgerrors "reportcard/pkg/errors"
)

// ── 学期汇总模块业务错误 ──

var (
	ErrSummaryNotFound = errors.New("学期汇总不存在")
	ErrInvalidTerm     = errors.New("学期必须为 1、2 或 3")
)

// 批量汇总结果中最多保留的错误明细条数
const maxBatchErrors = 20

// Summarizer 对单个 (学生, 学期, 年份) 重新计算并覆盖写入学期汇总
type Summarizer interface {
	Summarize(ctx context.Context, key model.TermKey) (*dto.RecalculateResponse, error)
}

// SummaryService 学期汇总业务接口
type SummaryService interface {
	Summarizer
	// SummarizeAll 对所有存在成绩单的业务键逐一汇总；单键失败只计数不中断
	SummarizeAll(ctx context.Context) (*dto.BatchResult, error)
	// SubjectAndOverallAverages 学生某年的分科均分与总体均分，term 非 nil 时只统计该学期
	SubjectAndOverallAverages(ctx context.Context, studentID string, year int, term *int) (*dto.AveragesResponse, error)
	Get(ctx context.Context, key model.TermKey) (*dto.SummaryResponse, error)
	List(ctx context.Context, req *dto.SummaryListRequest) ([]dto.SummaryResponse, int64, error)
}

type summaryService struct {
	repo        *repository.Repository
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

// NewSummaryService 创建 SummaryService 实例
// concurrency 为 SummarizeAll 的并发度
func NewSummaryService(repo *repository.Repository, concurrency int, logger *zap.Logger) SummaryService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &summaryService{
		repo:        repo,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger,
	}
}

// ────────────────────── Summarize ──────────────────────

func (s *summaryService) Summarize(ctx context.Context, key model.TermKey) (*dto.RecalculateResponse, error) {
	if !model.ValidTerm(key.Term) {
		return nil, ErrInvalidTerm
	}

	if _, err := s.repo.Student.GetByID(ctx, key.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.String("key", key.String()), zap.Error(err))
		return nil, err
	}

	// 同一键并发写入时唯一约束或锁冲突返回 ErrConflict，重试一次
	var (
		summary *model.StudentTermSummary
		created bool
		err     error
	)
	for attempt := 1; attempt <= 2; attempt++ {
		summary, created, err = s.summarizeOnce(ctx, key)
		if err == nil || !errors.Is(err, pkgerrors.ErrConflict) {
			break
		}
		s.logger.Warn("汇总写入冲突", zap.String("key", key.String()), zap.Int("attempt", attempt), zap.Error(err))
	}
	if err != nil {
		if errors.Is(err, pkgerrors.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrTransientStorage, err)
		}
		if !errors.Is(err, ErrReportCardNotFound) {
			s.logger.Error("学期汇总失败", zap.String("key", key.String()), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Debug("学期汇总完成",
		zap.String("key", key.String()),
		zap.Bool("created", created),
		zap.String("average", summary.AverageScore.StringFixed(grading.Scale)),
		zap.String("grade", summary.Grade),
	)

	return &dto.RecalculateResponse{Summary: toSummaryResponse(summary), Created: created}, nil
}

// summarizeOnce 在单个事务内：锁定成绩单 → 读取成绩 → 计算 → 覆盖写入汇总
func (s *summaryService) summarizeOnce(ctx context.Context, key model.TermKey) (*model.StudentTermSummary, bool, error) {
	var (
		summary *model.StudentTermSummary
		created bool
	)
	err := s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		n, err := tx.ReportCard.LockByKey(ctx, key)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrReportCardNotFound
		}

		marks, err := tx.Mark.ListByKey(ctx, key)
		if err != nil {
			return err
		}
		scores := make([]decimal.Decimal, 0, len(marks))
		for _, m := range marks {
			scores = append(scores, m.Score)
		}
		res := grading.Summarize(scores)

		summary = &model.StudentTermSummary{
			StudentID:      key.StudentID,
			Term:           key.Term,
			Year:           key.Year,
			TotalScore:     res.Total,
			AverageScore:   res.Average,
			Grade:          res.Grade,
			CalculatedDate: s.now(),
		}
		created, err = tx.Summary.Upsert(ctx, summary)
		return err
	})
	return summary, created, err
}

// ────────────────────── SummarizeAll ──────────────────────

func (s *summaryService) SummarizeAll(ctx context.Context) (*dto.BatchResult, error) {
	keys, err := s.repo.ReportCard.ListKeys(ctx)
	if err != nil {
		s.logger.Error("列出成绩单键失败", zap.Error(err))
		return nil, err
	}

	start := time.Now()
	result := &dto.BatchResult{Total: len(keys)}
	var mu sync.Mutex
	record := func(key model.TermKey, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			result.Succeeded++
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// 批次被取消：未开始或执行中被中断的键
			result.Canceled++
		case errors.Is(err, ErrStudentNotFound), errors.Is(err, ErrReportCardNotFound):
			// 列出键之后被删除
			result.Skipped++
		default:
			result.Failed++
			if len(result.Errors) < maxBatchErrors {
				result.Errors = append(result.Errors, key.String()+": "+err.Error())
			}
		}
	}

	// 单键失败不取消其他键，因此不使用 errgroup.WithContext
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, key := range keys {
		key := key
		if err := ctx.Err(); err != nil {
			record(key, err)
			continue
		}
		g.Go(func() error {
			_, err := s.Summarize(ctx, key)
			record(key, err)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("全量学期汇总完成",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("canceled", result.Canceled),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// ────────────────────── Averages ──────────────────────

func (s *summaryService) SubjectAndOverallAverages(ctx context.Context, studentID string, year int, term *int) (*dto.AveragesResponse, error) {
	if term != nil && !model.ValidTerm(*term) {
		return nil, ErrInvalidTerm
	}
	if _, err := s.repo.Student.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	marks, err := s.repo.Mark.ListByStudentYear(ctx, studentID, year, term)
	if err != nil {
		s.logger.Error("查询年度成绩失败", zap.String("student_id", studentID), zap.Int("year", year), zap.Error(err))
		return nil, err
	}

	return s.averagesFromMarks(ctx, marks)
}

// averagesFromMarks 由成绩列表计算分科与总体均分，并补全科目名称
func (s *summaryService) averagesFromMarks(ctx context.Context, marks []model.Mark) (*dto.AveragesResponse, error) {
	scores := make([]grading.Score, 0, len(marks))
	for _, m := range marks {
		scores = append(scores, grading.Score{SubjectID: m.SubjectID, Value: m.Score})
	}
	avg := grading.ComputeAverages(scores)

	ids := make([]string, 0, len(avg.PerSubject))
	for _, sa := range avg.PerSubject {
		ids = append(ids, sa.SubjectID)
	}
	subjects, err := s.repo.Subject.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询科目失败", zap.Error(err))
		return nil, err
	}
	names := make(map[string]string, len(subjects))
	for _, sub := range subjects {
		names[sub.SubjectID] = sub.Name
	}

	return toAveragesResponse(avg, names), nil
}

// ────────────────────── Get / List ──────────────────────

func (s *summaryService) Get(ctx context.Context, key model.TermKey) (*dto.SummaryResponse, error) {
	summary, err := s.repo.Summary.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSummaryNotFound
		}
		s.logger.Error("查询学期汇总失败", zap.String("key", key.String()), zap.Error(err))
		return nil, err
	}
	resp := toSummaryResponse(summary)
	return &resp, nil
}

func (s *summaryService) List(ctx context.Context, req *dto.SummaryListRequest) ([]dto.SummaryResponse, int64, error) {
	filters := &repository.SummaryListFilters{
		StudentID: req.StudentID,
		Term:      req.Term,
		Year:      req.Year,
		Grade:     req.Grade,
	}
	summaries, total, err := s.repo.Summary.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出学期汇总失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.SummaryResponse, 0, len(summaries))
	for i := range summaries {
		result = append(result, toSummaryResponse(&summaries[i]))
	}
	return result, total, nil
}

// ── 转换 ──

func toSummaryResponse(s *model.StudentTermSummary) dto.SummaryResponse {
	return dto.SummaryResponse{
		ID:             s.SummaryID,
		StudentID:      s.StudentID,
		Term:           s.Term,
		Year:           s.Year,
		TotalScore:     s.TotalScore,
		AverageScore:   s.AverageScore,
		Grade:          s.Grade,
		CalculatedDate: s.CalculatedDate.Format(time.RFC3339),
	}
}

func toAveragesResponse(avg grading.Averages, names map[string]string) *dto.AveragesResponse {
	per := make([]dto.SubjectAverageResponse, 0, len(avg.PerSubject))
	for _, sa := range avg.PerSubject {
		per = append(per, dto.SubjectAverageResponse{
			SubjectID:    sa.SubjectID,
			SubjectName:  names[sa.SubjectID],
			Count:        sa.Count,
			AverageScore: sa.Average,
		})
	}
	return &dto.AveragesResponse{PerSubject: per, OverallAverage: avg.Overall}
}
