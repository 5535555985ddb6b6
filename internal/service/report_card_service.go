package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"reportcard/internal/dto"
	"reportcard/internal/grading"
	"reportcard/internal/model"
	"reportcard/internal/repository"
	pkgerrors "reportcard/pkg/errors"
)

// ── 成绩单模块业务错误 ──

var (
	ErrReportCardNotFound = errors.New("成绩单不存在")
	ErrReportCardExists   = errors.New("该学生本学期成绩单已存在")
	ErrMarkNotFound       = errors.New("成绩不存在")
	ErrInvalidScore       = errors.New("分数必须在 0 到 100 之间且至多两位小数")
	ErrDuplicateSubject   = errors.New("同一成绩单中科目不能重复")
)

// ReportCardService 成绩单业务接口
type ReportCardService interface {
	Create(ctx context.Context, req *dto.CreateReportCardRequest, callerID string) (*dto.ReportCardResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ReportCardResponse, error)
	List(ctx context.Context, req *dto.ReportCardListRequest) ([]dto.ReportCardResponse, int64, error)
	// UpdateMarks 按科目新增或覆盖成绩
	UpdateMarks(ctx context.Context, id string, req *dto.UpdateMarksRequest, callerID string) (*dto.ReportCardResponse, error)
	DeleteMark(ctx context.Context, id, subjectID string) error
	// Delete 删除成绩单及其成绩，同时删除对应的学期汇总
	Delete(ctx context.Context, id string) error
	// StudentYear 学生某年的全部成绩单及分科 / 总体均分
	StudentYear(ctx context.Context, studentID string, year int) (*dto.StudentYearReportResponse, error)
}

type reportCardService struct {
	repo                  *repository.Repository
	summarizer            Summarizer
	summarizeOnMarkChange bool
	logger                *zap.Logger
}

// NewReportCardService 创建 ReportCardService 实例
// summarizeOnMarkChange 为 true 时，成绩变更后立即重算该键的学期汇总
func NewReportCardService(repo *repository.Repository, summarizer Summarizer, summarizeOnMarkChange bool, logger *zap.Logger) ReportCardService {
	return &reportCardService{
		repo:                  repo,
		summarizer:            summarizer,
		summarizeOnMarkChange: summarizeOnMarkChange,
		logger:                logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *reportCardService) Create(ctx context.Context, req *dto.CreateReportCardRequest, callerID string) (*dto.ReportCardResponse, error) {
	if !model.ValidTerm(req.Term) {
		return nil, ErrInvalidTerm
	}
	if _, err := s.repo.Student.GetByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.String("student_id", req.StudentID), zap.Error(err))
		return nil, err
	}
	if err := s.validateMarks(ctx, req.Marks); err != nil {
		return nil, err
	}

	key := model.TermKey{StudentID: req.StudentID, Term: req.Term, Year: req.Year}
	if _, err := s.repo.ReportCard.GetByKey(ctx, key); err == nil {
		return nil, ErrReportCardExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询成绩单失败", zap.String("key", key.String()), zap.Error(err))
		return nil, err
	}

	card := &model.ReportCard{
		StudentID: req.StudentID,
		Term:      req.Term,
		Year:      req.Year,
		Marks:     toMarks("", req.Marks),
	}
	card.SetCreator(callerID)

	if err := s.repo.ReportCard.Create(ctx, card); err != nil {
		if errors.Is(err, pkgerrors.ErrConflict) {
			return nil, ErrReportCardExists
		}
		s.logger.Error("创建成绩单失败", zap.String("key", key.String()), zap.Error(err))
		return nil, err
	}

	s.logger.Info("成绩单已创建",
		zap.String("id", card.ReportCardID),
		zap.String("key", key.String()),
		zap.Int("marks", len(card.Marks)),
	)
	s.afterMarksChanged(ctx, key)

	return s.GetByID(ctx, card.ReportCardID)
}

// ────────────────────── GetByID ──────────────────────

func (s *reportCardService) GetByID(ctx context.Context, id string) (*dto.ReportCardResponse, error) {
	card, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toReportCardResponse(card), nil
}

// ────────────────────── List ──────────────────────

func (s *reportCardService) List(ctx context.Context, req *dto.ReportCardListRequest) ([]dto.ReportCardResponse, int64, error) {
	filters := &repository.ReportCardListFilters{
		StudentID: req.StudentID,
		Term:      req.Term,
		Year:      req.Year,
	}
	cards, total, err := s.repo.ReportCard.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出成绩单失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ReportCardResponse, 0, len(cards))
	for i := range cards {
		result = append(result, *toReportCardResponse(&cards[i]))
	}
	return result, total, nil
}

// ────────────────────── UpdateMarks ──────────────────────

func (s *reportCardService) UpdateMarks(ctx context.Context, id string, req *dto.UpdateMarksRequest, callerID string) (*dto.ReportCardResponse, error) {
	card, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateMarks(ctx, req.Marks); err != nil {
		return nil, err
	}

	err = s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Mark.Upsert(ctx, toMarks(card.ReportCardID, req.Marks)); err != nil {
			return err
		}
		card.SetUpdater(callerID)
		card.UpdatedAt = time.Now()
		return tx.ReportCard.Touch(ctx, card)
	})
	if err != nil {
		s.logger.Error("更新成绩失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.afterMarksChanged(ctx, card.Key())
	return s.GetByID(ctx, id)
}

// ────────────────────── DeleteMark ──────────────────────

func (s *reportCardService) DeleteMark(ctx context.Context, id, subjectID string) error {
	card, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	n, err := s.repo.Mark.DeleteByReportCardAndSubject(ctx, card.ReportCardID, subjectID)
	if err != nil {
		s.logger.Error("删除成绩失败", zap.String("id", id), zap.String("subject_id", subjectID), zap.Error(err))
		return err
	}
	if n == 0 {
		return ErrMarkNotFound
	}

	s.afterMarksChanged(ctx, card.Key())
	return nil
}

// ────────────────────── Delete ──────────────────────

func (s *reportCardService) Delete(ctx context.Context, id string) error {
	card, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		if err := tx.ReportCard.Delete(ctx, card.ReportCardID); err != nil {
			return err
		}
		_, err := tx.Summary.DeleteByKey(ctx, card.Key())
		return err
	})
	if err != nil {
		s.logger.Error("删除成绩单失败", zap.String("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("成绩单已删除", zap.String("id", id), zap.String("key", card.Key().String()))
	return nil
}

// ────────────────────── StudentYear ──────────────────────

func (s *reportCardService) StudentYear(ctx context.Context, studentID string, year int) (*dto.StudentYearReportResponse, error) {
	if _, err := s.repo.Student.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	cards, err := s.repo.ReportCard.ListByStudentYear(ctx, studentID, year, nil)
	if err != nil {
		s.logger.Error("查询学生年度成绩单失败", zap.String("student_id", studentID), zap.Int("year", year), zap.Error(err))
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrReportCardNotFound
	}

	var scores []grading.Score
	names := make(map[string]string)
	resp := &dto.StudentYearReportResponse{
		StudentID:   studentID,
		Year:        year,
		ReportCards: make([]dto.ReportCardResponse, 0, len(cards)),
	}
	for i := range cards {
		for _, m := range cards[i].Marks {
			scores = append(scores, grading.Score{SubjectID: m.SubjectID, Value: m.Score})
			if m.Subject != nil {
				names[m.SubjectID] = m.Subject.Name
			}
		}
		resp.ReportCards = append(resp.ReportCards, *toReportCardResponse(&cards[i]))
	}
	resp.Summary = *toAveragesResponse(grading.ComputeAverages(scores), names)

	return resp, nil
}

// ── 内部方法 ──

func (s *reportCardService) get(ctx context.Context, id string) (*model.ReportCard, error) {
	card, err := s.repo.ReportCard.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportCardNotFound
		}
		s.logger.Error("查询成绩单失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return card, nil
}

// validateMarks 校验分数精度、科目不重复且科目存在
func (s *reportCardService) validateMarks(ctx context.Context, marks []dto.MarkInput) error {
	if len(marks) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(marks))
	ids := make([]string, 0, len(marks))
	for _, m := range marks {
		if m.Score == nil || !grading.ValidScore(*m.Score) {
			return ErrInvalidScore
		}
		if _, dup := seen[m.SubjectID]; dup {
			return ErrDuplicateSubject
		}
		seen[m.SubjectID] = struct{}{}
		ids = append(ids, m.SubjectID)
	}

	subjects, err := s.repo.Subject.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询科目失败", zap.Error(err))
		return err
	}
	if len(subjects) != len(ids) {
		return ErrSubjectNotFound
	}
	return nil
}

// afterMarksChanged 成绩变更后显式重算汇总；失败只记录日志，可由全量汇总补偿
func (s *reportCardService) afterMarksChanged(ctx context.Context, key model.TermKey) {
	if !s.summarizeOnMarkChange {
		return
	}
	if _, err := s.summarizer.Summarize(ctx, key); err != nil {
		s.logger.Warn("成绩变更后重算汇总失败", zap.String("key", key.String()), zap.Error(err))
	}
}

func toMarks(reportCardID string, inputs []dto.MarkInput) []model.Mark {
	marks := make([]model.Mark, 0, len(inputs))
	for _, in := range inputs {
		marks = append(marks, model.Mark{
			ReportCardID: reportCardID,
			SubjectID:    in.SubjectID,
			Score:        in.Score.Round(grading.Scale),
		})
	}
	return marks
}

func toReportCardResponse(c *model.ReportCard) *dto.ReportCardResponse {
	resp := &dto.ReportCardResponse{
		ID:        c.ReportCardID,
		StudentID: c.StudentID,
		Term:      c.Term,
		Year:      c.Year,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
	if c.Student != nil {
		resp.StudentName = c.Student.Name
	}
	for _, m := range c.Marks {
		mr := dto.MarkResponse{
			ID:        m.MarkID,
			SubjectID: m.SubjectID,
			Score:     m.Score,
		}
		if m.Subject != nil {
			mr.SubjectName = m.Subject.Name
			mr.SubjectCode = m.Subject.Code
		}
		resp.Marks = append(resp.Marks, mr)
	}
	return resp
}
