package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"reportcard/internal/dto"
	"reportcard/internal/model"
	"reportcard/internal/repository"
	pkgerrors "reportcard/pkg/errors"
)

// ── 科目模块业务错误 ──

var (
	ErrSubjectNotFound   = errors.New("科目不存在")
	ErrSubjectCodeExists = errors.New("科目代码已存在")
)

// SubjectService 科目业务接口
type SubjectService interface {
	Create(ctx context.Context, req *dto.CreateSubjectRequest, callerID string) (*dto.SubjectResponse, error)
	GetByID(ctx context.Context, id string) (*dto.SubjectResponse, error)
	List(ctx context.Context, req *dto.SubjectListRequest) ([]dto.SubjectResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateSubjectRequest, callerID string) (*dto.SubjectResponse, error)
	// Delete 删除科目及其全部成绩，并重算受影响的学期汇总
	Delete(ctx context.Context, id string) error
}

type subjectService struct {
	repo       *repository.Repository
	summarizer Summarizer
	logger     *zap.Logger
}

// NewSubjectService 创建 SubjectService 实例
func NewSubjectService(repo *repository.Repository, summarizer Summarizer, logger *zap.Logger) SubjectService {
	return &subjectService{repo: repo, summarizer: summarizer, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *subjectService) Create(ctx context.Context, req *dto.CreateSubjectRequest, callerID string) (*dto.SubjectResponse, error) {
	code := normalizeCode(req.Code)
	if err := s.ensureCodeFree(ctx, code, ""); err != nil {
		return nil, err
	}

	subject := &model.Subject{
		Name: strings.TrimSpace(req.Name),
		Code: code,
	}
	subject.SetCreator(callerID)

	if err := s.repo.Subject.Create(ctx, subject); err != nil {
		if errors.Is(err, pkgerrors.ErrConflict) {
			return nil, ErrSubjectCodeExists
		}
		s.logger.Error("创建科目失败", zap.Error(err))
		return nil, err
	}

	return toSubjectResponse(subject), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *subjectService) GetByID(ctx context.Context, id string) (*dto.SubjectResponse, error) {
	subject, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSubjectResponse(subject), nil
}

// ────────────────────── List ──────────────────────

func (s *subjectService) List(ctx context.Context, req *dto.SubjectListRequest) ([]dto.SubjectResponse, int64, error) {
	subjects, total, err := s.repo.Subject.List(ctx, strings.TrimSpace(req.Keyword), req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出科目失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.SubjectResponse, 0, len(subjects))
	for i := range subjects {
		result = append(result, *toSubjectResponse(&subjects[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *subjectService) Update(ctx context.Context, id string, req *dto.UpdateSubjectRequest, callerID string) (*dto.SubjectResponse, error) {
	subject, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		subject.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		code := normalizeCode(*req.Code)
		if code != subject.Code {
			if err := s.ensureCodeFree(ctx, code, subject.SubjectID); err != nil {
				return nil, err
			}
			subject.Code = code
		}
	}
	subject.SetUpdater(callerID)

	if err := s.repo.Subject.Update(ctx, subject); err != nil {
		if errors.Is(err, pkgerrors.ErrConflict) {
			return nil, ErrSubjectCodeExists
		}
		s.logger.Error("更新科目失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toSubjectResponse(subject), nil
}

// ────────────────────── Delete ──────────────────────

func (s *subjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}

	// 删除前记下受影响的键，成绩随科目级联删除后再逐一重算
	keys, err := s.repo.ReportCard.ListKeysBySubject(ctx, id)
	if err != nil {
		s.logger.Error("查询科目关联成绩单失败", zap.String("id", id), zap.Error(err))
		return err
	}

	if err := s.repo.Subject.Delete(ctx, id); err != nil {
		s.logger.Error("删除科目失败", zap.String("id", id), zap.Error(err))
		return err
	}

	for _, key := range keys {
		if _, err := s.summarizer.Summarize(ctx, key); err != nil {
			s.logger.Warn("科目删除后重算汇总失败", zap.String("key", key.String()), zap.Error(err))
		}
	}

	s.logger.Info("科目已删除", zap.String("id", id), zap.Int("affected_keys", len(keys)))
	return nil
}

// ── 内部方法 ──

func (s *subjectService) get(ctx context.Context, id string) (*model.Subject, error) {
	subject, err := s.repo.Subject.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubjectNotFound
		}
		s.logger.Error("查询科目失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return subject, nil
}

func (s *subjectService) ensureCodeFree(ctx context.Context, code, selfID string) error {
	existing, err := s.repo.Subject.GetByCode(ctx, code)
	if err == nil && existing.SubjectID != selfID {
		return ErrSubjectCodeExists
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询科目代码失败", zap.Error(err))
		return err
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func toSubjectResponse(s *model.Subject) *dto.SubjectResponse {
	return &dto.SubjectResponse{
		ID:   s.SubjectID,
		Name: s.Name,
		Code: s.Code,
	}
}
