package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"reportcard/internal/dto"
	"reportcard/internal/model"
	"reportcard/internal/repository"
	pkgerrors "reportcard/pkg/errors"
)

// ── 学生模块业务错误 ──

var (
	ErrStudentNotFound    = errors.New("学生不存在")
	ErrStudentEmailExists = errors.New("邮箱已被其他学生使用")
	ErrStudentDOBInvalid  = errors.New("出生日期无效")
)

// StudentService 学生业务接口
type StudentService interface {
	Create(ctx context.Context, req *dto.CreateStudentRequest, callerID string) (*dto.StudentResponse, error)
	GetByID(ctx context.Context, id string) (*dto.StudentResponse, error)
	List(ctx context.Context, req *dto.StudentListRequest) ([]dto.StudentResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateStudentRequest, callerID string) (*dto.StudentResponse, error)
	// Delete 删除学生，其成绩单、成绩与学期汇总一并删除
	Delete(ctx context.Context, id string) error
}

type studentService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewStudentService 创建 StudentService 实例
func NewStudentService(repo *repository.Repository, logger *zap.Logger) StudentService {
	return &studentService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *studentService) Create(ctx context.Context, req *dto.CreateStudentRequest, callerID string) (*dto.StudentResponse, error) {
	dob, err := model.ParseDateOfBirth(req.DateOfBirth)
	if err != nil {
		return nil, ErrStudentDOBInvalid
	}

	email := normalizeEmail(req.Email)
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	student := &model.Student{
		Name:        strings.TrimSpace(req.Name),
		Email:       email,
		DateOfBirth: dob,
	}
	student.SetCreator(callerID)

	if err := s.repo.Student.Create(ctx, student); err != nil {
		if errors.Is(err, pkgerrors.ErrConflict) {
			return nil, ErrStudentEmailExists
		}
		s.logger.Error("创建学生失败", zap.Error(err))
		return nil, err
	}

	return toStudentResponse(student), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *studentService) GetByID(ctx context.Context, id string) (*dto.StudentResponse, error) {
	student, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toStudentResponse(student), nil
}

// ────────────────────── List ──────────────────────

func (s *studentService) List(ctx context.Context, req *dto.StudentListRequest) ([]dto.StudentResponse, int64, error) {
	filters := &repository.StudentListFilters{Keyword: strings.TrimSpace(req.Keyword)}
	students, total, err := s.repo.Student.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出学生失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.StudentResponse, 0, len(students))
	for i := range students {
		result = append(result, *toStudentResponse(&students[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *studentService) Update(ctx context.Context, id string, req *dto.UpdateStudentRequest, callerID string) (*dto.StudentResponse, error) {
	student, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		student.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email != student.Email {
			if err := s.ensureEmailFree(ctx, email, student.StudentID); err != nil {
				return nil, err
			}
			student.Email = email
		}
	}
	if req.DateOfBirth != nil {
		dob, err := model.ParseDateOfBirth(*req.DateOfBirth)
		if err != nil {
			return nil, ErrStudentDOBInvalid
		}
		student.DateOfBirth = dob
	}
	student.SetUpdater(callerID)

	if err := s.repo.Student.Update(ctx, student); err != nil {
		if errors.Is(err, pkgerrors.ErrConflict) {
			return nil, ErrStudentEmailExists
		}
		s.logger.Error("更新学生失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toStudentResponse(student), nil
}

// ────────────────────── Delete ──────────────────────

func (s *studentService) Delete(ctx context.Context, id string) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Student.Delete(ctx, id); err != nil {
		s.logger.Error("删除学生失败", zap.String("id", id), zap.Error(err))
		return err
	}
	s.logger.Info("学生已删除", zap.String("id", id))
	return nil
}

// ── 内部方法 ──

func (s *studentService) get(ctx context.Context, id string) (*model.Student, error) {
	student, err := s.repo.Student.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return student, nil
}

// ensureEmailFree 邮箱未被 selfID 以外的学生占用
func (s *studentService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.repo.Student.GetByEmail(ctx, email)
	if err == nil && existing.StudentID != selfID {
		return ErrStudentEmailExists
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询学生邮箱失败", zap.Error(err))
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toStudentResponse(s *model.Student) *dto.StudentResponse {
	return &dto.StudentResponse{
		ID:          s.StudentID,
		Name:        s.Name,
		Email:       s.Email,
		DateOfBirth: s.DateOfBirth.Format(model.DateLayout),
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
	}
}
