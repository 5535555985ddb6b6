package repository

import (
	"context"

	"gorm.io/gorm"

	"reportcard/internal/model"
)

// SubjectRepository 科目数据访问接口
type SubjectRepository interface {
	Create(ctx context.Context, subject *model.Subject) error
	GetByID(ctx context.Context, id string) (*model.Subject, error)
	GetByCode(ctx context.Context, code string) (*model.Subject, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Subject, error)
	List(ctx context.Context, keyword string, offset, limit int) ([]model.Subject, int64, error)
	Update(ctx context.Context, subject *model.Subject) error
	Delete(ctx context.Context, id string) error
}

type subjectRepo struct {
	db *gorm.DB
}

// NewSubjectRepo 创建 SubjectRepository 实例
func NewSubjectRepo(db *gorm.DB) SubjectRepository {
	return &subjectRepo{db: db}
}

func (r *subjectRepo) Create(ctx context.Context, subject *model.Subject) error {
	return translateError(r.db.WithContext(ctx).Create(subject).Error)
}

func (r *subjectRepo) GetByID(ctx context.Context, id string) (*model.Subject, error) {
	var subject model.Subject
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", id).
		First(&subject).Error
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *subjectRepo) GetByCode(ctx context.Context, code string) (*model.Subject, error) {
	var subject model.Subject
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&subject).Error
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *subjectRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Subject, error) {
	var subjects []model.Subject
	if len(ids) == 0 {
		return subjects, nil
	}
	err := r.db.WithContext(ctx).
		Where("subject_id IN ?", ids).
		Find(&subjects).Error
	return subjects, err
}

func (r *subjectRepo) List(ctx context.Context, keyword string, offset, limit int) ([]model.Subject, int64, error) {
	var subjects []model.Subject
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Subject{})
	if keyword != "" {
		like := "%" + keyword + "%"
		db = db.Where("name ILIKE ? OR code ILIKE ?", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("name ASC").
		Find(&subjects).Error; err != nil {
		return nil, 0, err
	}

	return subjects, total, nil
}

func (r *subjectRepo) Update(ctx context.Context, subject *model.Subject) error {
	return translateError(r.db.WithContext(ctx).Save(subject).Error)
}

func (r *subjectRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("subject_id = ?", id).
		Delete(&model.Subject{}).Error
}
