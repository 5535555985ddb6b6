package repository

import (
	"context"

	"gorm.io/gorm"

	"reportcard/internal/model"
)

// StudentListFilters 学生列表筛选条件
type StudentListFilters struct {
	Keyword string // 模糊匹配姓名或邮箱
}

// StudentRepository 学生数据访问接口
type StudentRepository interface {
	Create(ctx context.Context, student *model.Student) error
	GetByID(ctx context.Context, id string) (*model.Student, error)
	GetByEmail(ctx context.Context, email string) (*model.Student, error)
	List(ctx context.Context, filters *StudentListFilters, offset, limit int) ([]model.Student, int64, error)
	Update(ctx context.Context, student *model.Student) error
	// Delete 物理删除，成绩单、成绩与学期汇总由外键级联删除
	Delete(ctx context.Context, id string) error
}

type studentRepo struct {
	db *gorm.DB
}

// NewStudentRepo 创建 StudentRepository 实例
func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) Create(ctx context.Context, student *model.Student) error {
	return translateError(r.db.WithContext(ctx).Create(student).Error)
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*model.Student, error) {
	var student model.Student
	err := r.db.WithContext(ctx).
		Where("student_id = ?", id).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) GetByEmail(ctx context.Context, email string) (*model.Student, error) {
	var student model.Student
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) List(ctx context.Context, filters *StudentListFilters, offset, limit int) ([]model.Student, int64, error) {
	var students []model.Student
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Student{})
	if filters != nil && filters.Keyword != "" {
		like := "%" + filters.Keyword + "%"
		db = db.Where("name ILIKE ? OR email ILIKE ?", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at ASC").
		Find(&students).Error; err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

func (r *studentRepo) Update(ctx context.Context, student *model.Student) error {
	return translateError(r.db.WithContext(ctx).Save(student).Error)
}

func (r *studentRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("student_id = ?", id).
		Delete(&model.Student{}).Error
}
