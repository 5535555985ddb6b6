package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User       UserRepository
	Student    StudentRepository
	Subject    SubjectRepository
	ReportCard ReportCardRepository
	Mark       MarkRepository
	Summary    SummaryRepository

	// Tx 在同一事务内执行多个 Repository 操作
	Tx Transactor
}

// Transactor 事务执行器
// fn 收到的 Repository 中所有仓储都绑定在同一个事务上；fn 返回错误时整体回滚
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *Repository) error) error
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:       NewUserRepo(db),
		Student:    NewStudentRepo(db),
		Subject:    NewSubjectRepo(db),
		ReportCard: NewReportCardRepo(db),
		Mark:       NewMarkRepo(db),
		Summary:    NewSummaryRepo(db),
		Tx:         &gormTransactor{db: db},
	}
}

type gormTransactor struct {
	db *gorm.DB
}

func (t *gormTransactor) WithinTx(ctx context.Context, fn func(tx *Repository) error) error {
	return translateError(t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	}))
}
