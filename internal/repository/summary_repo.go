package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reportcard/internal/model"
)

// SummaryListFilters 学期汇总列表筛选条件
type SummaryListFilters struct {
	StudentID string
	Term      *int
	Year      *int
	Grade     string
}

// SummaryRepository 学期汇总数据访问接口
// 汇总表以 (student_id, term, year) 为键，每个键至多一行
type SummaryRepository interface {
	GetByKey(ctx context.Context, key model.TermKey) (*model.StudentTermSummary, error)
	// Upsert 按业务键覆盖写入汇总结果，created 表示本次是否新建
	// 在事务内调用时已有行会被 FOR UPDATE 锁定
	Upsert(ctx context.Context, summary *model.StudentTermSummary) (created bool, err error)
	DeleteByKey(ctx context.Context, key model.TermKey) (int64, error)
	CountByKey(ctx context.Context, key model.TermKey) (int64, error)
	List(ctx context.Context, filters *SummaryListFilters, offset, limit int) ([]model.StudentTermSummary, int64, error)
	// ListAll 不分页，供导出使用，预加载学生信息
	ListAll(ctx context.Context, filters *SummaryListFilters) ([]model.StudentTermSummary, error)
}

type summaryRepo struct {
	db *gorm.DB
}

// NewSummaryRepo 创建 SummaryRepository 实例
func NewSummaryRepo(db *gorm.DB) SummaryRepository {
	return &summaryRepo{db: db}
}

func (r *summaryRepo) GetByKey(ctx context.Context, key model.TermKey) (*model.StudentTermSummary, error) {
	var summary model.StudentTermSummary
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND term = ? AND year = ?", key.StudentID, key.Term, key.Year).
		First(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *summaryRepo) Upsert(ctx context.Context, summary *model.StudentTermSummary) (bool, error) {
	var existing model.StudentTermSummary
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("student_id = ? AND term = ? AND year = ?", summary.StudentID, summary.Term, summary.Year).
		First(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 并发插入同一键时由唯一约束兜底，翻译为 ErrConflict 交由上层重试
		if err := r.db.WithContext(ctx).Create(summary).Error; err != nil {
			return false, translateError(err)
		}
		return true, nil
	case err != nil:
		return false, translateError(err)
	}

	err = r.db.WithContext(ctx).
		Model(&existing).
		Updates(map[string]interface{}{
			"total_score":     summary.TotalScore,
			"average_score":   summary.AverageScore,
			"grade":           summary.Grade,
			"calculated_date": summary.CalculatedDate,
		}).Error
	if err != nil {
		return false, translateError(err)
	}
	summary.SummaryID = existing.SummaryID
	return false, nil
}

func (r *summaryRepo) DeleteByKey(ctx context.Context, key model.TermKey) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("student_id = ? AND term = ? AND year = ?", key.StudentID, key.Term, key.Year).
		Delete(&model.StudentTermSummary{})
	return res.RowsAffected, res.Error
}

func (r *summaryRepo) CountByKey(ctx context.Context, key model.TermKey) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.StudentTermSummary{}).
		Where("student_id = ? AND term = ? AND year = ?", key.StudentID, key.Term, key.Year).
		Count(&n).Error
	return n, err
}

func (r *summaryRepo) List(ctx context.Context, filters *SummaryListFilters, offset, limit int) ([]model.StudentTermSummary, int64, error) {
	var summaries []model.StudentTermSummary
	var total int64

	db := applySummaryFilters(r.db.WithContext(ctx).Model(&model.StudentTermSummary{}), filters)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("year DESC, term DESC, average_score DESC").
		Find(&summaries).Error; err != nil {
		return nil, 0, err
	}

	return summaries, total, nil
}

func (r *summaryRepo) ListAll(ctx context.Context, filters *SummaryListFilters) ([]model.StudentTermSummary, error) {
	var summaries []model.StudentTermSummary
	err := applySummaryFilters(r.db.WithContext(ctx).Model(&model.StudentTermSummary{}), filters).
		Preload("Student").
		Order("year ASC, term ASC, student_id ASC").
		Find(&summaries).Error
	return summaries, err
}

func applySummaryFilters(db *gorm.DB, filters *SummaryListFilters) *gorm.DB {
	if filters == nil {
		return db
	}
	if filters.StudentID != "" {
		db = db.Where("student_id = ?", filters.StudentID)
	}
	if filters.Term != nil {
		db = db.Where("term = ?", *filters.Term)
	}
	if filters.Year != nil {
		db = db.Where("year = ?", *filters.Year)
	}
	if filters.Grade != "" {
		db = db.Where("grade = ?", filters.Grade)
	}
	return db
}
