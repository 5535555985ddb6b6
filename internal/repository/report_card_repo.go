package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reportcard/internal/model"
)

// ReportCardListFilters 成绩单列表筛选条件，nil 表示不筛选
type ReportCardListFilters struct {
	StudentID string
	Term      *int
	Year      *int
}

// ReportCardRepository 成绩单数据访问接口
type ReportCardRepository interface {
	// Create 创建成绩单，Marks 非空时一并写入
	Create(ctx context.Context, card *model.ReportCard) error
	GetByID(ctx context.Context, id string) (*model.ReportCard, error)
	GetByKey(ctx context.Context, key model.TermKey) (*model.ReportCard, error)
	// LockByKey 以 SELECT ... FOR UPDATE 锁定该业务键下的成绩单，返回锁定的行数
	// 必须在事务内调用，用于串行化同一键上的汇总计算
	LockByKey(ctx context.Context, key model.TermKey) (int64, error)
	List(ctx context.Context, filters *ReportCardListFilters, offset, limit int) ([]model.ReportCard, int64, error)
	ListByStudentYear(ctx context.Context, studentID string, year int, term *int) ([]model.ReportCard, error)
	// ListKeys 返回所有存在成绩单的业务键（去重、有序）
	ListKeys(ctx context.Context) ([]model.TermKey, error)
	// ListKeysBySubject 返回包含某科目成绩的业务键
	ListKeysBySubject(ctx context.Context, subjectID string) ([]model.TermKey, error)
	// Touch 仅更新 updated_at / updated_by
	Touch(ctx context.Context, card *model.ReportCard) error
	Delete(ctx context.Context, id string) error
}

type reportCardRepo struct {
	db *gorm.DB
}

// NewReportCardRepo 创建 ReportCardRepository 实例
func NewReportCardRepo(db *gorm.DB) ReportCardRepository {
	return &reportCardRepo{db: db}
}

func (r *reportCardRepo) Create(ctx context.Context, card *model.ReportCard) error {
	return translateError(r.db.WithContext(ctx).Create(card).Error)
}

func (r *reportCardRepo) GetByID(ctx context.Context, id string) (*model.ReportCard, error) {
	var card model.ReportCard
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Marks", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Marks.Subject").
		Where("report_card_id = ?", id).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *reportCardRepo) GetByKey(ctx context.Context, key model.TermKey) (*model.ReportCard, error) {
	var card model.ReportCard
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND term = ? AND year = ?", key.StudentID, key.Term, key.Year).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *reportCardRepo) LockByKey(ctx context.Context, key model.TermKey) (int64, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.ReportCard{}).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("student_id = ? AND term = ? AND year = ?", key.StudentID, key.Term, key.Year).
		Pluck("report_card_id", &ids).Error
	if err != nil {
		return 0, translateError(err)
	}
	return int64(len(ids)), nil
}

func (r *reportCardRepo) List(ctx context.Context, filters *ReportCardListFilters, offset, limit int) ([]model.ReportCard, int64, error) {
	var cards []model.ReportCard
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ReportCard{})
	if filters != nil {
		if filters.StudentID != "" {
			db = db.Where("student_id = ?", filters.StudentID)
		}
		if filters.Term != nil {
			db = db.Where("term = ?", *filters.Term)
		}
		if filters.Year != nil {
			db = db.Where("year = ?", *filters.Year)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Student").
		Offset(offset).Limit(limit).
		Order("year DESC, term DESC, created_at ASC").
		Find(&cards).Error; err != nil {
		return nil, 0, err
	}

	return cards, total, nil
}

func (r *reportCardRepo) ListByStudentYear(ctx context.Context, studentID string, year int, term *int) ([]model.ReportCard, error) {
	var cards []model.ReportCard
	db := r.db.WithContext(ctx).
		Preload("Marks").
		Preload("Marks.Subject").
		Where("student_id = ? AND year = ?", studentID, year)
	if term != nil {
		db = db.Where("term = ?", *term)
	}
	err := db.Order("term ASC").Find(&cards).Error
	return cards, err
}

func (r *reportCardRepo) ListKeys(ctx context.Context) ([]model.TermKey, error) {
	var keys []model.TermKey
	err := r.db.WithContext(ctx).
		Model(&model.ReportCard{}).
		Distinct("student_id", "term", "year").
		Order("student_id, year, term").
		Scan(&keys).Error
	return keys, err
}

func (r *reportCardRepo) ListKeysBySubject(ctx context.Context, subjectID string) ([]model.TermKey, error) {
	var keys []model.TermKey
	err := r.db.WithContext(ctx).
		Model(&model.ReportCard{}).
		Distinct("report_cards.student_id", "report_cards.term", "report_cards.year").
		Joins("JOIN marks ON marks.report_card_id = report_cards.report_card_id").
		Where("marks.subject_id = ?", subjectID).
		Scan(&keys).Error
	return keys, err
}

func (r *reportCardRepo) Touch(ctx context.Context, card *model.ReportCard) error {
	return r.db.WithContext(ctx).
		Model(&model.ReportCard{}).
		Where("report_card_id = ?", card.ReportCardID).
		Updates(map[string]interface{}{
			"updated_at": card.UpdatedAt,
			"updated_by": card.UpdatedBy,
		}).Error
}

func (r *reportCardRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("report_card_id = ?", id).
		Delete(&model.ReportCard{}).Error
}
