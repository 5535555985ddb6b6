package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reportcard/internal/model"
)

// MarkRepository 单科成绩数据访问接口
type MarkRepository interface {
	// ListByKey 返回某业务键下全部成绩单的成绩
	ListByKey(ctx context.Context, key model.TermKey) ([]model.Mark, error)
	// ListByStudentYear 返回学生某年（可选限定学期）的全部成绩
	ListByStudentYear(ctx context.Context, studentID string, year int, term *int) ([]model.Mark, error)
	// Upsert 按 (report_card_id, subject_id) 新增或覆盖分数
	Upsert(ctx context.Context, marks []model.Mark) error
	// DeleteByReportCardAndSubject 删除一条成绩，返回删除行数
	DeleteByReportCardAndSubject(ctx context.Context, reportCardID, subjectID string) (int64, error)
}

type markRepo struct {
	db *gorm.DB
}

// NewMarkRepo 创建 MarkRepository 实例
func NewMarkRepo(db *gorm.DB) MarkRepository {
	return &markRepo{db: db}
}

func (r *markRepo) ListByKey(ctx context.Context, key model.TermKey) ([]model.Mark, error) {
	var marks []model.Mark
	err := r.db.WithContext(ctx).
		Joins("JOIN report_cards ON report_cards.report_card_id = marks.report_card_id").
		Where("report_cards.student_id = ? AND report_cards.term = ? AND report_cards.year = ?",
			key.StudentID, key.Term, key.Year).
		Order("marks.created_at ASC").
		Find(&marks).Error
	return marks, err
}

func (r *markRepo) ListByStudentYear(ctx context.Context, studentID string, year int, term *int) ([]model.Mark, error) {
	var marks []model.Mark
	db := r.db.WithContext(ctx).
		Joins("JOIN report_cards ON report_cards.report_card_id = marks.report_card_id").
		Where("report_cards.student_id = ? AND report_cards.year = ?", studentID, year)
	if term != nil {
		db = db.Where("report_cards.term = ?", *term)
	}
	err := db.Order("marks.subject_id ASC").Find(&marks).Error
	return marks, err
}

func (r *markRepo) Upsert(ctx context.Context, marks []model.Mark) error {
	if len(marks) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "report_card_id"}, {Name: "subject_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"score":      gorm.Expr("EXCLUDED.score"),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).
		Create(&marks).Error
	return translateError(err)
}

func (r *markRepo) DeleteByReportCardAndSubject(ctx context.Context, reportCardID, subjectID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("report_card_id = ? AND subject_id = ?", reportCardID, subjectID).
		Delete(&model.Mark{})
	return res.RowsAffected, res.Error
}
