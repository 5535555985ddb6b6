package grading

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Score 带科目标识的一条分数
type Score struct {
	SubjectID string
	Value     decimal.Decimal
}

// SubjectAverage 单科平均分
type SubjectAverage struct {
	SubjectID string
	Count     int
	Average   decimal.Decimal
}

// Averages 分科平均与总体平均
// Overall 为 nil 表示没有任何成绩
type Averages struct {
	PerSubject []SubjectAverage
	Overall    *decimal.Decimal
}

// ComputeAverages 按科目分组求平均，并对全部分数求总体平均。
// 总体平均是所有分数的算术平均，而不是各科平均的平均。
// PerSubject 按 SubjectID 排序，保证输出稳定。
func ComputeAverages(scores []Score) Averages {
	if len(scores) == 0 {
		return Averages{PerSubject: []SubjectAverage{}}
	}

	grouped := make(map[string][]decimal.Decimal)
	all := make([]decimal.Decimal, 0, len(scores))
	for _, s := range scores {
		grouped[s.SubjectID] = append(grouped[s.SubjectID], s.Value)
		all = append(all, s.Value)
	}

	per := make([]SubjectAverage, 0, len(grouped))
	for id, vals := range grouped {
		per = append(per, SubjectAverage{
			SubjectID: id,
			Count:     len(vals),
			Average:   Mean(vals),
		})
	}
	sort.Slice(per, func(i, j int) bool { return per[i].SubjectID < per[j].SubjectID })

	overall := Mean(all)
	return Averages{PerSubject: per, Overall: &overall}
}
