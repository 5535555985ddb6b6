// Package grading 实现学期汇总的纯计算逻辑：总分、平均分与等级映射。
//
// 所有分数使用 decimal 表示，平均分四舍五入到两位小数后再映射等级，
// 保证持久化的 average_score 与 grade 始终一致。
package grading

import "github.com/shopspring/decimal"

// Scale 分数保留的小数位数
const Scale = 2

// 等级
const (
	GradeAPlus = "A+"
	GradeA     = "A"
	GradeB     = "B"
	GradeC     = "C"
	GradeD     = "D"
	GradeF     = "F"
)

type threshold struct {
	min   decimal.Decimal
	grade string
}

// 自上而下比较，命中第一个 >= 的阈值即返回；均未命中则为 F
var thresholds = []threshold{
	{decimal.NewFromInt(90), GradeAPlus},
	{decimal.NewFromInt(80), GradeA},
	{decimal.NewFromInt(70), GradeB},
	{decimal.NewFromInt(60), GradeC},
	{decimal.NewFromInt(50), GradeD},
}

// GradeOf 将平均分映射为等级
func GradeOf(average decimal.Decimal) string {
	for _, t := range thresholds {
		if average.GreaterThanOrEqual(t.min) {
			return t.grade
		}
	}
	return GradeF
}

// Result 一组分数的汇总结果
type Result struct {
	Count   int
	Total   decimal.Decimal
	Average decimal.Decimal
	Grade   string
}

// Sum 求和，空切片返回 0
func Sum(scores []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, s := range scores {
		total = total.Add(s)
	}
	return total
}

// Mean 求平均值并保留两位小数；空切片返回 0
func Mean(scores []decimal.Decimal) decimal.Decimal {
	if len(scores) == 0 {
		return decimal.Zero
	}
	return Sum(scores).Div(decimal.NewFromInt(int64(len(scores)))).Round(Scale)
}

// Summarize 计算总分、平均分与等级
// 无成绩时 total=0、average=0、grade=F
func Summarize(scores []decimal.Decimal) Result {
	total := Sum(scores).Round(Scale)
	avg := Mean(scores)
	return Result{
		Count:   len(scores),
		Total:   total,
		Average: avg,
		Grade:   GradeOf(avg),
	}
}

var (
	minScore = decimal.Zero
	maxScore = decimal.NewFromInt(100)
)

// ValidScore 分数须在 [0, 100] 且至多两位小数
func ValidScore(score decimal.Decimal) bool {
	if score.LessThan(minScore) || score.GreaterThan(maxScore) {
		return false
	}
	return score.Equal(score.Round(Scale))
}
