package errors

import "errors"

var (
	// ErrConflict 并发写冲突：唯一约束冲突、序列化失败或死锁
	ErrConflict = errors.New("数据写入冲突，请重试")

	// ErrTransientStorage 存储层暂时性故障，重试后仍失败时返回给调用方
	ErrTransientStorage = errors.New("存储暂时不可用，请稍后重试")
)
