package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrConflict 唯一约束冲突：记录已存在（并发写入时由数据库兜底）
var ErrConflict = errors.New("记录已存在")
