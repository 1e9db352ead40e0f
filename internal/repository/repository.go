// Package repository 数据访问层公共定义
// 各子包提供 MongoDB 实现与进程内实现，服务层只依赖接口
package repository

import "errors"

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 唯一键冲突
	ErrDuplicate = errors.New("duplicate record")
)
