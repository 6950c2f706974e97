package model

import (
	"time"

	"github.com/google/uuid"
)

// Plan 一次生成的完整记录：CT、开始时间和分配结果
// 发布到 etcd 和写入本地台账时都用这个结构
type Plan struct {
	ID         string      `json:"id"`
	CT         string      `json:"ct"`
	StartTime  StartTime   `json:"start_time"`
	Assignment *Assignment `json:"assignment"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewPlan 创建一条新的生成记录
func NewPlan(ct string, start StartTime, a *Assignment) *Plan {
	return &Plan{
		ID:         uuid.NewString(),
		CT:         ct,
		StartTime:  start,
		Assignment: a,
		CreatedAt:  time.Now(),
	}
}
