package store

import (
	"context"
	"errors"

	"batchgen/pkg/model"
)

var (
	// ErrNotFound 输入文件/键不存在，或开始时间表里没有该 CT
	ErrNotFound = errors.New("not found")
	// ErrNoNodes 启用节点列表为空
	ErrNoNodes = errors.New("no enabled nodes")
	// ErrNoBatches 过滤掉 0 主机的批次后没有可分配的批次
	ErrNoBatches = errors.New("no batches with hosts")
)

// Source 一次运行的输入来源
// 任何实现了这个接口的 Struct (FileSource、EtcdManager) 都可以驱动生成流程
type Source interface {
	// Batches 返回 CT 的批次列表，主机数为 0 或格式错误的行已被剔除
	Batches(ctx context.Context, ct string) ([]model.Batch, error)

	// StartTime 在开始时间表中查找 CT，第一条匹配生效
	StartTime(ctx context.Context, ct string) (model.StartTime, error)

	// EnabledNodes 返回启用节点，保持列表顺序
	EnabledNodes(ctx context.Context) ([]model.NodeID, error)
}

// PlanStore 保存生成结果，供其他节点或工具查看
type PlanStore interface {
	SavePlan(ctx context.Context, plan *model.Plan) error
	GetPlan(ctx context.Context, ct string) (*model.Plan, error)
}
