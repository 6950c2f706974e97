package store

import (
	"context"
	"fmt"

	"batchgen/pkg/model"
)

// Inputs 分配与生成脚本所需的全部输入
type Inputs struct {
	CT      string
	Batches []model.Batch
	Start   model.StartTime
	Nodes   []model.NodeID
}

// Resolve 依次读取批次、开始时间和启用节点，并检查前置条件
// 任一项失败都直接返回，不会产生部分结果
func Resolve(ctx context.Context, src Source, ct string) (*Inputs, error) {
	batches, err := src.Batches(ctx, ct)
	if err != nil {
		return nil, err
	}
	start, err := src.StartTime(ctx, ct)
	if err != nil {
		return nil, err
	}
	nodes, err := src.EnabledNodes(ctx)
	if err != nil {
		return nil, err
	}

	if len(batches) == 0 {
		return nil, fmt.Errorf("ct %s: %w", ct, ErrNoBatches)
	}
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	return &Inputs{CT: ct, Batches: batches, Start: start, Nodes: nodes}, nil
}
