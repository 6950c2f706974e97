// Package balancer 把带权重的批次分配到固定的节点池，使各节点主机数尽量均衡
package balancer

import (
	"sort"

	"batchgen/pkg/model"
)

// Step 一次分配决策，用于复核贪心过程
type Step struct {
	Batch         model.Batch
	Node          model.NodeID
	Before        int // 分配前该节点的主机数
	BatchesBefore int // 分配前该节点的批次数
}

// Balance 贪心分配：先放最大的批次，每次放到当前最轻的节点
//
// 选择节点的比较顺序：
//  1. 主机总数最小
//  2. 已分配批次数最少
//  3. 在启用节点列表中最靠前
//
// 调用方负责保证 batches 与 nodes 非空、权重为正。
func Balance(batches []model.Batch, nodes []model.NodeID) *model.Assignment {
	a, _ := balance(batches, nodes, false)
	return a
}

// BalanceWithTrace 与 Balance 相同，同时返回每一步的分配决策
func BalanceWithTrace(batches []model.Batch, nodes []model.NodeID) (*model.Assignment, []Step) {
	return balance(batches, nodes, true)
}

func balance(batches []model.Batch, nodes []model.NodeID, trace bool) (*model.Assignment, []Step) {
	// Step 1: 每个节点从空列表、0 主机开始
	loads := make([]model.NodeLoad, 0, len(nodes))
	for _, id := range uniqueNodes(nodes) {
		loads = append(loads, model.NodeLoad{Node: id, Batches: []string{}})
	}
	if len(loads) == 0 {
		return &model.Assignment{Loads: loads}, nil
	}

	// Step 2: 按主机数降序，相同主机数保持输入顺序
	ordered := make([]model.Batch, len(batches))
	copy(ordered, batches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Hosts > ordered[j].Hosts
	})

	// Step 3 & 4: 逐个选节点并提交
	var steps []Step
	if trace {
		steps = make([]Step, 0, len(ordered))
	}
	for _, b := range ordered {
		idx := lightestNode(loads)
		if trace {
			steps = append(steps, Step{
				Batch:         b,
				Node:          loads[idx].Node,
				Before:        loads[idx].Total,
				BatchesBefore: len(loads[idx].Batches),
			})
		}
		loads[idx] = loads[idx].With(b)
	}

	return &model.Assignment{Loads: loads}, steps
}
