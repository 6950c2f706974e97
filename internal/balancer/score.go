package balancer

import "batchgen/pkg/model"

// lightestNode 返回当前最轻节点的下标
// 只有严格更轻才替换，所以完全相同时保留列表中靠前的节点
func lightestNode(loads []model.NodeLoad) int {
	best := 0
	for i := 1; i < len(loads); i++ {
		if lighter(loads[i], loads[best]) {
			best = i
		}
	}
	return best
}

// lighter 先比主机数，再比批次数
func lighter(a, b model.NodeLoad) bool {
	if a.Total != b.Total {
		return a.Total < b.Total
	}
	return len(a.Batches) < len(b.Batches)
}
