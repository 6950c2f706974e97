package balancer

import "batchgen/pkg/model"

// uniqueNodes 去掉重复的节点编号，保留第一次出现的位置
func uniqueNodes(nodes []model.NodeID) []model.NodeID {
	seen := make(map[model.NodeID]struct{}, len(nodes))
	out := make([]model.NodeID, 0, len(nodes))
	for _, id := range nodes {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
