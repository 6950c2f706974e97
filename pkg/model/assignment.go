package model

// NodeLoad 单个节点的分配结果
type NodeLoad struct {
	Node    NodeID   `json:"node"`
	Batches []string `json:"batches"` // 按分配顺序排列的批次标识
	Total   int      `json:"total"`   // 已分配主机总数
}

// With 返回追加了一个批次后的新记录，原记录保持不变
func (l NodeLoad) With(b Batch) NodeLoad {
	batches := make([]string, len(l.Batches), len(l.Batches)+1)
	copy(batches, l.Batches)
	return NodeLoad{
		Node:    l.Node,
		Batches: append(batches, b.ID),
		Total:   l.Total + b.Hosts,
	}
}

// Assignment 批次在节点间的划分，Loads 保持启用节点列表的顺序
type Assignment struct {
	Loads []NodeLoad `json:"loads"`
}

// Total 所有节点的主机总数
func (a *Assignment) Total() int {
	total := 0
	for _, l := range a.Loads {
		total += l.Total
	}
	return total
}

// Loaded 返回主机数不为 0 的节点，顺序不变
func (a *Assignment) Loaded() []NodeLoad {
	loaded := make([]NodeLoad, 0, len(a.Loads))
	for _, l := range a.Loads {
		if l.Total > 0 {
			loaded = append(loaded, l)
		}
	}
	return loaded
}

// Load 查找指定节点的分配结果
func (a *Assignment) Load(id NodeID) (NodeLoad, bool) {
	for _, l := range a.Loads {
		if l.Node == id {
			return l, true
		}
	}
	return NodeLoad{}, false
}

// Imbalance 最重与最轻节点的主机数之差（包含空闲节点）
func (a *Assignment) Imbalance() int {
	if len(a.Loads) == 0 {
		return 0
	}
	lo, hi := a.Loads[0].Total, a.Loads[0].Total
	for _, l := range a.Loads[1:] {
		if l.Total < lo {
			lo = l.Total
		}
		if l.Total > hi {
			hi = l.Total
		}
	}
	return hi - lo
}
