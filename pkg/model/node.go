package model

import (
	"strconv"
	"strings"
)

// NodePrefix 节点名前缀，NODE<k> 由执行环境解析为真实主机
const NodePrefix = "NODE"

// NodeID 节点编号（1..N）
type NodeID int

// Name 返回节点对外名称，例如 NODE3
func (n NodeID) Name() string {
	return NodePrefix + strconv.Itoa(int(n))
}

func (n NodeID) String() string {
	return n.Name()
}

// ParseNodeName 解析 NODE<数字> 形式的节点名
// 前缀之后必须全部是数字，否则视为无效
func ParseNodeName(s string) (NodeID, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, NodePrefix) {
		return 0, false
	}
	digits := s[len(NodePrefix):]
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return NodeID(n), true
}
