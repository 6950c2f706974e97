package model

import "regexp"

// Batch 一个独立的工作单元
type Batch struct {
	ID    string `json:"id"`    // 批次标识 (如: B001)
	Hosts int    `json:"hosts"` // 主机数，即批次权重，进入分配前必须 > 0
}

// TotalHosts 计算批次列表的主机总数
func TotalHosts(batches []Batch) int {
	total := 0
	for _, b := range batches {
		total += b.Hosts
	}
	return total
}

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidToken 判断 CT 或批次标识能否原样嵌入生成的脚本
// 脚本里这些值处在双引号命令串中，只允许不需要转义的字符
func ValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}
