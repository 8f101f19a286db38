package model

import (
	"fmt"
	"time"

	"subpool/internal/clash"
)

// NodeInfo 封装了一条提取出的节点记录及其在池中的生命周期元数据。
// 它在内存中使用，通过 API 序列化为 JSON，并由 FileStorage 持久化。
type NodeInfo struct {
	// 核心信息
	ID     string     `json:"id"` // "name@server:port"
	Record clash.Node `json:"record"`

	// 元数据
	Source    string    `json:"source"` // 来源订阅源的名称
	FetchedAt time.Time `json:"fetched_at"`

	// 健康状态与生命周期管理
	Latency      time.Duration `json:"latency"`       // 延迟, 0 表示检查失败或未检查
	LastChecked  time.Time     `json:"last_checked"`  // 上次检查时间
	NextChecked  time.Time     `json:"next_checked"`  // 下次计划检查时间
	FailureCount int           `json:"failure_count"` // 连续失败次数
	SuccessCount int           `json:"success_count"` // 连续成功次数
}

// New 从一条提取记录构造池条目。同名不同地址的节点得到不同 ID；
// 完全相同的节点在池中以 ID 去重。
func New(record clash.Node, source string) *NodeInfo {
	return &NodeInfo{
		ID:        fmt.Sprintf("%s@%s:%s", record.Name(), record.Server(), record.PortText()),
		Record:    record,
		Source:    source,
		FetchedAt: time.Now(),
	}
}
