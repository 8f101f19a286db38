package source

import (
	"context"
	"fmt"

	"subpool/internal/clash"
	"subpool/internal/fetch"
	"subpool/internal/shared/types"
	"subpool/nodepool/model"
)

// Result 是一次源拉取的产出。Dropped 携带提取核心的诊断信息，
// 供上层统计与排查，不代表失败。
type Result struct {
	Nodes   []*model.NodeInfo
	Dropped []clash.Dropped
}

// Source 接口定义了从一个订阅源获取节点记录的行为。
type Source interface {
	// Fetch 拉取并提取订阅源，返回节点列表。
	// 实现只负责获取与提取，不做可达性验证。
	Fetch(ctx context.Context) (*Result, error)

	// Name 返回源名称，用于日志记录与统计。
	Name() string
}

// New 根据配置档案构造对应类型的源。
func New(profile *types.SourceProfile, opts fetch.Options) (Source, error) {
	switch profile.Type {
	case types.SourceSubscription, "":
		return NewSubscriptionSource(profile.Name, profile.URL, opts), nil
	case types.SourceHTML:
		return NewHTMLPageSource(profile.Name, profile.URL, profile.Selector, opts.Timeout), nil
	case types.SourceCrawl:
		return NewCrawlSource(profile.Name, profile.URL, opts.Timeout)
	default:
		return nil, fmt.Errorf("unknown source type: %s", profile.Type)
	}
}

// collect 把提取结果转换为池条目并记录诊断。
func collect(res clash.Result, sourceName string) *Result {
	nodes := make([]*model.NodeInfo, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		nodes = append(nodes, model.New(n, sourceName))
	}
	return &Result{Nodes: nodes, Dropped: res.Dropped}
}
