package source

import (
	"context"

	"subpool/internal/clash"
	"subpool/internal/fetch"
	"subpool/internal/shared/logger"
)

// SubscriptionSource 拉取原始 Clash 订阅文档并运行核心提取器。
type SubscriptionSource struct {
	name string
	url  string
	opts fetch.Options
}

// NewSubscriptionSource 创建一个新的订阅文档源。
func NewSubscriptionSource(name, url string, opts fetch.Options) *SubscriptionSource {
	return &SubscriptionSource{name: name, url: url, opts: opts}
}

func (s *SubscriptionSource) Name() string {
	return s.name
}

func (s *SubscriptionSource) Fetch(ctx context.Context) (*Result, error) {
	l := logger.WithComponent("NodePool/Source")
	l.Info().Str("source", s.name).Msg("Fetching subscription document...")

	text, err := fetch.Text(ctx, s.url, s.opts)
	if err != nil {
		return nil, err
	}

	res := clash.Extract(text)
	for _, d := range res.Dropped {
		l.Warn().Str("source", s.name).Int("line", d.Line).Str("record", d.Src).Msg("Dropped incomplete node record.")
	}

	l.Info().Int("count", len(res.Nodes)).Int("dropped", len(res.Dropped)).Str("source", s.name).Msg("Fetch finished.")
	return collect(res, s.name), nil
}
