package types

// 订阅源类型。subscription 直接拉取原始文档；html 从分享页的
// 选择器命中块里取文本；crawl 从索引页出发抓取链接页面。
const (
	SourceSubscription = "subscription"
	SourceHTML         = "html"
	SourceCrawl        = "crawl"
)

// SourceProfile 定义了一个订阅源的完整配置。
// 这是 configs/sources.json 的核心数据结构。
type SourceProfile struct {
	ID       string `json:"id"`   // 唯一标识符 (UUID)，由 Web API 生成和管理
	Name     string `json:"name"` // 用户备注，用于日志与统计
	Type     string `json:"type"` // "subscription" | "html" | "crawl"
	URL      string `json:"url"`
	Selector string `json:"selector,omitempty"` // html 源的 CSS 选择器，默认 "pre"
	Enabled  bool   `json:"enabled"`
}

// PoolConf 包含节点池的调度与边界配置
type PoolConf struct {
	RefreshIntervalMinutes int    `ini:"refresh_interval_minutes"`
	CheckIntervalSeconds   int    `ini:"check_interval_seconds"`
	CheckTimeoutSeconds    int    `ini:"check_timeout_seconds"`
	CheckConcurrency       int    `ini:"check_concurrency"`
	FetchTimeoutSeconds    int    `ini:"fetch_timeout_seconds"`
	FetchMaxKB             int    `ini:"fetch_max_kb"`
	DataFile               string `ini:"data_file"`
}

// WebConf 包含 Web 服务的配置
type WebConf struct {
	WebPort     int    `ini:"web_port"`
	WebUser     string `ini:"web_user"`
	WebPassword string `ini:"web_password"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config 是统一的行为配置结构体，从 subpool.ini 加载。
type Config struct {
	PoolConf `ini:"pool"`
	WebConf  `ini:"web"`
	LogConf  `ini:"log"`
}
