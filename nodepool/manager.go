package nodepool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"subpool/internal/fetch"
	"subpool/internal/shared/config"
	"subpool/internal/shared/logger"
	"subpool/internal/shared/types"
	"subpool/nodepool/checker"
	"subpool/nodepool/model"
	"subpool/nodepool/source"
	"subpool/nodepool/storage"
)

const (
	// 节点因连续失败而被移出池的阈值。下次刷新若源里仍有它会重新入池。
	maxFailuresBeforeRemoval = 7

	// 单次检查周期处理的节点数上限
	checkBatchSize = 50

	// 单个源一次拉取的总预算
	sourceFetchBudget = 2 * time.Minute
)

// 分级间隔策略：连续成功的节点检查得越来越稀，失败的同样退避。
var (
	successIntervals = []time.Duration{
		30 * time.Minute,
		2 * time.Hour,
		6 * time.Hour,
		12 * time.Hour,
		24 * time.Hour,
	}

	failureIntervals = []time.Duration{
		30 * time.Minute,
		2 * time.Hour,
		6 * time.Hour,
		12 * time.Hour,
		24 * time.Hour,
	}
)

// SourceStats 记录一个源最近一次拉取的结果。
type SourceStats struct {
	Name      string    `json:"name"`
	Nodes     int       `json:"nodes"`
	Dropped   int       `json:"dropped"` // 被提取器丢弃的不完整记录数
	LastError string    `json:"last_error,omitempty"`
	LastFetch time.Time `json:"last_fetch"`
}

// Stats 是 /api/status 返回的池总览。
type Stats struct {
	TotalNodes  int            `json:"total_nodes"`
	LastRefresh time.Time      `json:"last_refresh"`
	Sources     []*SourceStats `json:"sources"`
}

// Manager 是节点池模块的总控制器：持有订阅源、内存池与持久化，
// 运行刷新和健康检查的调度循环。
type Manager struct {
	cfg         *types.Config
	sourcesPath string
	storage     storage.Storage
	checker     *checker.Checker

	profiles []*types.SourceProfile
	sources  []source.Source

	nodes       map[string]*model.NodeInfo // 内存中的节点池
	sourceStats map[string]*SourceStats
	lastRefresh time.Time
	mu          sync.RWMutex

	// 调度器与生命周期管理
	refreshTicker *time.Ticker
	checkTicker   *time.Ticker
	stopChan      chan struct{}
	wg            sync.WaitGroup

	notify func() // 池内容变化时的回调（Web hub 广播）
}

// NewManager 创建并初始化节点池管理器。
func NewManager(cfg *types.Config, sourcesPath string, st storage.Storage, chk *checker.Checker) *Manager {
	return &Manager{
		cfg:         cfg,
		sourcesPath: sourcesPath,
		storage:     st,
		checker:     chk,
		nodes:       make(map[string]*model.NodeInfo),
		sourceStats: make(map[string]*SourceStats),
		stopChan:    make(chan struct{}),
	}
}

// SetNotify 注册池内容变化的回调。
func (m *Manager) SetNotify(fn func()) {
	m.notify = fn
}

// SetSources 直接替换源列表，绕过配置档案。主要用于测试。
func (m *Manager) SetSources(sources []source.Source) {
	m.mu.Lock()
	m.sources = sources
	m.mu.Unlock()
}

func (m *Manager) fetchOptions() fetch.Options {
	opts := fetch.Options{}
	if m.cfg.PoolConf.FetchTimeoutSeconds > 0 {
		opts.Timeout = time.Duration(m.cfg.PoolConf.FetchTimeoutSeconds) * time.Second
	}
	if m.cfg.PoolConf.FetchMaxKB > 0 {
		opts.MaxBytes = int64(m.cfg.PoolConf.FetchMaxKB) * 1024
	}
	return opts
}

// Start 启动管理器的所有后台任务（调度循环）。
func (m *Manager) Start() {
	l := logger.WithComponent("NodePool/Manager")
	l.Info().Msg("Manager starting...")

	if err := m.loadNodes(); err != nil {
		l.Error().Err(err).Msg("Failed to load nodes from storage. Starting with an empty pool.")
	}
	if err := m.loadProfiles(); err != nil {
		l.Error().Err(err).Msg("Failed to load source profiles. Starting with no sources.")
	}

	refreshInterval := time.Duration(m.cfg.PoolConf.RefreshIntervalMinutes) * time.Minute
	if refreshInterval <= 0 {
		refreshInterval = time.Hour
	}
	checkInterval := time.Duration(m.cfg.PoolConf.CheckIntervalSeconds) * time.Second
	if checkInterval <= 0 {
		checkInterval = time.Minute
	}
	m.refreshTicker = time.NewTicker(refreshInterval)
	m.checkTicker = time.NewTicker(checkInterval)

	l.Info().
		Dur("refresh_interval", refreshInterval).
		Dur("check_interval", checkInterval).
		Msg("Schedulers initialized.")

	m.wg.Add(1)
	go m.schedulerLoop()

	go m.RunRefreshCycle()
}

// schedulerLoop 是核心的调度循环，监听 Ticker 和停止信号。
func (m *Manager) schedulerLoop() {
	defer m.wg.Done()
	l := logger.WithComponent("NodePool/Manager")

	for {
		select {
		case <-m.refreshTicker.C:
			l.Info().Msg("Refresh ticker triggered.")
			go m.RunRefreshCycle()

		case <-m.checkTicker.C:
			l.Debug().Msg("Check ticker triggered.")
			go m.runCheckCycle()

		case <-m.stopChan:
			l.Info().Msg("Stop signal received. Shutting down schedulers.")
			m.refreshTicker.Stop()
			m.checkTicker.Stop()
			return
		}
	}
}

// RunRefreshCycle 执行一个完整的"拉取所有源 -> 合并入池 -> 存储"周期。
// 单个源失败只影响它自己的统计，不中断本轮其他源。
func (m *Manager) RunRefreshCycle() {
	l := logger.WithComponent("NodePool/Manager")
	l.Info().Msg("Starting refresh cycle...")

	m.mu.RLock()
	sources := make([]source.Source, len(m.sources))
	copy(sources, m.sources)
	m.mu.RUnlock()

	if len(sources) == 0 {
		l.Info().Msg("No enabled sources configured, nothing to refresh.")
		return
	}

	type outcome struct {
		name string
		res  *source.Result
		err  error
	}
	outcomes := make(chan outcome, len(sources))

	var wg sync.WaitGroup
	for _, s := range sources {
		wg.Add(1)
		go func(src source.Source) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sourceFetchBudget)
			defer cancel()
			res, err := src.Fetch(ctx)
			outcomes <- outcome{name: src.Name(), res: res, err: err}
		}(s)
	}
	wg.Wait()
	close(outcomes)

	now := time.Now()
	added, refreshed, failed := 0, 0, 0

	m.mu.Lock()
	for o := range outcomes {
		stats := &SourceStats{Name: o.name, LastFetch: now}
		if o.err != nil {
			stats.LastError = o.err.Error()
			m.sourceStats[o.name] = stats
			failed++
			l.Warn().Err(o.err).Str("source", o.name).Msg("Source fetch failed.")
			continue
		}
		stats.Nodes = len(o.res.Nodes)
		stats.Dropped = len(o.res.Dropped)
		m.sourceStats[o.name] = stats

		for _, n := range o.res.Nodes {
			if existing, ok := m.nodes[n.ID]; ok {
				// 已知节点：更新记录内容，保留健康计数。
				existing.Record = n.Record
				existing.Source = n.Source
				existing.FetchedAt = n.FetchedAt
				refreshed++
			} else {
				n.NextChecked = now // 新节点排队立即检查
				m.nodes[n.ID] = n
				added++
			}
		}
	}
	m.lastRefresh = now
	m.mu.Unlock()

	l.Info().Int("added", added).Int("refreshed", refreshed).Int("failed_sources", failed).Msg("Refresh cycle finished.")

	if err := m.saveNodes(); err != nil {
		l.Error().Err(err).Msg("Failed to save nodes to storage after refresh.")
	}
	m.notifyChanged()
}

// runCheckCycle 执行一个"筛选到期节点 -> 检查 -> 更新状态"周期。
func (m *Manager) runCheckCycle() {
	l := logger.WithComponent("NodePool/Manager")

	now := time.Now()
	dueNodes := make([]*model.NodeInfo, 0)
	m.mu.RLock()
	for _, n := range m.nodes {
		if !n.NextChecked.IsZero() && n.NextChecked.Before(now) {
			dueNodes = append(dueNodes, n)
		}
	}
	m.mu.RUnlock()

	if len(dueNodes) == 0 {
		l.Debug().Msg("No nodes due for check.")
		return
	}

	sort.Slice(dueNodes, func(i, j int) bool {
		return dueNodes[i].NextChecked.Before(dueNodes[j].NextChecked)
	})
	if len(dueNodes) > checkBatchSize {
		dueNodes = dueNodes[:checkBatchSize]
	}

	l.Info().Int("batch_size", len(dueNodes)).Msg("Starting node check batch.")
	m.checker.Check(dueNodes)

	m.mu.Lock()
	var removedCount int
	for _, n := range dueNodes {
		if current, ok := m.nodes[n.ID]; ok {
			m.updateNodeState(current)

			if current.FailureCount >= maxFailuresBeforeRemoval {
				delete(m.nodes, current.ID)
				removedCount++
				l.Info().Str("node_id", current.ID).Int("failures", current.FailureCount).Msg("Node removed from pool due to excessive failures.")
			}
		}
	}
	m.mu.Unlock()

	// 在后台保存，避免阻塞调度器。
	go func() {
		if err := m.saveNodes(); err != nil {
			l.Error().Err(err).Msg("Failed to save nodes after check cycle.")
		}
	}()
	m.notifyChanged()
}

// updateNodeState 是动态间隔算法的核心实现。
// 注意：此函数必须在写锁 (m.mu.Lock) 保护下调用。
func (m *Manager) updateNodeState(n *model.NodeInfo) {
	now := time.Now()
	if n.Latency > 0 {
		successIndex := n.SuccessCount - 1
		if successIndex < 0 {
			successIndex = 0
		}
		if successIndex >= len(successIntervals) {
			successIndex = len(successIntervals) - 1
		}
		n.NextChecked = now.Add(successIntervals[successIndex])
	} else {
		failureIndex := n.FailureCount - 1
		if failureIndex < 0 {
			failureIndex = 0
		}
		if failureIndex >= len(failureIntervals) {
			failureIndex = len(failureIntervals) - 1
		}
		n.NextChecked = now.Add(failureIntervals[failureIndex])
	}
}

// loadNodes 从存储加载节点到内存。
func (m *Manager) loadNodes() error {
	nodes, err := m.storage.Load()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.nodes = nodes
	m.mu.Unlock()
	return nil
}

// saveNodes 将内存中的节点保存到存储。
func (m *Manager) saveNodes() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.storage.Save(m.nodes)
}

// loadProfiles 从 sources.json 加载源配置并构建源实例。
func (m *Manager) loadProfiles() error {
	profiles, err := config.LoadSources(m.sourcesPath)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.profiles = profiles
	m.mu.Unlock()
	m.rebuildSources()
	return nil
}

// rebuildSources 根据启用的配置档案重建源实例列表。
// 无法构建的档案记录警告后跳过。
func (m *Manager) rebuildSources() {
	l := logger.WithComponent("NodePool/Manager")
	opts := m.fetchOptions()

	m.mu.Lock()
	defer m.mu.Unlock()

	sources := make([]source.Source, 0, len(m.profiles))
	for _, p := range m.profiles {
		if !p.Enabled {
			continue
		}
		s, err := source.New(p, opts)
		if err != nil {
			l.Warn().Err(err).Str("source", p.Name).Msg("Skipping source profile.")
			continue
		}
		sources = append(sources, s)
	}
	m.sources = sources
	l.Info().Int("count", len(sources)).Msg("Sources rebuilt from profiles.")
}

// Stop 优雅地停止管理器的所有后台任务。
func (m *Manager) Stop() {
	close(m.stopChan)
	m.wg.Wait()
	if err := m.saveNodes(); err != nil {
		logger.Error().Err(err).Msg("Failed to save nodes on shutdown.")
	}
	logger.Info().Msg("NodePool Manager gracefully stopped.")
}

// TriggerRefresh 在后台启动一次立即刷新。
func (m *Manager) TriggerRefresh() {
	go m.RunRefreshCycle()
}

func (m *Manager) notifyChanged() {
	if m.notify != nil {
		m.notify()
	}
}

// GetNodes 返回池的快照，按来源和 ID 排序，保证视图稳定。
func (m *Manager) GetNodes() []*model.NodeInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := make([]*model.NodeInfo, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Source != nodes[j].Source {
			return nodes[i].Source < nodes[j].Source
		}
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// Stats 返回池与各源的统计快照。
func (m *Manager) Stats() *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sources := make([]*SourceStats, 0, len(m.sourceStats))
	for _, s := range m.sourceStats {
		copied := *s
		sources = append(sources, &copied)
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Name < sources[j].Name
	})

	return &Stats{
		TotalNodes:  len(m.nodes),
		LastRefresh: m.lastRefresh,
		Sources:     sources,
	}
}

// GetSourceProfiles 返回源配置的快照。
func (m *Manager) GetSourceProfiles() []*types.SourceProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profiles := make([]*types.SourceProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		copied := *p
		profiles = append(profiles, &copied)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})
	return profiles
}

// AddSourceProfile 新增一个源配置并持久化。ID 为空时生成 UUID。
func (m *Manager) AddSourceProfile(p *types.SourceProfile) error {
	if p.URL == "" {
		return fmt.Errorf("source url must not be empty")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	m.mu.Lock()
	for _, existing := range m.profiles {
		if existing.ID == p.ID {
			m.mu.Unlock()
			return fmt.Errorf("source profile %s already exists", p.ID)
		}
	}
	m.profiles = append(m.profiles, p)
	m.mu.Unlock()

	return m.persistAndRebuild()
}

// UpdateSourceProfile 替换指定 ID 的源配置并持久化。
func (m *Manager) UpdateSourceProfile(id string, updated *types.SourceProfile) error {
	m.mu.Lock()
	found := false
	for i, p := range m.profiles {
		if p.ID == id {
			updated.ID = id
			m.profiles[i] = updated
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		return fmt.Errorf("source profile %s not found", id)
	}
	return m.persistAndRebuild()
}

// DeleteSourceProfile 删除指定 ID 的源配置并持久化。
func (m *Manager) DeleteSourceProfile(id string) error {
	m.mu.Lock()
	found := false
	for i, p := range m.profiles {
		if p.ID == id {
			m.profiles = append(m.profiles[:i], m.profiles[i+1:]...)
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		return fmt.Errorf("source profile %s not found", id)
	}
	return m.persistAndRebuild()
}

func (m *Manager) persistAndRebuild() error {
	m.mu.RLock()
	profiles := make([]*types.SourceProfile, len(m.profiles))
	copy(profiles, m.profiles)
	m.mu.RUnlock()

	if err := config.SaveSources(m.sourcesPath, profiles); err != nil {
		return err
	}
	m.rebuildSources()
	return nil
}
