package nodepool

import (
	"context"
	"errors"
	"testing"

	"subpool/internal/clash"
	"subpool/internal/shared/types"
	"subpool/nodepool/model"
	"subpool/nodepool/source"
)

// stubSource implements source.Source for testing.
type stubSource struct {
	name  string
	res   *source.Result
	err   error
	calls int
}

func (s *stubSource) Fetch(ctx context.Context) (*source.Result, error) {
	s.calls++
	return s.res, s.err
}

func (s *stubSource) Name() string { return s.name }

// memStorage implements storage.Storage in memory.
type memStorage struct {
	saved map[string]*model.NodeInfo
}

func (ms *memStorage) Load() (map[string]*model.NodeInfo, error) {
	return make(map[string]*model.NodeInfo), nil
}

func (ms *memStorage) Save(nodes map[string]*model.NodeInfo) error {
	ms.saved = make(map[string]*model.NodeInfo, len(nodes))
	for id, n := range nodes {
		ms.saved[id] = n
	}
	return nil
}

func nodesFrom(t *testing.T, doc, sourceName string) []*model.NodeInfo {
	t.Helper()
	res := clash.Extract(doc)
	out := make([]*model.NodeInfo, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		out = append(out, model.New(n, sourceName))
	}
	return out
}

func newTestManager(t *testing.T, st *memStorage) *Manager {
	t.Helper()
	return NewManager(&types.Config{}, t.TempDir()+"/sources.json", st, nil)
}

func TestRunRefreshCycle_MergesAndSaves(t *testing.T) {
	st := &memStorage{}
	m := newTestManager(t, st)

	doc := "proxies:\n" +
		"  - { name: a, type: ss, server: 1.1.1.1, port: 1 }\n" +
		"  - { name: b, type: ss, server: 2.2.2.2, port: 2 }\n"
	m.SetSources([]source.Source{
		&stubSource{name: "s1", res: &source.Result{Nodes: nodesFrom(t, doc, "s1")}},
	})

	notified := 0
	m.SetNotify(func() { notified++ })

	m.RunRefreshCycle()

	nodes := m.GetNodes()
	if len(nodes) != 2 {
		t.Fatalf("nodes=%d, want=2", len(nodes))
	}
	if len(st.saved) != 2 {
		t.Fatalf("saved=%d, want=2", len(st.saved))
	}
	if notified != 1 {
		t.Fatalf("notified=%d, want=1", notified)
	}
	// 排序后的快照稳定。
	if nodes[0].ID > nodes[1].ID {
		t.Fatalf("snapshot not sorted: %s > %s", nodes[0].ID, nodes[1].ID)
	}

	stats := m.Stats()
	if stats.TotalNodes != 2 || len(stats.Sources) != 1 {
		t.Fatalf("stats=%+v", stats)
	}
	if stats.Sources[0].Nodes != 2 || stats.Sources[0].LastError != "" {
		t.Fatalf("source stats=%+v", stats.Sources[0])
	}
}

// 已知节点再次出现时保留健康计数，只更新记录内容。
func TestRunRefreshCycle_KeepsCountersOnRefresh(t *testing.T) {
	st := &memStorage{}
	m := newTestManager(t, st)

	doc := "proxies:\n  - { name: a, type: ss, server: 1.1.1.1, port: 1 }\n"
	src := &stubSource{name: "s1", res: &source.Result{Nodes: nodesFrom(t, doc, "s1")}}
	m.SetSources([]source.Source{src})

	m.RunRefreshCycle()
	m.GetNodes()[0].SuccessCount = 5

	// 同一节点带了新属性再次出现。
	doc2 := "proxies:\n  - { name: a, type: ss, server: 1.1.1.1, port: 1, udp: true }\n"
	src.res = &source.Result{Nodes: nodesFrom(t, doc2, "s1")}
	m.RunRefreshCycle()

	nodes := m.GetNodes()
	if len(nodes) != 1 {
		t.Fatalf("nodes=%d, want=1", len(nodes))
	}
	if nodes[0].SuccessCount != 5 {
		t.Fatalf("success count reset: %d", nodes[0].SuccessCount)
	}
	if v, ok := nodes[0].Record.Props.Get("udp"); !ok {
		t.Fatal("refreshed record missing new key")
	} else if b, _ := v.Bool(); !b {
		t.Fatalf("udp=%v", v)
	}
}

// 单个源失败只体现在它的统计里，不影响其他源入池。
func TestRunRefreshCycle_SourceFailureIsIsolated(t *testing.T) {
	st := &memStorage{}
	m := newTestManager(t, st)

	doc := "proxies:\n  - { name: a, type: ss, server: 1.1.1.1, port: 1 }\n"
	m.SetSources([]source.Source{
		&stubSource{name: "bad", err: errors.New("connection refused")},
		&stubSource{name: "good", res: &source.Result{Nodes: nodesFrom(t, doc, "good")}},
	})

	m.RunRefreshCycle()

	if nodes := m.GetNodes(); len(nodes) != 1 {
		t.Fatalf("nodes=%d, want=1", len(nodes))
	}
	stats := m.Stats()
	if len(stats.Sources) != 2 {
		t.Fatalf("sources=%d, want=2", len(stats.Sources))
	}
	for _, s := range stats.Sources {
		switch s.Name {
		case "bad":
			if s.LastError == "" {
				t.Fatal("bad source should record an error")
			}
		case "good":
			if s.Nodes != 1 || s.LastError != "" {
				t.Fatalf("good source stats=%+v", s)
			}
		}
	}
}

func TestSourceProfileCRUD(t *testing.T) {
	st := &memStorage{}
	m := newTestManager(t, st)

	p := &types.SourceProfile{Name: "mysub", Type: types.SourceSubscription, URL: "https://example.com/sub.yaml", Enabled: true}
	if err := m.AddSourceProfile(p); err != nil {
		t.Fatalf("add: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected generated ID")
	}

	profiles := m.GetSourceProfiles()
	if len(profiles) != 1 || profiles[0].Name != "mysub" {
		t.Fatalf("profiles=%+v", profiles)
	}

	updated := &types.SourceProfile{Name: "renamed", Type: types.SourceSubscription, URL: p.URL, Enabled: false}
	if err := m.UpdateSourceProfile(p.ID, updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := m.GetSourceProfiles()[0]; got.Name != "renamed" || got.ID != p.ID {
		t.Fatalf("after update: %+v", got)
	}

	if err := m.DeleteSourceProfile(p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(m.GetSourceProfiles()) != 0 {
		t.Fatal("profile not deleted")
	}
	if err := m.DeleteSourceProfile(p.ID); err == nil {
		t.Fatal("expected error deleting missing profile")
	}
}
