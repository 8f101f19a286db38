package checker

import (
	"net"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"subpool/internal/shared/logger"
	"subpool/nodepool/model"
)

// 连通性探测的目标。只做 TCP 层可达性判断，不做协议握手。
const probeTarget = "www.gstatic.com:80"

// Checker 并发地对节点做可达性检查并更新其健康计数。
// ss/vmess/vless 这类节点只能做到 TCP 可达；socks5 节点
// 额外通过 SOCKS 握手验证。
type Checker struct {
	timeout     time.Duration
	concurrency int
}

func New(timeout time.Duration, concurrency int) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Checker{timeout: timeout, concurrency: concurrency}
}

// Check 对一批节点执行检查，原地更新状态并返回同一批节点。
func (c *Checker) Check(nodes []*model.NodeInfo) []*model.NodeInfo {
	l := logger.WithComponent("NodePool/Checker")
	if len(nodes) == 0 {
		return nodes
	}

	l.Info().Int("count", len(nodes)).Int("concurrency", c.concurrency).Msg("Starting check batch...")

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.concurrency)

	for _, n := range nodes {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(node *model.NodeInfo) {
			defer wg.Done()
			defer func() { <-semaphore }()
			c.checkSingleNode(node)
		}(n)
	}

	wg.Wait()
	l.Info().Msg("Check batch finished.")
	return nodes
}

func (c *Checker) checkSingleNode(n *model.NodeInfo) {
	startTime := time.Now()
	addr := net.JoinHostPort(n.Record.Server(), n.Record.PortText())

	var err error
	switch n.Record.TypeName() {
	case "socks5":
		err = c.checkSocks5(addr, n)
	default:
		err = c.checkTCP(addr)
	}

	n.LastChecked = time.Now()
	if err != nil {
		n.Latency = 0
		n.FailureCount++
		n.SuccessCount = 0
		lg := logger.WithComponent("NodePool/Checker")
		lg.Debug().Err(err).Str("node", n.ID).Msg("Node check failed.")
		return
	}
	n.Latency = time.Since(startTime)
	n.SuccessCount++
	n.FailureCount = 0
}

// checkTCP 只验证节点入口端口可达。
func (c *Checker) checkTCP(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// checkSocks5 通过节点做一次完整的 SOCKS5 握手加目标拨号。
func (c *Checker) checkSocks5(addr string, n *model.NodeInfo) error {
	var auth *proxy.Auth
	if user, ok := n.Record.Props.Get("username"); ok {
		pass, _ := n.Record.Props.Get("password")
		auth = &proxy.Auth{User: user.Text(), Password: pass.Text()}
	}

	dialer, err := proxy.SOCKS5("tcp", addr, auth, &net.Dialer{Timeout: c.timeout})
	if err != nil {
		return err
	}

	conn, err := dialer.Dial("tcp", probeTarget)
	if err != nil {
		return err
	}
	return conn.Close()
}
