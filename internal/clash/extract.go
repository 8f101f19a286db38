package clash

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Node 是一条通过校验的代理节点记录。除四个必填字段外，
// 其余属性原样保留在 Props 中。
type Node struct {
	Props *Props
}

func (n Node) Name() string     { return n.text("name") }
func (n Node) TypeName() string { return n.text("type") }
func (n Node) Server() string   { return n.text("server") }

// Port 返回 port 属性。归一规则允许它是数字、字符串或布尔值。
func (n Node) Port() Value {
	v, _ := n.Props.Get("port")
	return v
}

// PortText 返回 port 的展示形式，数字按最短十进制格式化。
func (n Node) PortText() string { return n.Port().Text() }

func (n Node) text(key string) string {
	v, _ := n.Props.Get(key)
	return v.Text()
}

func (n Node) MarshalJSON() ([]byte, error) { return json.Marshal(n.Props) }

func (n *Node) UnmarshalJSON(data []byte) error {
	n.Props = NewProps()
	return json.Unmarshal(data, n.Props)
}

// Dropped 记录一条因缺少必填字段而被丢弃的记录，供调用方诊断。
// 丢弃不是致命错误，提取会继续处理后续行。
type Dropped struct {
	Line  int    `json:"line"`
	Src   string `json:"src"`
	Props *Props `json:"props"`
}

// Result 是一次提取的全部产出。Nodes 保持文档中的出现顺序。
type Result struct {
	Nodes   []Node
	Dropped []Dropped
}

// Extract 从完整的订阅文档文本中提取代理节点记录。
// 文档如何获得与本函数无关；一次调用不共享任何状态，可并发使用。
func Extract(document string) Result {
	var res Result
	for _, rec := range scanSection(document) {
		props := parseBody(rec.body)
		if node, ok := buildNode(props); ok {
			res.Nodes = append(res.Nodes, node)
		} else {
			res.Dropped = append(res.Dropped, Dropped{Line: rec.line, Src: rec.src, Props: props})
		}
	}
	return res
}

// parseBody 把记录体切成键值对并做类型归一。
func parseBody(body string) *Props {
	props := NewProps()
	for _, seg := range splitPairs(body) {
		// 只在第一个冒号处分割，URL 这类值里的后续冒号归入值。
		key, raw, ok := strings.Cut(seg, ":")
		if !ok {
			// 找不到键值分割点的段：畸形键值对，静默丢弃。
			continue
		}
		val := stripQuotes(strings.TrimSpace(raw))
		props.Set(strings.TrimSpace(key), coerce(strings.TrimSpace(key), val))
	}
	return props
}

// splitPairs 按逗号切分记录体；位于未闭合单/双引号内的逗号不是分隔符。
// 用显式状态扫描而不是带回溯的模式匹配，杜绝恶意输入上的灾难性回溯。
func splitPairs(body string) []string {
	var segs []string
	var quote byte // 0 表示不在引号内
	start := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ',':
			segs = append(segs, body[start:i])
			start = i + 1
		}
	}
	return append(segs, body[start:])
}

// stripQuotes 剥掉恰好一层成对的引号；不解码内部转义序列。
func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// coerce 对去引号后的值做类型归一。优先级是行为兼容的一部分：
// port 先按数字解析，失败后照常落入布尔/字符串判断，
// 所以 port: "true" 会得到布尔值而不是数字解析错误。
func coerce(key, val string) Value {
	if key == "port" {
		if n, err := strconv.ParseFloat(val, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
			return NumberValue(n)
		}
	}
	switch val {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	return StringValue(val)
}

// buildNode 做必填字段校验。name/type/server 要求真值，
// port 只要求已定义：数字 0 可接受，空字符串不算。
func buildNode(props *Props) (Node, bool) {
	for _, key := range [...]string{"name", "type", "server"} {
		v, ok := props.Get(key)
		if !ok || !v.Truthy() {
			return Node{}, false
		}
	}
	port, ok := props.Get("port")
	if !ok {
		return Node{}, false
	}
	if port.Kind() == KindString && port.Text() == "" {
		return Node{}, false
	}
	return Node{Props: props}, true
}
