package web

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"subpool/internal/clash"
	"subpool/nodepool/model"
)

// exportClashDocument 把节点列表渲染成一份只含 proxies 小节的
// Clash 文档，每条记录保持单行 flow-mapping 形式和原有键顺序。
// 渲染走 yaml 库；解析方向仍是手写扫描器，两者互不依赖。
func exportClashDocument(nodes []*model.NodeInfo) ([]byte, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, n := range nodes {
		seq.Content = append(seq.Content, recordNode(n.Record))
	}

	root := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "proxies"},
			seq,
		},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func recordNode(rec clash.Node) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
	for _, key := range rec.Props.Keys() {
		v, _ := rec.Props.Get(key)
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			valueNode(v),
		)
	}
	return m
}

func valueNode(v clash.Value) *yaml.Node {
	switch v.Kind() {
	case clash.KindNumber:
		// 整数按 !!int 渲染，读回去的类型才一致。
		tag := "!!float"
		if f, _ := v.Number(); f == float64(int64(f)) {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.Text()}
	case clash.KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v.Text()}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Text()}
	}
}
