package clash

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Props 是一条记录解析后的有序属性表。
// 键保持文档中首次出现的顺序；重复键后写覆盖先写，位置不变。
type Props struct {
	keys   []string
	values map[string]Value
}

func NewProps() *Props { return &Props{} }

// Set 写入一个属性。已存在的键只更新值，不改变其顺序。
func (p *Props) Set(key string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

func (p *Props) Get(key string) (Value, bool) {
	if p == nil || p.values == nil {
		return Value{}, false
	}
	v, ok := p.values[key]
	return v, ok
}

func (p *Props) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

func (p *Props) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys 按插入顺序返回所有键的副本。
func (p *Props) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// MarshalJSON 输出保持键顺序的 JSON 对象。
func (p *Props) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(p.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 从 JSON 对象恢复属性表。只接受三种标量类型，
// 嵌套结构视为数据损坏。
func (p *Props) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("props: expected JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("props: invalid key token %v", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		switch v := valTok.(type) {
		case string:
			p.Set(key, StringValue(v))
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return err
			}
			p.Set(key, NumberValue(f))
		case bool:
			p.Set(key, BoolValue(v))
		case nil:
			p.Set(key, StringValue(""))
		default:
			return fmt.Errorf("props: unsupported value for key %q", key)
		}
	}

	_, err = dec.Token() // 收尾的 '}'
	return err
}
