package clash

import (
	"encoding/json"
	"strconv"
)

// Kind 标识 Value 的具体类型。
type Kind uint8

const (
	KindString Kind = iota
	KindNumber
	KindBool
)

// Value 是记录属性值的封闭变体类型：字符串、数字或布尔值。
// 未知键的值也只会是这三种之一，"未知键原样透传"不依赖动态类型。
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

func StringValue(s string) Value  { return Value{kind: KindString, str: s} }
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind { return v.kind }

// Number 返回数值内容。第二个返回值表示类型是否匹配。
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Bool 返回布尔内容。第二个返回值表示类型是否匹配。
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Text 返回值的展示形式。数字按最短十进制形式格式化。
func (v Value) Text() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

// Truthy 报告值是否为"真值"：非空字符串、非零数字或 true。
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNumber:
		return v.num != 0
	case KindBool:
		return v.b
	default:
		return v.str != ""
	}
}

// MarshalJSON 按底层原始类型序列化。
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.str)
	}
}
