package clash

import (
	"regexp"
	"strings"
)

// 识别的节点小节头。扫描器只支持这一个字面量。
const sectionHeader = "proxies:"

// 单行 flow-mapping 记录：列表项标记后跟一对花括号，
// 记录体内不允许出现 '}'。
var recordPattern = regexp.MustCompile(`^-\s*\{([^}]*)\}$`)

// rawRecord 是扫描阶段识别出的一条候选记录。
type rawRecord struct {
	body string // 花括号内的原文，交给提取器
	src  string // 裁剪后的原始行，用于诊断
	line int    // 1-based 行号
}

// scanSection 逐行走一遍文档，返回 proxies 小节内的单行记录。
//
// 小节退出判断是刻意近似的：无缩进、含冒号、既非注释也非列表项的
// 非空行视为新顶层键。漏判（未能退出）是已知限制，为兼容真实输入
// 必须保持这个行为，不做结构化解析。
func scanSection(document string) []rawRecord {
	var records []rawRecord
	inSection := false

	for i, raw := range strings.Split(document, "\n") {
		line := strings.TrimSpace(raw)

		if !inSection {
			// 小节头本身不作为数据输出。
			if line == sectionHeader {
				inSection = true
			}
			continue
		}

		if isTopLevelKey(line, raw) {
			inSection = false
			continue
		}

		if m := recordPattern.FindStringSubmatch(line); m != nil {
			records = append(records, rawRecord{body: m[1], src: line, line: i + 1})
		}
		// 其余行（空行、注释、多行记录的起始等）静默跳过，不算错误。
	}
	return records
}

// isTopLevelKey 判断一行是否像新顶层小节的开始。line 是裁剪后的行，
// raw 是原始行（缩进判断需要原文）。
func isTopLevelKey(line, raw string) bool {
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
		return false
	}
	if !strings.Contains(line, ":") {
		return false
	}
	return len(raw) > 0 && raw[0] != ' ' && raw[0] != '\t'
}
