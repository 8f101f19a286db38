package clash

import "testing"

func TestScanSection_NoHeader(t *testing.T) {
	doc := "port: 7890\nmode: rule\n  - { name: a, type: ss, server: s, port: 1 }\n"
	if recs := scanSection(doc); len(recs) != 0 {
		t.Fatalf("records=%d, want=0", len(recs))
	}
}

func TestScanSection_HeaderLineNotEmitted(t *testing.T) {
	doc := "proxies:\n  - { name: a }\n"
	recs := scanSection(doc)
	if len(recs) != 1 {
		t.Fatalf("records=%d, want=1", len(recs))
	}
	if recs[0].body != " name: a " {
		t.Fatalf("body=%q", recs[0].body)
	}
	if recs[0].line != 2 {
		t.Fatalf("line=%d, want=2", recs[0].line)
	}
}

func TestScanSection_ExitOnTopLevelKey(t *testing.T) {
	doc := "proxies:\n" +
		"  - { name: a }\n" +
		"proxy-groups:\n" +
		"  - { name: b }\n"
	recs := scanSection(doc)
	if len(recs) != 1 {
		t.Fatalf("records=%d, want=1", len(recs))
	}
	if recs[0].body != " name: a " {
		t.Fatalf("body=%q", recs[0].body)
	}
}

// 退出后即使再出现列表项形状的行也不再收集。
func TestScanSection_NoResumeAfterExit(t *testing.T) {
	doc := "proxies:\n" +
		"  - { name: a }\n" +
		"rules:\n" +
		"  - { name: ghost }\n" +
		"  - DOMAIN,example.com,DIRECT\n"
	recs := scanSection(doc)
	if len(recs) != 1 {
		t.Fatalf("records=%d, want=1", len(recs))
	}
}

// 小节内的缩进键行（有前导空白）不会触发退出。
func TestScanSection_IndentedKeyDoesNotExit(t *testing.T) {
	doc := "proxies:\n" +
		"  note: ignored\n" +
		"  - { name: a }\n"
	recs := scanSection(doc)
	if len(recs) != 1 {
		t.Fatalf("records=%d, want=1", len(recs))
	}
}

func TestScanSection_SkipsCommentsBlanksAndMultiline(t *testing.T) {
	doc := "proxies:\n" +
		"  # comment\n" +
		"\n" +
		"  - name: multi\n" +
		"    type: ss\n" +
		"  - { name: a }\n"
	recs := scanSection(doc)
	if len(recs) != 1 {
		t.Fatalf("records=%d, want=1", len(recs))
	}
	if recs[0].line != 6 {
		t.Fatalf("line=%d, want=6", recs[0].line)
	}
}

// 无冒号且非列表项的行在小节内只是被跳过，不触发退出。
func TestScanSection_NoColonLineStaysInSection(t *testing.T) {
	doc := "proxies:\n" +
		"garbage without colon\n" +
		"  - { name: a }\n"
	recs := scanSection(doc)
	if len(recs) != 1 {
		t.Fatalf("records=%d, want=1", len(recs))
	}
}

// 记录体内不允许 '}'，不匹配的花括号行按非记录跳过。
func TestScanSection_BraceInBodyRejected(t *testing.T) {
	doc := "proxies:\n" +
		"  - { name: a } trailing\n" +
		"  - { name: {nested} }\n"
	if recs := scanSection(doc); len(recs) != 0 {
		t.Fatalf("records=%d, want=0", len(recs))
	}
}
