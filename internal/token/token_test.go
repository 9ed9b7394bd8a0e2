package token

import (
	"strings"
	"testing"
)

func TestToken_Deterministic(t *testing.T) {
	a := Token("feat-1", "geomdata")
	b := Token("feat-1", "geomdata")
	if a != b {
		t.Fatalf("相同输入必须得到相同 token：%q vs %q", a, b)
	}
	if len(a) != 12 {
		t.Fatalf("token 必须是 12 位，实际 %d（%q）", len(a), a)
	}
	for _, r := range a {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("token 必须是小写十六进制，实际 %q", a)
		}
	}
}

func TestToken_DescriptorSensitive(t *testing.T) {
	if Token("feat-1", "geomdata") == Token("feat-1", "geomdataX") {
		t.Fatalf("不同 descriptor 不应得到相同 token")
	}
	if Token("feat-1", "geomdata") == Token("feat-2", "geomdata") {
		t.Fatalf("不同 identity 不应得到相同 token")
	}
}

func TestToken_DescriptorTruncatedAt256(t *testing.T) {
	long := strings.Repeat("x", 300)
	if Token("f", long) != Token("f", long[:256]) {
		t.Fatalf("descriptor 超过 256 字符的部分不应参与摘要")
	}
	if Token("f", strings.Repeat("x", 256)) == Token("f", strings.Repeat("x", 255)) {
		t.Fatalf("第 256 个字符必须参与摘要")
	}
}

func TestToken_InvalidUTF8Dropped(t *testing.T) {
	// 非法字节被丢弃后等价于没有它们；不得 panic、不得报错。
	if Token("f", "abc\xff\xfedef") != Token("f", "abcdef") {
		t.Fatalf("非法 UTF-8 字节应被丢弃而不是参与摘要")
	}
}

func TestTag(t *testing.T) {
	if got := Tag("abc123"); got != "[EXT:abc123]" {
		t.Fatalf("期望 [EXT:abc123]，实际 %q", got)
	}
	if got := Tag(""); got != "" {
		t.Fatalf("空 token 的 Tag 必须为空，实际 %q", got)
	}
}
