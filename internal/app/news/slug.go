package news

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify "Café Déjà Vu!" -> "cafe-deja-vu"；结果为空时返回 "untitled"
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	return out
}

// SuffixedSlug 文章 slug 带上 uuid 前 8 位避免冲突，更新标题时沿用原 uuid
func SuffixedSlug(title, uuid string) string {
	suffix := strings.ReplaceAll(uuid, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return Slugify(title) + "-" + suffix
}
