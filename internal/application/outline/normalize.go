// Package outline 将格式定义编译为可寻址的生成大纲
package outline

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// tocTitles 已知的目录/索引标题（规范化形式）
// 这些小节由 Word/GicaTesis 自行渲染，绝不能送往 AI 生成正文
var tocTitles = map[string]struct{}{
	"indice":                 {},
	"indice de contenido":    {},
	"indice de contenidos":   {},
	"indice de tablas":       {},
	"indice de figuras":      {},
	"indice de abreviaturas": {},
	"tabla de contenido":     {},
	"tabla de contenidos":    {},
	"table of contents":      {},
	"toc":                    {},
}

// NormalizeTitle 规范化标题用于忽略重音、大小写与空白的比较
// "ÍNDICE DE TABLAS" -> "indice de tablas"
func NormalizeTitle(value string) string {
	text := strings.ToLower(strings.TrimSpace(value))
	if text == "" {
		return ""
	}
	decomposed := norm.NFKD.String(text)
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// IsTOCTitle 判断标题是否为已知目录/索引标题
// 不做子串匹配："contenido" 本身返回 false，避免误伤真实章节
func IsTOCTitle(title string) bool {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return false
	}
	_, ok := tocTitles[normalized]
	return ok
}

// IsTOCPath 判断以 "/" 分隔的路径中是否有任一段为目录标题
// "ÍNDICE/I. PLANTEAMIENTO" -> true；"I. PLANTEAMIENTO/1.1 Problema" -> false
func IsTOCPath(path string) bool {
	for _, part := range strings.Split(path, "/") {
		if IsTOCTitle(part) {
			return true
		}
	}
	return false
}
