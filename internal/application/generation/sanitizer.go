// Package generation 实现文档生成编排
package generation

import (
	"regexp"
	"strings"

	"gicagen-api/internal/application/outline"
)

// SkipSectionToken 提供商用来表示"该小节渲染为空内容"的哨兵串
const SkipSectionToken = "<<SKIP_SECTION>>"

var (
	codeFenceRE   = regexp.MustCompile("```[\\s\\S]*?```")
	headingMarkRE = regexp.MustCompile(`(?m)^\s*#{1,6}\s*`)
	bulletRE      = regexp.MustCompile(`^\s*[-*+]\s+`)
	orderedRE     = regexp.MustCompile(`^\s*\d+[.)]\s+`)
	spaceRunRE    = regexp.MustCompile(`[ \t]+`)

	// 匹配目录残留："TÍTULO ..... 28"、"TÍTULO ... pag X"、
	// "TÍTULO          24"（多个空格后接页码）
	leaderPageRE = regexp.MustCompile(`(?i)(?:[.…]{3,}|[ \t]{4,})\s*(?:pag\.?\s*)?(?:\d+|X)\s*$`)
	pagSuffixRE  = regexp.MustCompile(`(?i)\s+pag\.?\s+(?:\d+|X)\s*$`)
)

// forbiddenPhrases 提示词明令禁止的占位措辞，出现即整行丢弃
var forbiddenPhrases = []string{
	"FIGURA DE EJEMPLO",
	"TABLA DE EJEMPLO",
	"TITULO DEL PROYECTO",
	"TÍTULO DEL PROYECTO",
	"LOREM IPSUM",
	"[PENDIENTE]",
}

// Sanitizer 生成结果清洗器
// 页码编号完全由 Word 域负责，AI 输出中的 Markdown 痕迹与目录残留必须剥离
type Sanitizer struct{}

// NewSanitizer 创建清洗器
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize 规范化单个小节的 AI 输出
//
// 跳过哨兵、索引类路径一律归一为空串，绝不让字面哨兵串进入最终文档
func (s *Sanitizer) Sanitize(content, path string) string {
	raw := strings.TrimSpace(content)
	if raw == "" || raw == SkipSectionToken {
		return ""
	}
	if outline.IsTOCPath(path) {
		return ""
	}

	// 去掉代码围栏与常见 Markdown 记号
	text := codeFenceRE.ReplaceAllString(content, " ")
	text = strings.ReplaceAll(text, "```", " ")
	text = headingMarkRE.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "|", " ")

	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		line = bulletRE.ReplaceAllString(line, "")
		line = orderedRE.ReplaceAllString(line, "")
		line = strings.TrimSpace(spaceRunRE.ReplaceAllString(line, " "))
		if hasForbiddenPhrase(line) {
			continue
		}
		line = StripLeaderPage(line)
		cleaned = append(cleaned, line)
	}

	return collapseBlankLines(cleaned)
}

// StripLeaderPage 去除行尾的点引导符与页码
// 整行都是页码模式时返回空串
func StripLeaderPage(line string) string {
	cleaned := leaderPageRE.ReplaceAllString(line, "")
	cleaned = pagSuffixRE.ReplaceAllString(cleaned, "")
	return strings.TrimRight(cleaned, " \t")
}

// HasLeaderPagePattern 判断文本中是否含点引导符+页码残留
func HasLeaderPagePattern(text string) bool {
	if text == "" {
		return false
	}
	for _, line := range strings.Split(text, "\n") {
		if leaderPageRE.MatchString(line) || pagSuffixRE.MatchString(line) {
			return true
		}
	}
	return false
}

// hasForbiddenPhrase 判断行内是否出现被禁止的占位措辞
func hasForbiddenPhrase(line string) bool {
	upper := strings.ToUpper(line)
	for _, phrase := range forbiddenPhrases {
		if strings.Contains(upper, strings.ToUpper(phrase)) {
			return true
		}
	}
	return false
}

// collapseBlankLines 折叠连续空行并去除首尾空行
func collapseBlankLines(lines []string) string {
	var out []string
	prevBlank := false
	for _, line := range lines {
		blank := strings.TrimSpace(line) == ""
		if blank {
			if prevBlank {
				continue
			}
			prevBlank = true
		} else {
			prevBlank = false
		}
		out = append(out, line)
	}
	for len(out) > 0 && strings.TrimSpace(out[0]) == "" {
		out = out[1:]
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
