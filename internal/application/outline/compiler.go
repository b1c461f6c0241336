// Package outline 将格式定义编译为可寻址的生成大纲
package outline

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"gicagen-api/internal/domain/entity"
)

// excludedKeys 指导性/元数据键，不出现在最终文档中
var excludedKeys = map[string]struct{}{
	"nota":                  {},
	"nota_capitulo":         {},
	"instruccion":           {},
	"instruccion_detallada": {},
	"guia":                  {},
	"ejemplo":               {},
	"comentario":            {},
	"placeholder":           {},
	"tipo_vista":            {},
	"vista_previa":          {},
	"version":               {},
	"descripcion":           {},
	"numeracion":            {},
	"niveles":               {},
	"fuente":                {},
	"margenes":              {},
	"interlineado":          {},
}

// titleKeys 标题键，按固定优先级提取
var titleKeys = []string{"titulo", "title", "titulo_seccion", "texto"}

var titleKeySet = map[string]struct{}{
	"titulo": {}, "title": {}, "titulo_seccion": {}, "texto": {},
}

// containerKeys 结构容器键，进入后视为真实章节层级（有序遍历）
var containerKeys = map[string]struct{}{
	"preliminares": {},
	"cuerpo":       {},
	"finales":      {},
	"capitulos":    {},
	"contenido":    {},
	"items":        {},
	"secciones":    {},
	"subsecciones": {},
	"lista":        {},
	"anexos":       {},
	"indices":      {},
}

// appendixKeys 附录容器键
var appendixKeys = map[string]struct{}{
	"anexos":    {},
	"apendices": {},
}

// indexBranchKeys 目录/索引分支键，整棵子树不参与生成
var indexBranchKeys = map[string]struct{}{
	"indices":            {},
	"indice":             {},
	"indice_de_tablas":   {},
	"indice_de_figuras":  {},
	"tabla_de_contenido": {},
	"toc":                {},
}

// figureBranchKeys 图表/媒体占位分支键，仅参与版面渲染
var figureBranchKeys = map[string]struct{}{
	"tabla":    {},
	"tablas":   {},
	"figura":   {},
	"figuras":  {},
	"imagen":   {},
	"imagenes": {},
	"grafico":  {},
}

// abbreviationTitles 独立缩略语表标题（规范化形式）
// 独立词汇表需要生成正文；嵌在索引容器里的缩略语目录则不需要
var abbreviationTitles = map[string]struct{}{
	"abreviaturas":          {},
	"lista de abreviaturas": {},
	"glosario":              {},
	"glosario de terminos":  {},
}

// Compiler 大纲编译器
// 将嵌套的 FormatDefinition 压平为有序、可寻址的生成小节列表；
// 相同输入必须产出相同的 id 与顺序（确定性）
type Compiler struct{}

// NewCompiler 创建大纲编译器
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile 编译格式定义
//
// 输入必须是 JSON 对象树；顶层不是对象（包括已编译过的平面列表）时
// 返回空列表而不是报错。畸形节点一律跳过，保持尽力而为的语义
func (c *Compiler) Compile(definition []byte) []entity.SectionIndexEntry {
	parsed := gjson.ParseBytes(definition)
	if !parsed.IsObject() {
		return []entity.SectionIndexEntry{}
	}
	out := make([]entity.SectionIndexEntry, 0, 16)
	c.walk(parsed, &out, nil, 1, false, nil)
	return out
}

// walk 深度优先遍历定义树，按文档顺序产出小节条目
func (c *Compiler) walk(node gjson.Result, out *[]entity.SectionIndexEntry, pathStack []string, level int, inStructure bool, ancestors []string) {
	if node.IsArray() {
		node.ForEach(func(_, item gjson.Result) bool {
			c.walk(item, out, pathStack, level, inStructure, ancestors)
			return true
		})
		return
	}
	if !node.IsObject() {
		return
	}

	title := ""
	if inStructure {
		title = extractTitle(node)
	}

	nextStack := pathStack
	nextLevel := level

	if title != "" {
		kind := ClassifyNode(title, ancestors, level)
		if kind.IsGenerative() {
			nextStack = appendPath(pathStack, title)
			entry := entity.SectionIndexEntry{
				SectionID: fmt.Sprintf("sec-%04d", len(*out)+1),
				Path:      strings.Join(nextStack, "/"),
				Title:     title,
				Kind:      kind,
				Level:     clampLevel(level),
				Hints:     collectHints(node),
			}
			*out = append(*out, entry)
			nextLevel = min(level+1, 6)
		}
		// 被跳过的标题不改变栈层级，子节点沿用父路径
	}

	node.ForEach(func(key, value gjson.Result) bool {
		keyLower := strings.ToLower(key.String())

		if isExcludedKey(keyLower) {
			return true
		}
		if _, ok := titleKeySet[keyLower]; ok {
			return true
		}
		// 非生成分支（目录、媒体占位）整棵子树跳过
		if _, ok := indexBranchKeys[keyLower]; ok {
			return true
		}
		if _, ok := figureBranchKeys[keyLower]; ok {
			return true
		}

		_, isContainer := containerKeys[keyLower]
		childInStructure := inStructure || isContainer
		childAncestors := append(append([]string(nil), ancestors...), keyLower)

		switch {
		case value.IsObject() || value.IsArray():
			childLevel := level
			if childInStructure {
				childLevel = nextLevel
			}
			c.walk(value, out, nextStack, childLevel, childInStructure, childAncestors)
		case childInStructure && value.Type == gjson.String && strings.TrimSpace(value.String()) != "":
			// 结构容器下的字符串叶子视为一个小节（键为地址，值为标题）
			leafTitle := strings.TrimSpace(value.String())
			kind := ClassifyNode(leafTitle, childAncestors, nextLevel)
			if kind.IsGenerative() {
				leafStack := appendPath(nextStack, leafTitle)
				*out = append(*out, entity.SectionIndexEntry{
					SectionID: fmt.Sprintf("sec-%04d", len(*out)+1),
					Path:      strings.Join(leafStack, "/"),
					Title:     leafTitle,
					Kind:      kind,
					Level:     clampLevel(nextLevel),
				})
			}
		}
		return true
	})
}

// ClassifyNode 对节点做一次性的标签化分类
// 分类只依赖标题、祖先键与层级，是排除规则的唯一判定点
func ClassifyNode(title string, ancestors []string, level int) entity.NodeKind {
	for _, key := range ancestors {
		if _, ok := figureBranchKeys[key]; ok {
			return entity.NodeKindFigurePlaceholder
		}
	}
	for _, key := range ancestors {
		if _, ok := indexBranchKeys[key]; ok {
			return entity.NodeKindIndexPlaceholder
		}
	}

	normalized := NormalizeTitle(title)
	if _, ok := tocTitles[normalized]; ok {
		return entity.NodeKindIndexPlaceholder
	}
	// 自动生成的媒体行（"Tabla 3: ..."、"Figura 1: ..."）也是占位
	if strings.HasPrefix(normalized, "tabla ") || strings.HasPrefix(normalized, "figura ") {
		return entity.NodeKindFigurePlaceholder
	}
	if _, ok := abbreviationTitles[normalized]; ok {
		return entity.NodeKindAbbreviations
	}
	for _, key := range ancestors {
		if _, ok := appendixKeys[key]; ok {
			return entity.NodeKindAppendix
		}
	}
	if level <= 2 {
		return entity.NodeKindChapter
	}
	return entity.NodeKindSubchapter
}

// extractTitle 按固定优先级提取节点标题
func extractTitle(node gjson.Result) string {
	for _, key := range titleKeys {
		val := node.Get(key)
		if val.Type == gjson.String {
			if text := strings.TrimSpace(val.String()); text != "" {
				return text
			}
		}
	}
	return ""
}

// collectHints 收集指导性字段，供 AI 生成时使用（不进入最终文档）
func collectHints(node gjson.Result) []string {
	var hints []string
	for _, key := range []string{"instruccion_detallada", "nota", "nota_capitulo"} {
		val := node.Get(key)
		if val.Type == gjson.String {
			if text := strings.TrimSpace(val.String()); text != "" {
				hints = append(hints, text)
			}
		}
	}
	return hints
}

// isExcludedKey 判断键是否被排除（元数据或下划线前缀）
func isExcludedKey(keyLower string) bool {
	if strings.HasPrefix(keyLower, "_") {
		return true
	}
	_, ok := excludedKeys[keyLower]
	return ok
}

// appendPath 复制并追加路径栈，避免共享底层数组
func appendPath(stack []string, segment string) []string {
	next := make([]string, 0, len(stack)+1)
	next = append(next, stack...)
	return append(next, segment)
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}
