// Package entity 定义领域实体
package entity

// NodeKind 大纲节点分类（标签化变体）
// 在一次树遍历中对每个节点只判定一次，替代散落的字符串匹配
type NodeKind string

const (
	NodeKindChapter           NodeKind = "chapter"
	NodeKindSubchapter        NodeKind = "subchapter"
	NodeKindAppendix          NodeKind = "appendix"
	NodeKindAbbreviations     NodeKind = "abbreviations"
	NodeKindIndexPlaceholder  NodeKind = "index_placeholder"
	NodeKindFigurePlaceholder NodeKind = "figure_placeholder"
)

// IsGenerative 判断该类节点是否需要生成正文
// 占位类节点（目录、图表索引）只参与版面渲染，不产出文本
func (k NodeKind) IsGenerative() bool {
	switch k {
	case NodeKindIndexPlaceholder, NodeKindFigurePlaceholder:
		return false
	}
	return true
}

// SectionIndexEntry 编译后大纲中的一个可寻址小节
// 每次编译都基于 FormatDefinition 重新产出，不独立持久化；
// 相同输入必须产出相同的 id 与顺序
type SectionIndexEntry struct {
	SectionID string   `json:"section_id"`
	Path      string   `json:"path"`
	Title     string   `json:"title"`
	Kind      NodeKind `json:"kind"`
	Level     int      `json:"level"`
	Hints     []string `json:"hints,omitempty"`
}
