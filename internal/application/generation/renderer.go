// Package generation 实现文档生成编排
package generation

import (
	"regexp"
	"strings"
)

// placeholderRE 匹配 {{variable_name}}，大括号内允许空白
var placeholderRE = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// systemPrompt 小节生成的系统提示词
// 输出规则面向 Word/PDF 装配：纯文本、无 Markdown、索引类小节回复跳过哨兵
const systemPrompt = "Eres un redactor academico profesional en espanol. " +
	"Vas a escribir SOLO el contenido de UNA seccion de un documento de tesis.\n" +
	"IMPORTANTE: El formato (titulos, caratula, estilos, saltos de pagina, indices) " +
	"lo maneja el Word/PDF. Tu NO debes formatear.\n" +
	"\n" +
	"DATOS DEL PROYECTO:\n" +
	"- Titulo: {{title}}\n" +
	"- Tema: {{tema}}\n" +
	"- Objetivo general: {{objetivo_general}}\n" +
	"- Poblacion: {{poblacion}}\n" +
	"- Variable independiente: {{variable_independiente}}\n" +
	"\n" +
	"SECCION A REDACTAR:\n" +
	"- Nombre/Ruta de la seccion: {section_path}\n" +
	"- Identificador interno: {section_id}\n" +
	"\n" +
	"REGLAS OBLIGATORIAS (si no cumples, la salida se considera incorrecta):\n" +
	"1) Devuelve SOLO texto plano. NO uses Markdown " +
	"(NO **negritas**, NO ###, NO listas con guiones, NO tablas con |).\n" +
	"2) NO escribas el titulo de la seccion. El titulo ya lo pone el formato. " +
	"Empieza directo con el contenido.\n" +
	"3) NO pongas saltos de pagina ni caracteres raros. " +
	"No uses ---, ***, ni \\f. No empieces con lineas en blanco.\n" +
	"4) Parrafos: usa parrafos normales separados por UNA linea en blanco.\n" +
	"5) Prohibido inventar INDICES en texto.\n" +
	"6) Si la seccion es de indice (INDICE, INDICE DE TABLAS, INDICE DE FIGURAS, " +
	"INDICE DE ABREVIATURAS o cualquier ruta que empiece por INDICE/), " +
	"responde EXACTAMENTE: <<SKIP_SECTION>>.\n" +
	"7) No uses placeholders como FIGURA DE EJEMPLO, TABLA DE EJEMPLO, XXX, " +
	"[pendiente], lorem ipsum, TÍTULO DEL PROYECTO.\n" +
	"8) Manten tono academico. Incluye conectores y evita relleno.\n" +
	"9) Minimo: 180-250 palabras si es seccion de contenido.\n" +
	"10) Usa maximo una linea en blanco entre parrafos.\n" +
	"\n" +
	"Ahora redacta la seccion {section_path} cumpliendo TODO.\n"

// Renderer 提示词模板渲染器
type Renderer struct{}

// NewRenderer 创建渲染器
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render 用 values 替换模板中的 {{variable}} 占位符
//
// 缺失的变量原样保留（例如 "{{missing}}"）并一并返回，
// 让生成流程对不完整的输入保持韧性而不是中断
func (r *Renderer) Render(template string, values map[string]string) (string, []string) {
	if template == "" {
		return "", nil
	}

	var missing []string
	result := placeholderRE.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderRE.FindStringSubmatch(match)[1]
		if val, ok := values[key]; ok && val != "" {
			return val
		}
		missing = append(missing, key)
		return match
	})

	return result, missing
}

// BuildSectionPrompt 为单个小节构造完整提示词
func (r *Renderer) BuildSectionPrompt(basePrompt, sectionPath, sectionID, extraContext string, values map[string]string) string {
	rendered, _ := r.Render(systemPrompt, values)
	rendered = strings.ReplaceAll(rendered, "{section_path}", sectionPath)
	rendered = strings.ReplaceAll(rendered, "{section_id}", sectionID)

	parts := []string{rendered}

	if base := strings.TrimSpace(basePrompt); base != "" {
		parts = append(parts, "", "CONTEXTO ADICIONAL DEL PROYECTO:", base)
	}
	if extraContext != "" {
		parts = append(parts, "", "Contexto adicional de la seccion: "+extraContext)
	}

	return strings.Join(parts, "\n")
}
