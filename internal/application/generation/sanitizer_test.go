package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizer_Sanitize_SkipToken(t *testing.T) {
	s := NewSanitizer()

	assert.Equal(t, "", s.Sanitize(SkipSectionToken, "Cuerpo/Capítulo I"))
	assert.Equal(t, "", s.Sanitize("  "+SkipSectionToken+"  ", "Cuerpo/Capítulo I"))
	assert.Equal(t, "", s.Sanitize("", "Cuerpo/Capítulo I"))
	assert.Equal(t, "", s.Sanitize("   \n\t", "Cuerpo/Capítulo I"))
}

func TestSanitizer_Sanitize_TOCPathForcedEmpty(t *testing.T) {
	s := NewSanitizer()

	// 索引类路径即使带着正文也归一为空，目录由 Word 域渲染
	got := s.Sanitize("1. Introducción ..... 3\n2. Marco Teórico ..... 15", "ÍNDICE")
	assert.Equal(t, "", got)

	got = s.Sanitize("contenido real", "Preliminares/Índice de Tablas")
	assert.Equal(t, "", got)
}

func TestSanitizer_Sanitize_StripsMarkdown(t *testing.T) {
	s := NewSanitizer()

	in := "## Introducción\n\n" +
		"El **problema central** de esta investigación es __complejo__.\n" +
		"- primer punto\n" +
		"* segundo punto\n" +
		"1. tercero\n" +
		"2) cuarto\n" +
		"```python\nprint('hola')\n```\n" +
		"Columna A | Columna B"

	got := s.Sanitize(in, "Cuerpo/I. Planteamiento")

	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "**")
	assert.NotContains(t, got, "__")
	assert.NotContains(t, got, "```")
	assert.NotContains(t, got, "|")
	assert.NotContains(t, got, "print")
	assert.Contains(t, got, "problema central")
	assert.Contains(t, got, "primer punto")
	assert.Contains(t, got, "tercero")
}

func TestSanitizer_Sanitize_DropsForbiddenPhrases(t *testing.T) {
	s := NewSanitizer()

	in := "Esta sección presenta el análisis.\n" +
		"FIGURA DE EJEMPLO: reemplazar\n" +
		"ver tabla de ejemplo adjunta\n" +
		"El resultado es consistente."

	got := s.Sanitize(in, "Cuerpo/III. Resultados")

	assert.Contains(t, got, "presenta el análisis")
	assert.Contains(t, got, "resultado es consistente")
	assert.NotContains(t, got, "FIGURA DE EJEMPLO")
	assert.NotContains(t, got, "tabla de ejemplo")
}

func TestSanitizer_Sanitize_CollapsesBlankLines(t *testing.T) {
	s := NewSanitizer()

	got := s.Sanitize("\n\n\nPrimer párrafo.\n\n\n\nSegundo párrafo.\n\n\n", "Cuerpo/Cap")
	assert.Equal(t, "Primer párrafo.\n\nSegundo párrafo.", got)
}

func TestStripLeaderPage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dot leaders", "MARCO TEÓRICO ..... 28", "MARCO TEÓRICO"},
		{"ellipsis leaders", "CONCLUSIONES …………… 91", "CONCLUSIONES"},
		{"wide spaces", "RESUMEN          24", "RESUMEN"},
		{"pag suffix", "ANEXOS pag. 12", "ANEXOS"},
		{"pag placeholder", "ANEXOS ... pag X", "ANEXOS"},
		{"clean line kept", "El marco teórico se sustenta en 28 fuentes.", "El marco teórico se sustenta en 28 fuentes."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripLeaderPage(tt.in))
		})
	}
}

func TestHasLeaderPagePattern(t *testing.T) {
	assert.True(t, HasLeaderPagePattern("Capítulo I ..... 3"))
	assert.True(t, HasLeaderPagePattern("línea normal\nCapítulo II          41"))
	assert.False(t, HasLeaderPagePattern("Un párrafo común sin residuos."))
	assert.False(t, HasLeaderPagePattern(""))
}
