// Package mining recovers semi-structured fields from PDF text blobs.
// Every pattern is a declarative rule with an explicit fallback value:
// new label synonyms are configuration here, not new code paths.
package mining

import (
	"regexp"
	"strings"

	"github.com/facturaPE/invoice-intake-service/internal/models"
)

// Field names addressed by the rule table.
const (
	FieldOrdenCompra          = "orden_compra"
	FieldCentroCosto          = "centro_costo"
	FieldCodigoDetraccion     = "codigo_detraccion"
	FieldPorcentajeDetraccion = "porcentaje_detraccion"
	FieldCondicionPago        = "condicion_pago"
	FieldSituacion            = "situacion"
)

// Rule is one mining pattern: alternatives tried in order, first match
// wins, Group selects the capture, Post cleans it up, Default is the
// sentinel used when nothing matches.
type Rule struct {
	Field    string
	Patterns []*regexp.Regexp
	Group    int
	Post     func(string) string
	Default  string
}

// Extract applies the rule to a text blob. The boolean reports whether
// any pattern matched; on a miss the rule's Default is returned.
func (r Rule) Extract(text string) (string, bool) {
	for _, re := range r.Patterns {
		if m := re.FindStringSubmatch(text); len(m) > r.Group {
			val := m[r.Group]
			if r.Post != nil {
				val = r.Post(val)
			}
			if val != "" {
				return val, true
			}
		}
	}
	return r.Default, false
}

// Labels are matched case-insensitively ((?i:...) scopes the flag to
// the label so uppercase-run captures stay case-sensitive), and
// accented labels also match their unaccented spelling.
var Rules = []Rule{
	{
		Field: FieldOrdenCompra,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:ORDEN\s+DE\s+COMPRA|O\s*/\s*C|OC|SERVICIO)\b[\s:#.ºN°-]*(\d+(?:-\d+)?)`),
		},
		Group:   1,
		Default: models.NoEncontrado,
	},
	{
		Field: FieldCentroCosto,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i:\b(?:CENTRO\s+DE\s+COSTOS?|CECO|C\.\s*COSTO)\b)[\s:.-]*([A-ZÁÉÍÓÚÑ0-9][A-ZÁÉÍÓÚÑ0-9 -]*)`),
		},
		Group:   1,
		Post:    strings.TrimSpace,
		Default: models.CentroCostoAdmin,
	},
	{
		Field: FieldCodigoDetraccion,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:C[OÓ]DIGO\s+DE\s+DETRACCI[OÓ]N|COD\.?\s*DETRACCI[OÓ]N|SUJETOS?\s+A\s+DETRACCI[OÓ]N)\D{0,20}?(\d{3})\b`),
		},
		Group:   1,
		Default: models.CodigoNoAplica,
	},
	{
		Field: FieldPorcentajeDetraccion,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(\d{1,2})\s*%[\s\S]{0,60}?DETRACCI[OÓ]N`),
		},
		Group:   1,
		Default: "0",
	},
	{
		Field: FieldCondicionPago,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i:COND\.?\s*(?:DE\s+)?PAGO)[\s:.-]*([A-Za-z0-9ÁÉÍÓÚÑáéíóúñ][A-Za-z0-9 ÁÉÍÓÚÑáéíóúñ]*)`),
		},
		Group:   1,
		Post:    strings.TrimSpace,
		Default: models.NoEncontrado,
	},
	{
		Field: FieldSituacion,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i:SITUACI[OÓ]N)[\s:.-]*([A-ZÁÉÍÓÚÑ][A-ZÁÉÍÓÚÑ ]*)`),
		},
		Group:   1,
		Post:    strings.TrimSpace,
		Default: models.SituacionPendiente,
	},
}
