package mining

import (
	"strconv"
	"strings"

	"github.com/facturaPE/invoice-intake-service/internal/models"
)

// descripcionKeywords mark the table-header line of an invoice body;
// the free-text description is the line that follows it.
var descripcionKeywords = []string{"DESC", "CANT", "SERV", "CONCEPTO"}

const descripcionMaxLen = 64

// Mine runs the full rule set over a text blob and returns the mined
// fields. Every field degrades independently to its sentinel — mining
// never fails, including on the empty string.
func Mine(text string) *models.MinedFields {
	values := make(map[string]string, len(Rules))
	for _, rule := range Rules {
		val, _ := rule.Extract(text)
		values[rule.Field] = val
	}

	campos := &models.MinedFields{
		OrdenCompra:      values[FieldOrdenCompra],
		CentroCosto:      values[FieldCentroCosto],
		CodigoDetraccion: values[FieldCodigoDetraccion],
		CondicionPago:    values[FieldCondicionPago],
		Situacion:        values[FieldSituacion],
	}

	if pct, err := strconv.Atoi(values[FieldPorcentajeDetraccion]); err == nil && pct > 0 && pct < 100 {
		campos.PorcentajeDetraccion = float64(pct)
	}

	return campos
}

// MineDescripcion takes first-page text and returns the line that
// follows the first header line (DESC/CANT/SERV/CONCEPTO), truncated
// for display. Empty when no header line is found.
func MineDescripcion(firstPageText string) string {
	lines := strings.Split(firstPageText, "\n")
	for i, line := range lines {
		upper := strings.ToUpper(line)
		for _, kw := range descripcionKeywords {
			if strings.Contains(upper, kw) {
				if i+1 < len(lines) {
					return truncate(strings.TrimSpace(lines[i+1]), descripcionMaxLen)
				}
				return ""
			}
		}
	}
	return ""
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
