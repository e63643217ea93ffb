package mining

import (
	"strings"
	"testing"

	"github.com/facturaPE/invoice-intake-service/internal/models"
)

func TestMineOrdenCompra(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"full label", "ORDEN DE COMPRA: 045-12", "045-12"},
		{"slash label", "O/C Nº 17", "17"},
		{"short label", "OC 7-3", "7-3"},
		{"servicio label", "SERVICIO 123", "123"},
		{"lowercase label", "orden de compra: 88", "88"},
		{"label without number", "ORDEN DE COMPRA pendiente", models.NoEncontrado},
		{"no label at all", "FACTURA ELECTRONICA F001-22", models.NoEncontrado},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Mine(tc.text)
			if got.OrdenCompra != tc.want {
				t.Errorf("OrdenCompra = %q, want %q", got.OrdenCompra, tc.want)
			}
		})
	}
}

func TestMineDetraccion(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		wantCod  string
		wantPct  float64
	}{
		{"accented code label", "CÓDIGO DE DETRACCIÓN: 022", "022", 0},
		{"abbreviated code label", "COD. DETRACCION 019", "019", 0},
		{"percentage before keyword", "12% DETRACCION aplicable", "", 12},
		{"percentage with gap", "10 % sobre el total por DETRACCIÓN", "", 10},
		{"zero percent ignored", "0% DETRACCION", "", 0},
		{"three digit percent ignored", "150% DETRACCION", "", 0},
		{"no detraccion mention", "FACTURA normal sin retenciones", "", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Mine(tc.text)
			wantCod := tc.wantCod
			if wantCod == "" {
				wantCod = models.CodigoNoAplica
			}
			if got.CodigoDetraccion != wantCod {
				t.Errorf("CodigoDetraccion = %q, want %q", got.CodigoDetraccion, wantCod)
			}
			if got.PorcentajeDetraccion != tc.wantPct {
				t.Errorf("PorcentajeDetraccion = %v, want %v", got.PorcentajeDetraccion, tc.wantPct)
			}
		})
	}
}

func TestMineOrderFields(t *testing.T) {
	text := "ORDEN DE COMPRA Nº 300-1\n" +
		"CENTRO DE COSTO: LOGISTICA LIMA\n" +
		"COND. PAGO: CONTADO\n" +
		"SITUACIÓN: APROBADO POR GERENCIA\n"

	got := Mine(text)
	if got.CentroCosto != "LOGISTICA LIMA" {
		t.Errorf("CentroCosto = %q, want %q", got.CentroCosto, "LOGISTICA LIMA")
	}
	if got.CondicionPago != "CONTADO" {
		t.Errorf("CondicionPago = %q, want %q", got.CondicionPago, "CONTADO")
	}
	if got.Situacion != "APROBADO POR GERENCIA" {
		t.Errorf("Situacion = %q, want %q", got.Situacion, "APROBADO POR GERENCIA")
	}
}

func TestMineLowercaseValueFallsBack(t *testing.T) {
	// Labels match in any case but captured values must be the
	// uppercase runs real documents print them in.
	got := Mine("ceco: ventas")
	if got.CentroCosto != models.CentroCostoAdmin {
		t.Errorf("CentroCosto = %q, want sentinel %q", got.CentroCosto, models.CentroCostoAdmin)
	}
}

func TestMineDefaults(t *testing.T) {
	for _, text := range []string{"", "texto sin ningun campo relevante"} {
		got := Mine(text)
		if got.OrdenCompra != models.NoEncontrado {
			t.Errorf("Mine(%q).OrdenCompra = %q", text, got.OrdenCompra)
		}
		if got.CentroCosto != models.CentroCostoAdmin {
			t.Errorf("Mine(%q).CentroCosto = %q", text, got.CentroCosto)
		}
		if got.CodigoDetraccion != models.CodigoNoAplica {
			t.Errorf("Mine(%q).CodigoDetraccion = %q", text, got.CodigoDetraccion)
		}
		if got.PorcentajeDetraccion != 0 {
			t.Errorf("Mine(%q).PorcentajeDetraccion = %v", text, got.PorcentajeDetraccion)
		}
		if got.CondicionPago != models.NoEncontrado {
			t.Errorf("Mine(%q).CondicionPago = %q", text, got.CondicionPago)
		}
		if got.Situacion != models.SituacionPendiente {
			t.Errorf("Mine(%q).Situacion = %q", text, got.Situacion)
		}
	}
}

func TestMineDescripcion(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{
			"line after header",
			"DESCRIPCION CANTIDAD PRECIO\nSERVICIO DE TRANSPORTE DE CARGA\nTOTAL 500.00",
			"SERVICIO DE TRANSPORTE DE CARGA",
		},
		{
			"concepto header",
			"CONCEPTO\n  Alquiler de maquinaria  \n",
			"Alquiler de maquinaria",
		},
		{"header on last line", "CANTIDAD", ""},
		{"no header", "FACTURA F001-22\nTOTAL 118.00", ""},
		{"empty text", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MineDescripcion(tc.text); got != tc.want {
				t.Errorf("MineDescripcion = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMineDescripcionTruncates(t *testing.T) {
	long := strings.Repeat("A", 200)
	got := MineDescripcion("DESCRIPCION\n" + long)
	if len([]rune(got)) != 64 {
		t.Errorf("len = %d, want 64", len([]rune(got)))
	}
}
