package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/facturaPE/invoice-intake-service/internal/mining"
	"github.com/facturaPE/invoice-intake-service/internal/models"
)

func invoice(total, moneda string) *models.Invoice {
	return &models.Invoice{
		RUCEmisor:         "20123456789",
		RazonSocialEmisor: "SERVICIOS ANDINOS S.A.C.",
		SerieNumero:       "F001-00001234",
		FechaEmision:      "2024-05-15",
		Moneda:            moneda,
		BaseImponible:     decimal.RequireFromString("100.00"),
		IGV:               decimal.RequireFromString("18.00"),
		Total:             decimal.RequireFromString(total),
	}
}

func TestDetraccionRule(t *testing.T) {
	cases := []struct {
		name      string
		total     string
		moneda    string
		pct       float64
		wantMonto string
		wantNeto  string
	}{
		{"PEN below threshold", "650.00", "PEN", 12, "0", "650.00"},
		{"PEN at threshold not subject", "700.00", "PEN", 12, "0", "700.00"},
		{"PEN above threshold", "750.00", "PEN", 12, "90.00", "660.00"},
		{"USD any amount", "500.00", "USD", 4, "20.00", "480.00"},
		{"USD small amount", "10.00", "USD", 10, "1.00", "9.00"},
		{"applicable but no mined pct", "1000.00", "PEN", 0, "0", "1000.00"},
		{"other currency never subject", "5000.00", "EUR", 12, "0", "5000.00"},
	}

	r := NewReconciler()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			factura := &models.MinedFields{
				OrdenCompra:          "045-12",
				PorcentajeDetraccion: tc.pct,
			}
			oc := &models.MinedFields{OrdenCompra: "45-12"}

			rec := r.Reconcile(invoice(tc.total, tc.moneda), factura, oc)

			if !rec.MontoDetraccion.Equal(decimal.RequireFromString(tc.wantMonto)) {
				t.Errorf("MontoDetraccion = %s, want %s", rec.MontoDetraccion, tc.wantMonto)
			}
			if !rec.NetoPagar.Equal(decimal.RequireFromString(tc.wantNeto)) {
				t.Errorf("NetoPagar = %s, want %s", rec.NetoPagar, tc.wantNeto)
			}
		})
	}
}

func TestMatchVerdict(t *testing.T) {
	cases := []struct {
		name      string
		ocFactura string
		ocOrden   string
		want      string
	}{
		{"equal after normalization", "0012-05", "12-5", models.VerdictoMatch},
		{"identical raw", "045-12", "045-12", models.VerdictoMatch},
		{"different numbers", "045-12", "045-13", models.VerdictoRevisar},
		{"factura sentinel never matches", models.NoEncontrado, "045-12", models.VerdictoRevisar},
		{"order sentinel never matches", "045-12", models.NoEncontrado, models.VerdictoRevisar},
		{"both sentinel still review", models.NoEncontrado, models.NoEncontrado, models.VerdictoRevisar},
		{"substring is not a match", "300", "300-1", models.VerdictoRevisar},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchVerdict(tc.ocFactura, tc.ocOrden); got != tc.want {
				t.Errorf("MatchVerdict(%q, %q) = %q, want %q", tc.ocFactura, tc.ocOrden, got, tc.want)
			}
		})
	}
}

func TestReconcileFieldAttribution(t *testing.T) {
	// The invoice PDF contributes detracción, OC reference and
	// description; the order PDF contributes cost center, payment
	// terms and approval status.
	factura := &models.MinedFields{
		OrdenCompra:          "045-12",
		CentroCosto:          "NO CONFIABLE",
		CodigoDetraccion:     "022",
		PorcentajeDetraccion: 12,
		Descripcion:          "SERVICIO DE MANTENIMIENTO",
	}
	oc := &models.MinedFields{
		OrdenCompra:   "45-12",
		CentroCosto:   "LOGISTICA",
		CondicionPago: "CREDITO 30 DIAS",
		Situacion:     "APROBADO",
	}

	rec := NewReconciler().Reconcile(invoice("885.00", "PEN"), factura, oc)

	if rec.CodigoDetraccion != "022" {
		t.Errorf("CodigoDetraccion = %q, want %q", rec.CodigoDetraccion, "022")
	}
	if rec.CentroCosto != "LOGISTICA" {
		t.Errorf("CentroCosto = %q, want %q (order PDF is authoritative)", rec.CentroCosto, "LOGISTICA")
	}
	if rec.CondicionPago != "CREDITO 30 DIAS" {
		t.Errorf("CondicionPago = %q", rec.CondicionPago)
	}
	if rec.Situacion != "APROBADO" {
		t.Errorf("Situacion = %q", rec.Situacion)
	}
	if rec.Descripcion != "SERVICIO DE MANTENIMIENTO" {
		t.Errorf("Descripcion = %q", rec.Descripcion)
	}
	if rec.VerdictoOC != models.VerdictoMatch {
		t.Errorf("VerdictoOC = %q, want MATCH", rec.VerdictoOC)
	}
	if rec.RUCEmisor != "20123456789" || rec.SerieNumero != "F001-00001234" {
		t.Errorf("fiscal fields not carried over: %+v", rec)
	}
}

func TestCustomUmbral(t *testing.T) {
	r := NewReconcilerWithUmbral(decimal.RequireFromString("500.00"))
	factura := &models.MinedFields{PorcentajeDetraccion: 10}
	oc := &models.MinedFields{}

	rec := r.Reconcile(invoice("600.00", "PEN"), factura, oc)
	if !rec.MontoDetraccion.Equal(decimal.RequireFromString("60.00")) {
		t.Errorf("MontoDetraccion = %s, want 60.00 with lowered threshold", rec.MontoDetraccion)
	}
}

// Full pipeline over text blobs: mine both documents and reconcile,
// the same chain the HTTP handler runs after PDF text extraction.
func TestReconcileMinedTexts(t *testing.T) {
	facturaText := "FACTURA ELECTRONICA\nOC: 300-01\nOperación sujeta a 15% DETRACCIÓN\n"
	ocText := "ORDEN DE COMPRA\nOC: 300-1\nCENTRO DE COSTO: OPERACIONES\nSITUACIÓN: APROBADO\n"

	camposFactura := mining.Mine(facturaText)
	camposOC := mining.Mine(ocText)

	rec := NewReconciler().Reconcile(invoice("1000.00", "PEN"), camposFactura, camposOC)

	if !rec.MontoDetraccion.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("MontoDetraccion = %s, want 150.00", rec.MontoDetraccion)
	}
	if !rec.NetoPagar.Equal(decimal.RequireFromString("850.00")) {
		t.Errorf("NetoPagar = %s, want 850.00", rec.NetoPagar)
	}
	if rec.VerdictoOC != models.VerdictoMatch {
		t.Errorf("VerdictoOC = %q, want MATCH (300-01 vs 300-1)", rec.VerdictoOC)
	}
	if rec.CentroCosto != "OPERACIONES" {
		t.Errorf("CentroCosto = %q, want OPERACIONES", rec.CentroCosto)
	}
	if rec.Situacion != "APROBADO" {
		t.Errorf("Situacion = %q, want APROBADO", rec.Situacion)
	}
}
