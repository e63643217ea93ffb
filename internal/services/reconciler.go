package services

import (
	"github.com/shopspring/decimal"

	"github.com/facturaPE/invoice-intake-service/internal/models"
)

// Detracción rule (SUNAT): applies to any USD invoice, and to PEN
// invoices whose total exceeds the threshold.
const DefaultUmbralPEN = "700.00"

var cien = decimal.NewFromInt(100)

// Reconciler combines the fiscal record and the two mined field sets
// into one reconciliation record: detracción computation, net payable
// and the OC cross-check verdict. Pure computation, no side effects.
type Reconciler struct {
	umbralPEN decimal.Decimal
}

// NewReconciler creates a reconciler with the default 700.00 PEN
// detracción threshold.
func NewReconciler() *Reconciler {
	return &Reconciler{umbralPEN: decimal.RequireFromString(DefaultUmbralPEN)}
}

// NewReconcilerWithUmbral overrides the PEN threshold (configuration,
// not a per-run decision).
func NewReconcilerWithUmbral(umbral decimal.Decimal) *Reconciler {
	return &Reconciler{umbralPEN: umbral}
}

// Reconcile produces the final record from one fiscal invoice, the
// fields mined from the invoice PDF, and the fields mined from the
// purchase-order PDF. The invoice PDF contributes detracción and OC
// reference; the OC PDF contributes cost center, payment terms and
// approval status.
func (r *Reconciler) Reconcile(inv *models.Invoice, factura, oc *models.MinedFields) *models.ReconciliationRecord {
	monto := r.montoDetraccion(inv, factura.PorcentajeDetraccion)
	neto := inv.Total.Sub(monto).Round(2)

	rec := &models.ReconciliationRecord{
		RUCEmisor:         inv.RUCEmisor,
		RazonSocialEmisor: inv.RazonSocialEmisor,
		RUCReceptor:       inv.RUCReceptor,
		SerieNumero:       inv.SerieNumero,
		FechaEmision:      inv.FechaEmision,
		Moneda:            inv.Moneda,
		BaseImponible:     inv.BaseImponible,
		IGV:               inv.IGV,
		Total:             inv.Total,

		CodigoDetraccion:     factura.CodigoDetraccion,
		PorcentajeDetraccion: factura.PorcentajeDetraccion,
		MontoDetraccion:      monto,
		NetoPagar:            neto,

		OrdenCompraFactura: factura.OrdenCompra,
		OrdenCompraOC:      oc.OrdenCompra,
		VerdictoOC:         MatchVerdict(factura.OrdenCompra, oc.OrdenCompra),

		CentroCosto:   oc.CentroCosto,
		CondicionPago: oc.CondicionPago,
		Situacion:     oc.Situacion,

		Descripcion: factura.Descripcion,
	}

	return rec
}

// montoDetraccion computes the withheld amount. Zero when the rule does
// not apply or no percentage was mined from the invoice PDF.
func (r *Reconciler) montoDetraccion(inv *models.Invoice, pct float64) decimal.Decimal {
	if !r.aplicaDetraccion(inv) || pct <= 0 {
		return decimal.Zero
	}
	return inv.Total.Mul(decimal.NewFromFloat(pct)).Div(cien).Round(2)
}

// aplicaDetraccion: USD always; PEN only above the threshold.
func (r *Reconciler) aplicaDetraccion(inv *models.Invoice) bool {
	switch inv.Moneda {
	case "USD":
		return true
	case "PEN":
		return inv.Total.GreaterThan(r.umbralPEN)
	default:
		return false
	}
}

// MatchVerdict compares the invoice-side and order-side OC references
// after normalization. MATCH only when both canonicalize to the same
// non-sentinel value; anything else goes to human review. Exact
// equality is the contract — substring containment was an inconsistent
// variant and is intentionally not implemented.
func MatchVerdict(ocFactura, ocOrden string) string {
	a := NormalizeOC(ocFactura)
	b := NormalizeOC(ocOrden)
	if a == "" || b == "" || a == models.NoEncontrado || b == models.NoEncontrado {
		return models.VerdictoRevisar
	}
	if a == b {
		return models.VerdictoMatch
	}
	return models.VerdictoRevisar
}
