package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel values used when a field could not be mined from a PDF.
// They are valid data, not errors: the review queue shows them so an
// accountant can see exactly what the documents did not declare.
const (
	NoEncontrado       = "No encontrado" // OC reference / payment terms missing
	CentroCostoAdmin   = "ADMIN"         // default cost center
	CodigoNoAplica     = "N/A"           // no detracción code on the document
	SituacionPendiente = "PENDIENTE"     // purchase order not yet approved
)

// Match verdicts for the OC cross-check.
const (
	VerdictoMatch   = "MATCH"
	VerdictoRevisar = "REVISAR"
)

// Invoice holds the fiscal data extracted from the SUNAT UBL XML.
// It is built once per upload and never mutated afterwards.
type Invoice struct {
	// Emisor
	RUCEmisor         string `json:"rucEmisor"`         // RUC del proveedor
	RazonSocialEmisor string `json:"razonSocialEmisor"` // Razon social del proveedor

	// Receptor
	RUCReceptor string `json:"rucReceptor,omitempty"` // RUC del comprador (opcional)

	// Comprobante
	SerieNumero  string `json:"serieNumero"`  // e.g. F001-00001234
	FechaEmision string `json:"fechaEmision"` // ISO date as declared
	Moneda       string `json:"moneda"`       // PEN, USD o paso directo

	// Montos
	BaseImponible decimal.Decimal `json:"baseImponible"` // Operacion gravada
	IGV           decimal.Decimal `json:"igv"`           // Impuesto
	Total         decimal.Decimal `json:"total"`         // Importe total a pagar
}

// MinedFields holds the best-effort fields recovered from one PDF text
// blob. Every field defaults to its sentinel; mining never fails as a
// whole. The same shape is produced for the invoice PDF and the
// purchase-order PDF — callers pick the fields they trust per document.
type MinedFields struct {
	OrdenCompra          string  `json:"ordenCompra"`
	CentroCosto          string  `json:"centroCosto"`
	CodigoDetraccion     string  `json:"codigoDetraccion"`
	PorcentajeDetraccion float64 `json:"porcentajeDetraccion"` // 0-99
	CondicionPago        string  `json:"condicionPago"`
	Situacion            string  `json:"situacion"`
	Descripcion          string  `json:"descripcion,omitempty"`
}

// ReconciliationRecord is the flat output handed to the presentation
// layer: fiscal fields, detracción computation, match verdicts and
// attribution, ready for tabular rendering.
type ReconciliationRecord struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Fiscal (from XML)
	RUCEmisor         string          `json:"ruc_emisor"`
	RazonSocialEmisor string          `json:"razon_social_emisor"`
	RUCReceptor       string          `json:"ruc_receptor,omitempty"`
	SerieNumero       string          `json:"serie_numero"`
	FechaEmision      string          `json:"fecha_emision"`
	Moneda            string          `json:"moneda"`
	BaseImponible     decimal.Decimal `json:"base_imponible"`
	IGV               decimal.Decimal `json:"igv"`
	Total             decimal.Decimal `json:"total"`

	// Detracción
	CodigoDetraccion     string          `json:"codigo_detraccion"`
	PorcentajeDetraccion float64         `json:"porcentaje_detraccion"`
	MontoDetraccion      decimal.Decimal `json:"monto_detraccion"`
	NetoPagar            decimal.Decimal `json:"neto_pagar"`

	// Cruce con orden de compra
	OrdenCompraFactura string `json:"orden_compra_factura"`
	OrdenCompraOC      string `json:"orden_compra_oc"`
	VerdictoOC         string `json:"verdicto_oc"`

	// Atribución (from OC PDF)
	CentroCosto   string `json:"centro_costo"`
	CondicionPago string `json:"condicion_pago"`
	Situacion     string `json:"situacion"`

	// Detalle (from invoice PDF, first page)
	Descripcion string `json:"descripcion,omitempty"`
}

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Detracción rule overrides
	Detraccion DetraccionConfig `yaml:"detraccion"`

	// Listing
	MaxRecords int `yaml:"max_records"`
}

// DetraccionConfig holds the threshold for the withholding rule.
// UmbralPEN is the PEN amount above which detracción applies; USD
// invoices are always subject regardless of amount.
type DetraccionConfig struct {
	UmbralPEN string `yaml:"umbral_pen"` // decimal string, default "700.00"
}
