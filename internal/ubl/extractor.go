package ubl

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturaPE/invoice-intake-service/internal/models"
)

// UBL 2.1 component namespaces used by SUNAT electronic invoices.
const (
	NamespaceCBC = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NamespaceCAC = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
)

// StructureError reports a required node that is absent or malformed in
// the invoice XML. Extraction is fail-fast: a fiscal record with a
// missing total is unsafe to reconcile, so no partial record is returned.
type StructureError struct {
	Field string
}

func (e *StructureError) Error() string {
	return "factura XML: nodo requerido ausente o inválido: " + e.Field
}

// amount is a UBL monetary element with its currencyID attribute.
type amount struct {
	Value    string `xml:",chardata"`
	Currency string `xml:"currencyID,attr"`
}

// party covers the supplier/customer aggregate down to the two fields
// the intake needs: identification and registered legal name.
type party struct {
	Identification *struct {
		ID *string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 ID"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 PartyIdentification"`
	LegalEntity *struct {
		RegistrationName *string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 RegistrationName"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 PartyLegalEntity"`
}

// ublInvoice mirrors the subset of the UBL Invoice document the intake
// reads. Pointer fields distinguish an absent node from an empty one.
type ublInvoice struct {
	XMLName   xml.Name
	ID        *string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 ID"`
	IssueDate *string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 IssueDate"`

	Supplier *struct {
		Party *party `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 Party"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 AccountingSupplierParty"`

	Customer *struct {
		Party *party `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 Party"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 AccountingCustomerParty"`

	TaxTotals []struct {
		TaxAmount *amount `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 TaxAmount"`
		Subtotals []struct {
			TaxableAmount *amount `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 TaxableAmount"`
		} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 TaxSubtotal"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 TaxTotal"`

	MonetaryTotal *struct {
		PayableAmount *amount `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 PayableAmount"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 LegalMonetaryTotal"`
}

// Extract parses a SUNAT UBL invoice XML and returns the fiscal record.
// Any required node that is missing or unparseable aborts the whole
// extraction with a *StructureError.
func Extract(data []byte) (*models.Invoice, error) {
	var doc ublInvoice
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &StructureError{Field: "Invoice"}
	}

	inv := &models.Invoice{}

	// Emisor
	if doc.Supplier == nil || doc.Supplier.Party == nil {
		return nil, &StructureError{Field: "AccountingSupplierParty"}
	}
	sup := doc.Supplier.Party
	if sup.Identification == nil || sup.Identification.ID == nil || strings.TrimSpace(*sup.Identification.ID) == "" {
		return nil, &StructureError{Field: "AccountingSupplierParty/PartyIdentification/ID"}
	}
	inv.RUCEmisor = strings.TrimSpace(*sup.Identification.ID)
	if sup.LegalEntity == nil || sup.LegalEntity.RegistrationName == nil {
		return nil, &StructureError{Field: "AccountingSupplierParty/PartyLegalEntity/RegistrationName"}
	}
	inv.RazonSocialEmisor = strings.TrimSpace(*sup.LegalEntity.RegistrationName)

	// Receptor (opcional)
	if doc.Customer != nil && doc.Customer.Party != nil &&
		doc.Customer.Party.Identification != nil && doc.Customer.Party.Identification.ID != nil {
		inv.RUCReceptor = strings.TrimSpace(*doc.Customer.Party.Identification.ID)
	}

	// Comprobante
	if doc.ID == nil || strings.TrimSpace(*doc.ID) == "" {
		return nil, &StructureError{Field: "ID"}
	}
	inv.SerieNumero = strings.TrimSpace(*doc.ID)

	if doc.IssueDate == nil {
		return nil, &StructureError{Field: "IssueDate"}
	}
	fecha := strings.TrimSpace(*doc.IssueDate)
	if _, err := time.Parse("2006-01-02", fecha); err != nil {
		return nil, &StructureError{Field: "IssueDate"}
	}
	inv.FechaEmision = fecha

	// Montos
	base, igv, err := taxAmounts(&doc)
	if err != nil {
		return nil, err
	}
	inv.BaseImponible = base
	inv.IGV = igv

	if doc.MonetaryTotal == nil || doc.MonetaryTotal.PayableAmount == nil {
		return nil, &StructureError{Field: "LegalMonetaryTotal/PayableAmount"}
	}
	pay := doc.MonetaryTotal.PayableAmount
	total, err := parseAmount(pay.Value, "LegalMonetaryTotal/PayableAmount")
	if err != nil {
		return nil, err
	}
	inv.Total = total
	if strings.TrimSpace(pay.Currency) == "" {
		return nil, &StructureError{Field: "PayableAmount@currencyID"}
	}
	inv.Moneda = normalizeMoneda(pay.Currency)

	return inv, nil
}

// taxAmounts pulls the taxable base and tax amount from the first
// TaxTotal/TaxSubtotal pair.
func taxAmounts(doc *ublInvoice) (decimal.Decimal, decimal.Decimal, error) {
	if len(doc.TaxTotals) == 0 {
		return decimal.Zero, decimal.Zero, &StructureError{Field: "TaxTotal"}
	}
	tt := doc.TaxTotals[0]
	if tt.TaxAmount == nil {
		return decimal.Zero, decimal.Zero, &StructureError{Field: "TaxTotal/TaxAmount"}
	}
	igv, err := parseAmount(tt.TaxAmount.Value, "TaxTotal/TaxAmount")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if len(tt.Subtotals) == 0 || tt.Subtotals[0].TaxableAmount == nil {
		return decimal.Zero, decimal.Zero, &StructureError{Field: "TaxSubtotal/TaxableAmount"}
	}
	base, err := parseAmount(tt.Subtotals[0].TaxableAmount.Value, "TaxSubtotal/TaxableAmount")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return base, igv, nil
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, &StructureError{Field: field}
	}
	return d, nil
}

// normalizeMoneda maps the declared currencyID to the display set
// {PEN, USD}; anything else passes through unchanged.
func normalizeMoneda(raw string) string {
	cur := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(cur, "PEN"), strings.Contains(cur, "SOL"):
		return "PEN"
	case strings.Contains(cur, "USD"), strings.Contains(cur, "US$"):
		return "USD"
	default:
		return cur
	}
}
