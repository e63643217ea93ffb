package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNoDatabase = errors.New("database not available")

// Conciliacion is a persisted reconciliation record, one row per
// processed upload, as it sits in the review queue.
type Conciliacion struct {
	ID                   uuid.UUID `json:"id"`
	RUCEmisor            string    `json:"ruc_emisor"`
	RazonSocialEmisor    string    `json:"razon_social_emisor"`
	RUCReceptor          string    `json:"ruc_receptor"`
	SerieNumero          string    `json:"serie_numero"`
	FechaEmision         string    `json:"fecha_emision"`
	Moneda               string    `json:"moneda"`
	BaseImponible        float64   `json:"base_imponible"`
	IGV                  float64   `json:"igv"`
	Total                float64   `json:"total"`
	CodigoDetraccion     string    `json:"codigo_detraccion"`
	PorcentajeDetraccion float64   `json:"porcentaje_detraccion"`
	MontoDetraccion      float64   `json:"monto_detraccion"`
	NetoPagar            float64   `json:"neto_pagar"`
	OrdenCompraFactura   string    `json:"orden_compra_factura"`
	OrdenCompraOC        string    `json:"orden_compra_oc"`
	VerdictoOC           string    `json:"verdicto_oc"`
	CentroCosto          string    `json:"centro_costo"`
	CondicionPago        string    `json:"condicion_pago"`
	Situacion            string    `json:"situacion"`
	Descripcion          string    `json:"descripcion"`
	DocumentosURL        string    `json:"documentos_url,omitempty"`
	UsuarioID            string    `json:"usuario_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// SaveConciliacion inserts a record into the empresa's review queue.
func SaveConciliacion(ctx context.Context, empresaAlias string, c *Conciliacion) error {
	if Pool == nil {
		return ErrNoDatabase
	}
	schema := GetSchemaForEmpresa(empresaAlias)

	query := fmt.Sprintf(`
		INSERT INTO %s.conciliaciones (
			ruc_emisor, razon_social_emisor, ruc_receptor, serie_numero,
			fecha_emision, moneda, base_imponible, igv, total,
			codigo_detraccion, porcentaje_detraccion, monto_detraccion, neto_pagar,
			orden_compra_factura, orden_compra_oc, verdicto_oc,
			centro_costo, condicion_pago, situacion, descripcion,
			documentos_url, usuario_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		          $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id, created_at
	`, schema)

	err := Pool.QueryRow(ctx, query,
		c.RUCEmisor, c.RazonSocialEmisor, c.RUCReceptor, c.SerieNumero,
		c.FechaEmision, c.Moneda, c.BaseImponible, c.IGV, c.Total,
		c.CodigoDetraccion, c.PorcentajeDetraccion, c.MontoDetraccion, c.NetoPagar,
		c.OrdenCompraFactura, c.OrdenCompraOC, c.VerdictoOC,
		c.CentroCosto, c.CondicionPago, c.Situacion, c.Descripcion,
		c.DocumentosURL, c.UsuarioID,
	).Scan(&c.ID, &c.CreatedAt)

	return err
}

const conciliacionColumns = `
	id, COALESCE(ruc_emisor, ''), COALESCE(razon_social_emisor, ''), COALESCE(ruc_receptor, ''),
	COALESCE(serie_numero, ''), COALESCE(fecha_emision, ''), COALESCE(moneda, ''),
	COALESCE(base_imponible, 0), COALESCE(igv, 0), COALESCE(total, 0),
	COALESCE(codigo_detraccion, ''), COALESCE(porcentaje_detraccion, 0),
	COALESCE(monto_detraccion, 0), COALESCE(neto_pagar, 0),
	COALESCE(orden_compra_factura, ''), COALESCE(orden_compra_oc, ''), COALESCE(verdicto_oc, ''),
	COALESCE(centro_costo, ''), COALESCE(condicion_pago, ''), COALESCE(situacion, ''),
	COALESCE(descripcion, ''), COALESCE(documentos_url, ''), COALESCE(usuario_id::text, ''), created_at`

func scanConciliacion(row interface{ Scan(...any) error }) (*Conciliacion, error) {
	var c Conciliacion
	err := row.Scan(
		&c.ID, &c.RUCEmisor, &c.RazonSocialEmisor, &c.RUCReceptor,
		&c.SerieNumero, &c.FechaEmision, &c.Moneda,
		&c.BaseImponible, &c.IGV, &c.Total,
		&c.CodigoDetraccion, &c.PorcentajeDetraccion,
		&c.MontoDetraccion, &c.NetoPagar,
		&c.OrdenCompraFactura, &c.OrdenCompraOC, &c.VerdictoOC,
		&c.CentroCosto, &c.CondicionPago, &c.Situacion,
		&c.Descripcion, &c.DocumentosURL, &c.UsuarioID, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConciliaciones returns the most recent records for an empresa.
func GetConciliaciones(ctx context.Context, empresaAlias string, limit int) ([]Conciliacion, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}
	schema := GetSchemaForEmpresa(empresaAlias)

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.conciliaciones
		ORDER BY created_at DESC
		LIMIT $1
	`, conciliacionColumns, schema)

	rows, err := Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Conciliacion
	for rows.Next() {
		c, err := scanConciliacion(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *c)
	}

	return records, rows.Err()
}

// GetConciliacionByID retrieves a single record by ID
func GetConciliacionByID(ctx context.Context, empresaAlias string, id string) (*Conciliacion, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}
	schema := GetSchemaForEmpresa(empresaAlias)

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.conciliaciones
		WHERE id = $1
	`, conciliacionColumns, schema)

	return scanConciliacion(Pool.QueryRow(ctx, query, id))
}

// DeleteConciliacion removes a record from the review queue
func DeleteConciliacion(ctx context.Context, empresaAlias string, id string) error {
	if Pool == nil {
		return ErrNoDatabase
	}
	schema := GetSchemaForEmpresa(empresaAlias)
	query := fmt.Sprintf("DELETE FROM %s.conciliaciones WHERE id = $1", schema)
	_, err := Pool.Exec(ctx, query, id)
	return err
}

// QueueStats summarizes the review queue for the current month.
type QueueStats struct {
	Month           string  `json:"month"`
	TotalRegistros  int     `json:"total_registros"`
	PorRevisar      int     `json:"por_revisar"`
	TotalMonto      float64 `json:"total_monto"`
	TotalDetraccion float64 `json:"total_detraccion"`
}

// GetQueueStats returns review-queue statistics for the current month.
func GetQueueStats(ctx context.Context, empresaAlias string) (*QueueStats, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}
	schema := GetSchemaForEmpresa(empresaAlias)

	query := fmt.Sprintf(`
		SELECT
			COUNT(*) as total_registros,
			COUNT(*) FILTER (WHERE verdicto_oc = 'REVISAR') as por_revisar,
			COALESCE(SUM(total), 0) as total_monto,
			COALESCE(SUM(monto_detraccion), 0) as total_detraccion
		FROM %s.conciliaciones
		WHERE DATE_TRUNC('month', created_at) = DATE_TRUNC('month', CURRENT_DATE)
	`, schema)

	stats := &QueueStats{
		Month: time.Now().Format("2006-01"),
	}

	err := Pool.QueryRow(ctx, query).Scan(
		&stats.TotalRegistros,
		&stats.PorRevisar,
		&stats.TotalMonto,
		&stats.TotalDetraccion,
	)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
