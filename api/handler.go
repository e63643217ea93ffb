package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/facturaPE/invoice-intake-service/internal/auth"
	"github.com/facturaPE/invoice-intake-service/internal/db"
	"github.com/facturaPE/invoice-intake-service/internal/mining"
	"github.com/facturaPE/invoice-intake-service/internal/models"
	"github.com/facturaPE/invoice-intake-service/internal/pdftext"
	"github.com/facturaPE/invoice-intake-service/internal/services"
	"github.com/facturaPE/invoice-intake-service/internal/storage"
	"github.com/facturaPE/invoice-intake-service/internal/ubl"
)

const (
	MaxUploadSize = 30 * 1024 * 1024 // 30MB across the three documents
	Version       = "1.0.0"

	defaultMaxRecords = 100
)

// Upload form field names for the three source documents.
const (
	FieldXML        = "xml"
	FieldFacturaPDF = "factura_pdf"
	FieldOCPDF      = "oc_pdf"
)

// Handler handles HTTP requests for invoice reception
type Handler struct {
	config     *models.Config
	reconciler *services.Reconciler
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config) *Handler {
	rec := services.NewReconciler()
	if config.Detraccion.UmbralPEN != "" {
		if umbral, err := decimal.NewFromString(config.Detraccion.UmbralPEN); err == nil {
			rec = services.NewReconcilerWithUmbral(umbral)
		}
	}
	return &Handler{
		config:     config,
		reconciler: rec,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Main endpoint: upload XML + factura PDF + OC PDF, get one record
	router.HandleFunc("/api/recepcion", h.ProcessReception).Methods("POST")

	// Review queue (requires database)
	router.HandleFunc("/api/conciliaciones", h.GetConciliaciones).Methods("GET")
	router.HandleFunc("/api/conciliaciones/{id}", h.GetConciliacion).Methods("GET")
	router.HandleFunc("/api/conciliaciones/{id}", h.DeleteConciliacion).Methods("DELETE")

	// Statistics
	router.HandleFunc("/api/stats", h.GetStats).Methods("GET")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// StageStatus reports one extraction stage. A mined sentinel value is
// NOT a failure — only XML structure errors and unreadable PDFs are.
type StageStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ReceptionResponse is the output of one reception run.
type ReceptionResponse struct {
	Success       bool                         `json:"success"`
	Record        *models.ReconciliationRecord `json:"record,omitempty"`
	Stages        map[string]StageStatus       `json:"stages"`
	Error         string                       `json:"error,omitempty"`
	SavedToDB     bool                         `json:"saved_to_db"`
	DocumentosURL string                       `json:"documentos_url,omitempty"`
	TotalDuration float64                      `json:"totalDuration"`
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Memory    MemoryStats   `json:"memory"`
	Database  ServiceStatus `json:"database"`
	Storage   ServiceStatus `json:"storage"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Database: h.checkDatabase(),
		Storage:  h.checkStorage(),
	}

	// Database and storage are optional; the pipeline itself has no
	// external dependencies, so the service stays healthy without them.
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}
	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL via PgBouncer",
	}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}
	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// ProcessReception receives the three documents of one AP intake run
// (factura XML, factura PDF, orden de compra PDF), runs extraction and
// reconciliation, archives the documents and queues the record.
func (h *Handler) ProcessReception(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	started := time.Now()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "File too large or invalid form data")
		return
	}

	// All three documents are required; report exactly which are
	// missing before running any extraction.
	docs := make(map[string][]byte, 3)
	var missing []string
	for _, field := range []string{FieldXML, FieldFacturaPDF, FieldOCPDF} {
		data, err := readFormFile(r, field)
		if err != nil {
			missing = append(missing, field)
			continue
		}
		docs[field] = data
	}
	if len(missing) > 0 {
		h.sendError(w, http.StatusBadRequest,
			"faltan documentos: "+strings.Join(missing, ", "))
		return
	}

	// Archive the originals first (optional, never blocks the run)
	documentosURL := h.archiveDocuments(ctx, claims.EmpresaAlias, docs)

	record, stages := h.runPipeline(docs[FieldXML], docs[FieldFacturaPDF], docs[FieldOCPDF])

	response := ReceptionResponse{
		Stages:        stages,
		DocumentosURL: documentosURL,
		TotalDuration: time.Since(started).Seconds(),
	}

	if record == nil {
		// A failed stage aborts the whole run: no partial record.
		for _, st := range stages {
			if !st.OK {
				response.Error = st.Error
				break
			}
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
		return
	}

	response.Success = true
	response.Record = record

	if db.Pool != nil {
		row := toConciliacion(record, documentosURL, claims.UserID)
		if err := db.SaveConciliacion(ctx, claims.EmpresaAlias, row); err != nil {
			fmt.Printf("Warning: failed to save conciliacion to DB: %v\n", err)
		} else {
			response.SavedToDB = true
			record.ID = row.ID.String()
			record.CreatedAt = row.CreatedAt
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// runPipeline executes the extraction chain:
// XML fiscal record → PDF text × 2 → field mining × 2 → reconciliation.
// A structural XML failure or an unreadable PDF aborts with a nil
// record; the stage map says which document and stage failed.
func (h *Handler) runPipeline(xmlData, facturaPDF, ocPDF []byte) (*models.ReconciliationRecord, map[string]StageStatus) {
	stages := map[string]StageStatus{
		FieldXML:        {OK: true},
		FieldFacturaPDF: {OK: true},
		FieldOCPDF:      {OK: true},
	}

	fiscal, err := ubl.Extract(xmlData)
	if err != nil {
		stages[FieldXML] = StageStatus{Error: fmt.Sprintf("extracción XML: %v", err)}
		return nil, stages
	}

	facturaText, err := pdftext.Extract(facturaPDF)
	if err != nil {
		stages[FieldFacturaPDF] = StageStatus{Error: fmt.Sprintf("factura PDF: %v", err)}
		return nil, stages
	}

	ocText, err := pdftext.Extract(ocPDF)
	if err != nil {
		stages[FieldOCPDF] = StageStatus{Error: fmt.Sprintf("orden de compra PDF: %v", err)}
		return nil, stages
	}

	camposFactura := mining.Mine(facturaText)
	if primeraPagina, err := pdftext.ExtractFirstPage(facturaPDF); err == nil {
		camposFactura.Descripcion = mining.MineDescripcion(primeraPagina)
	}
	camposOC := mining.Mine(ocText)

	return h.reconciler.Reconcile(fiscal, camposFactura, camposOC), stages
}

// archiveDocuments stores the three originals under one shared prefix.
// Storage is optional: failures are logged, never fatal.
func (h *Handler) archiveDocuments(ctx context.Context, empresaAlias string, docs map[string][]byte) string {
	if storage.Client == nil {
		return ""
	}

	prefix := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), uuid.New().String()[:8])
	contentTypes := map[string]string{
		FieldXML:        "application/xml",
		FieldFacturaPDF: "application/pdf",
		FieldOCPDF:      "application/pdf",
	}

	var firstPath string
	for field, data := range docs {
		contentType := contentTypes[field]
		filename := fmt.Sprintf("%s/%s%s", prefix, field, storage.GetFileExtension(contentType))
		path, err := storage.UploadDocument(ctx, empresaAlias, filename, bytes.NewReader(data), int64(len(data)), contentType)
		if err != nil {
			fmt.Printf("Warning: failed to archive %s: %v\n", field, err)
			continue
		}
		if firstPath == "" {
			firstPath = path[:strings.LastIndex(path, "/")]
		}
	}
	return firstPath
}

// GetConciliaciones returns the review queue for the user's empresa
func (h *Handler) GetConciliaciones(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	limit := h.config.MaxRecords
	if limit <= 0 {
		limit = defaultMaxRecords
	}

	records, err := db.GetConciliaciones(ctx, claims.EmpresaAlias, limit)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get records: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"records":       records,
		"count":         len(records),
		"empresa_alias": claims.EmpresaAlias,
	})
}

// GetConciliacion returns a single record with presigned document URL
func (h *Handler) GetConciliacion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	vars := mux.Vars(r)
	record, err := db.GetConciliacionByID(ctx, claims.EmpresaAlias, vars["id"])
	if err != nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("record not found: %v", err))
		return
	}

	// Presign the three archived originals so the reviewer can open them
	documentos := map[string]string{}
	if storage.Client != nil && record.DocumentosURL != "" {
		for field, object := range documentObjects(record.DocumentosURL) {
			url, err := storage.GetPresignedURL(ctx, object)
			if err != nil {
				continue
			}
			documentos[field] = url
		}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"record":        record,
		"documentos":    documentos,
		"empresa_alias": claims.EmpresaAlias,
	})
}

// documentObjects maps each upload field to its archived object path
// under the record's shared prefix, mirroring archiveDocuments naming.
func documentObjects(documentosURL string) map[string]string {
	return map[string]string{
		FieldXML:        documentosURL + "/" + FieldXML + ".xml",
		FieldFacturaPDF: documentosURL + "/" + FieldFacturaPDF + ".pdf",
		FieldOCPDF:      documentosURL + "/" + FieldOCPDF + ".pdf",
	}
}

// DeleteConciliacion removes a record from the review queue
func (h *Handler) DeleteConciliacion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	vars := mux.Vars(r)
	record, err := db.GetConciliacionByID(ctx, claims.EmpresaAlias, vars["id"])
	if err != nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("record not found: %v", err))
		return
	}

	if err := db.DeleteConciliacion(ctx, claims.EmpresaAlias, vars["id"]); err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}

	// Best effort: remove the archived originals along with the record
	if storage.Client != nil && record.DocumentosURL != "" {
		for _, object := range documentObjects(record.DocumentosURL) {
			if err := storage.DeleteDocument(ctx, object); err != nil {
				fmt.Printf("Warning: failed to delete archived document %s: %v\n", object, err)
			}
		}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "record deleted",
	})
}

// GetStats returns monthly review-queue statistics
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	stats, err := db.GetQueueStats(ctx, claims.EmpresaAlias)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"stats":         stats,
		"empresa_alias": claims.EmpresaAlias,
	})
}

// readFormFile reads one multipart file fully, closing its handle
// whether or not the read succeeds.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", field, err)
	}
	return data, nil
}

// toConciliacion converts the in-memory record into its persisted row
func toConciliacion(rec *models.ReconciliationRecord, documentosURL, usuarioID string) *db.Conciliacion {
	return &db.Conciliacion{
		RUCEmisor:            rec.RUCEmisor,
		RazonSocialEmisor:    rec.RazonSocialEmisor,
		RUCReceptor:          rec.RUCReceptor,
		SerieNumero:          rec.SerieNumero,
		FechaEmision:         rec.FechaEmision,
		Moneda:               rec.Moneda,
		BaseImponible:        decimalToFloat64(rec.BaseImponible),
		IGV:                  decimalToFloat64(rec.IGV),
		Total:                decimalToFloat64(rec.Total),
		CodigoDetraccion:     rec.CodigoDetraccion,
		PorcentajeDetraccion: rec.PorcentajeDetraccion,
		MontoDetraccion:      decimalToFloat64(rec.MontoDetraccion),
		NetoPagar:            decimalToFloat64(rec.NetoPagar),
		OrdenCompraFactura:   rec.OrdenCompraFactura,
		OrdenCompraOC:        rec.OrdenCompraOC,
		VerdictoOC:           rec.VerdictoOC,
		CentroCosto:          rec.CentroCosto,
		CondicionPago:        rec.CondicionPago,
		Situacion:            rec.Situacion,
		Descripcion:          rec.Descripcion,
		DocumentosURL:        documentosURL,
		UsuarioID:            usuarioID,
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// decimalToFloat64 converts decimal.Decimal to float64
func decimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
