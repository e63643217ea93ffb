package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/facturaPE/invoice-intake-service/internal/auth"
	"github.com/facturaPE/invoice-intake-service/internal/models"
)

func testServer(t *testing.T) (http.Handler, string) {
	t.Helper()
	if err := auth.Init(); err != nil {
		t.Fatalf("auth.Init: %v", err)
	}
	token, err := auth.GenerateToken("u-1", "ap@acme.pe", "Ana Paredes", "analista", "acme", "ACME S.A.C.")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	h := NewHandler(&models.Config{})
	return auth.JWTMiddleware(h.SetupRoutes()), token
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".bin")
		if err != nil {
			t.Fatalf("CreateFormFile(%s): %v", field, err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	return body, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	router, _ := testServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Status = %q", resp.Status)
	}
	if resp.Database.Available {
		t.Error("Database.Available = true without a pool")
	}
	if resp.Storage.Available {
		t.Error("Storage.Available = true without a client")
	}
}

func TestReceptionRequiresToken(t *testing.T) {
	router, _ := testServer(t)

	body, contentType := multipartBody(t, map[string]string{FieldXML: "<Invoice/>"})
	req := httptest.NewRequest("POST", "/api/recepcion", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestReceptionReportsMissingDocuments(t *testing.T) {
	router, token := testServer(t)

	body, contentType := multipartBody(t, map[string]string{FieldXML: "<Invoice/>"})
	req := httptest.NewRequest("POST", "/api/recepcion", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp["error"], FieldFacturaPDF) || !strings.Contains(resp["error"], FieldOCPDF) {
		t.Errorf("error = %q, want both missing fields named", resp["error"])
	}
	if strings.Contains(resp["error"], FieldXML) {
		t.Errorf("error = %q names a field that was present", resp["error"])
	}
}

func TestReceptionFailedStageAbortsRun(t *testing.T) {
	router, token := testServer(t)

	body, contentType := multipartBody(t, map[string]string{
		FieldXML:        "no es un XML valido",
		FieldFacturaPDF: "tampoco es un PDF",
		FieldOCPDF:      "tampoco es un PDF",
	})
	req := httptest.NewRequest("POST", "/api/recepcion", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp ReceptionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success {
		t.Error("Success = true for an unparseable XML")
	}
	if resp.Record != nil {
		t.Error("Record present despite failed stage")
	}
	if st := resp.Stages[FieldXML]; st.OK || st.Error == "" {
		t.Errorf("xml stage = %+v, want failed with message", st)
	}
}

func TestQueueEndpointsNeedDatabase(t *testing.T) {
	router, token := testServer(t)

	for _, ep := range []string{"/api/conciliaciones", "/api/stats"} {
		req := httptest.NewRequest("GET", ep, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", ep, rr.Code)
		}
	}
}
