package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pariolab/pario/internal/config"
	"github.com/pariolab/pario/internal/decomp"
	"github.com/pariolab/pario/internal/openfile"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServerEndpoints(t *testing.T) {
	files := openfile.NewRegistry()
	decomps := decomp.NewRegistry()
	srv := NewServer(":0", files, decomps)

	if rec := get(t, srv.Handler(), "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := get(t, srv.Handler(), "/metrics"); rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}

	mgr := decomp.NewManager(decomps, config.Default())
	d, err := mgr.Create(decomp.ElemDouble, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	d.LocalLen = 16

	rec := get(t, srv.Handler(), "/decomps")
	if rec.Code != http.StatusOK {
		t.Fatalf("decomps: %d", rec.Code)
	}
	var body struct {
		Decomps []struct {
			ID       int    `json:"id"`
			BaseType string `json:"base_type"`
			LocalLen int64  `json:"local_len"`
		} `json:"decomps"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Decomps) != 1 || body.Decomps[0].BaseType != "double" || body.Decomps[0].LocalLen != 16 {
		t.Fatalf("decomps body: %+v", body)
	}

	if rec := get(t, srv.Handler(), "/files"); rec.Code != http.StatusOK {
		t.Fatalf("files: %d", rec.Code)
	}
}
