package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
	"github.com/joseph-ayodele/idverify/internal/pipeline"
)

type stubPipeline struct {
	doc       entity.RawDocument
	debug     bool
	submitted map[string]string
	extracted map[string]string
	err       error
	records   map[uuid.UUID]entity.ExtractionRecord
}

func (p *stubPipeline) Extract(_ context.Context, doc entity.RawDocument, opts ...pipeline.ExtractOption) (pipeline.ExtractResponse, error) {
	p.doc = doc
	resp := pipeline.ExtractResponse{DocumentID: uuid.New(), Fields: map[string]string{"name": "Ravi Kumar"}, Source: "pattern"}
	p.debug = len(opts) > 0
	if p.debug {
		resp.Debug = &pipeline.DebugInfo{Engine: "stub"}
	}
	return resp, p.err
}

func (p *stubPipeline) Verify(_ context.Context, submitted, extracted map[string]string) entity.VerificationReport {
	p.submitted, p.extracted = submitted, extracted
	return entity.VerificationReport{Matches: map[string]float64{"name": 1}, Mismatches: []entity.Mismatch{}, OverallScore: 1, Passed: true}
}

func (p *stubPipeline) VerifyExtraction(ctx context.Context, id uuid.UUID, submitted map[string]string) (entity.VerificationReport, error) {
	rec, err := p.Extraction(ctx, id)
	if err != nil {
		return entity.VerificationReport{}, err
	}
	return p.Verify(ctx, submitted, rec.Fields), nil
}

func (p *stubPipeline) Extraction(_ context.Context, id uuid.UUID) (entity.ExtractionRecord, error) {
	rec, ok := p.records[id]
	if !ok {
		return entity.ExtractionRecord{}, common.NewAppError("EXTRACTION_NOT_FOUND", "no extraction "+id.String(), common.ErrNotFound)
	}
	return rec, nil
}

type stubExporter struct {
	from, to *time.Time
}

func (e *stubExporter) ExportXLSX(_ context.Context, from, to *time.Time) ([]byte, error) {
	e.from, e.to = from, to
	return []byte("PK\x03\x04"), nil
}

func newTestServer(p Pipeline, cfg common.ServerConfig) http.Handler {
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{"*"}
	}
	return New(p, &stubExporter{}, nil, cfg, nil).Handler()
}

func multipartBody(t *testing.T, debug string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files[]", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	if debug != "" {
		require.NoError(t, mw.WriteField("debug", debug))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body map[string]errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealthz(t *testing.T) {
	h := New(&stubPipeline{}, nil, func(context.Context) error { return errors.New("db down") }, common.ServerConfig{}, nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = newTestServer(&stubPipeline{}, common.ServerConfig{})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestExtract_OK(t *testing.T) {
	p := &stubPipeline{}
	h := newTestServer(p, common.ServerConfig{})
	body, ct := multipartBody(t, "true", map[string]string{"front.jpg": "aaa", "back.jpg": "bbb"})

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	assert.Len(t, p.doc.Pages, 2)
	assert.True(t, p.debug)

	var resp pipeline.ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Ravi Kumar", resp.Fields["name"])
	require.NotNil(t, resp.Debug)
}

func TestExtract_RequiresFiles(t *testing.T) {
	h := newTestServer(&stubPipeline{}, common.ServerConfig{})
	body, ct := multipartBody(t, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtract_FailureMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"timeout", common.NewExtractionFailed("recognition_timeout", common.ErrRecognitionTimeout), http.StatusGatewayTimeout, "recognition_timeout"},
		{"unavailable", common.NewExtractionFailed("recognition_unavailable", common.ErrRecognitionUnavailable), http.StatusBadGateway, "recognition_unavailable"},
		{"bad image", common.NewAppError("INVALID_IMAGE", "decode page", common.ErrInvalidInput), http.StatusBadRequest, ""},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&stubPipeline{err: tt.err}, common.ServerConfig{})
			body, ct := multipartBody(t, "", map[string]string{"a.png": "x"})
			req := httptest.NewRequest(http.MethodPost, "/v1/extract", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, tt.reason, e.Reason)
			assert.NotEmpty(t, e.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", e.Message)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	p := &stubPipeline{}
	h := newTestServer(p, common.ServerConfig{})

	body := `{"submitted_fields":{"Full Name":"Ravi Kumar","DOB":"01/02/1990"},"extracted_fields":{"name":"Ravi Kumar"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/verify", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"matches":{"name":1},"mismatches":[],"overall_score":1,"verification_passed":true}`, rec.Body.String())
	assert.Equal(t, "Ravi Kumar", p.submitted["Full Name"])
}

func TestVerify_Rejects(t *testing.T) {
	h := newTestServer(&stubPipeline{}, common.ServerConfig{})
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", `nope`, http.StatusBadRequest},
		{"bad key", `{"submitted_fields":{"name!":"x"}}`, http.StatusBadRequest},
		{"long value", `{"submitted_fields":{"name":"` + strings.Repeat("a", 600) + `"}}`, http.StatusBadRequest},
		{"bad extraction id", `{"submitted_fields":{"name":"x"},"extraction_id":"123"}`, http.StatusBadRequest},
		{"unknown extraction", `{"submitted_fields":{"name":"x"},"extraction_id":"` + uuid.NewString() + `"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/verify", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestVerify_AgainstStoredExtraction(t *testing.T) {
	id := uuid.New()
	p := &stubPipeline{records: map[uuid.UUID]entity.ExtractionRecord{
		id: {ID: id, Fields: map[string]string{"name": "Ravi Kumar"}},
	}}
	h := newTestServer(p, common.ServerConfig{})

	body := `{"submitted_fields":{"name":"Ravi Kumar"},"extraction_id":"` + id.String() + `"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/verify", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"name": "Ravi Kumar"}, p.extracted)
}

func TestGetExtraction(t *testing.T) {
	id := uuid.New()
	p := &stubPipeline{records: map[uuid.UUID]entity.ExtractionRecord{
		id: {ID: id, Fields: map[string]string{"age": "34"}, Source: "pattern"},
	}}
	h := newTestServer(p, common.ServerConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/extractions/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got entity.ExtractionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "34", got.Fields["age"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/extractions/nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/extractions/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "EXTRACTION_NOT_FOUND", decodeError(t, rec).Code)
}

func TestExport(t *testing.T) {
	exp := &stubExporter{}
	h := New(&stubPipeline{}, exp, nil, common.ServerConfig{AllowedOrigins: []string{"*"}}, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/export.xlsx?from=2026-01-01&to=2026-01-31", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	require.NotNil(t, exp.from)
	require.NotNil(t, exp.to)
	assert.Equal(t, 31, exp.to.Day())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/export.xlsx?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(&stubPipeline{}, common.ServerConfig{RateLimit: 0.001, RateBurst: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/extractions/"+uuid.NewString(), nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health is not rate limited")
}
