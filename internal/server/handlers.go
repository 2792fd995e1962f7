package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
	"github.com/joseph-ayodele/idverify/internal/pipeline"
)

const (
	maxFieldValueLen = 512
	maxFields        = 64
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn("health.check.failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
				fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes))
			return
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "expected multipart/form-data with files[]")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := uploadedFiles(r.MultipartForm)
	if len(headers) == 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "at least one file is required in files[]")
		return
	}

	doc := entity.RawDocument{}
	if raw := strings.TrimSpace(r.FormValue("document_id")); raw != "" {
		v := common.NewValidator().Field("document_id", raw, common.UUID)
		if err := common.ValidateAndReturnError(v); err != nil {
			writeAppError(w, r, err)
			return
		}
		doc.ID = uuid.MustParse(raw)
	}
	for _, fh := range headers {
		page, err := readPage(fh)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		doc.Pages = append(doc.Pages, page)
	}

	var opts []pipeline.ExtractOption
	if debug, _ := strconv.ParseBool(r.FormValue("debug")); debug {
		opts = append(opts, pipeline.WithDebug(true))
	}
	resp, err := s.svc.Extract(r.Context(), doc, opts...)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func uploadedFiles(form *multipart.Form) []*multipart.FileHeader {
	for _, key := range []string{"files[]", "files", "file"} {
		if fhs := form.File[key]; len(fhs) > 0 {
			return fhs
		}
	}
	return nil
}

func readPage(fh *multipart.FileHeader) (entity.RawPage, error) {
	f, err := fh.Open()
	if err != nil {
		return entity.RawPage{}, common.NewAppError("INVALID_INPUT", "cannot read "+fh.Filename, common.ErrInvalidInput)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return entity.RawPage{}, common.NewAppError("INVALID_INPUT", "cannot read "+fh.Filename, common.ErrInvalidInput)
	}
	if len(data) == 0 {
		return entity.RawPage{}, common.NewAppError("INVALID_INPUT", fh.Filename+" is empty", common.ErrInvalidInput)
	}
	return entity.RawPage{
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

type verifyRequest struct {
	Submitted    map[string]string `json:"submitted_fields"`
	Extracted    map[string]string `json:"extracted_fields"`
	ExtractionID string            `json:"extraction_id,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "body must be a JSON object with submitted_fields and extracted_fields")
		return
	}
	if err := validateVerify(req); err != nil {
		writeAppError(w, r, err)
		return
	}

	if req.ExtractionID != "" {
		report, err := s.svc.VerifyExtraction(r.Context(), uuid.MustParse(req.ExtractionID), req.Submitted)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Verify(r.Context(), req.Submitted, req.Extracted))
}

// validateVerify checks field names after canonicalization, so "Full Name"
// and "DOB" are accepted.
func validateVerify(req verifyRequest) error {
	v := common.NewValidator()
	if req.ExtractionID != "" {
		v.Field("extraction_id", req.ExtractionID, common.UUID)
	}
	if len(req.Submitted)+len(req.Extracted) > 2*maxFields {
		v.Field("fields", "", func(name string, _ interface{}) *common.ValidationError {
			return &common.ValidationError{Field: name, Message: fmt.Sprintf("at most %d fields per side", maxFields)}
		})
	}
	for side, m := range map[string]map[string]string{"submitted_fields": req.Submitted, "extracted_fields": req.Extracted} {
		for k, val := range m {
			key, _ := constants.Canonicalize(k)
			v.Field(side+"."+k, string(key), common.FieldKeyFormat)
			v.Field(side+"."+k, val, common.MaxLength(maxFieldValueLen))
		}
	}
	return common.ValidateAndReturnError(v)
}

func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "id must be a UUID")
		return
	}
	rec, err := s.svc.Extraction(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.export == nil {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "export is not enabled")
		return
	}
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "to must be YYYY-MM-DD")
		return
	}

	xlsx, err := s.export.ExportXLSX(r.Context(), from, to)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "error", err)
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="idverify-export.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
