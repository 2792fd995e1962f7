package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joseph-ayodele/idverify/internal/common"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, errCode, msg string) {
	writeJSON(w, code, map[string]errorBody{"error": {
		Code:      errCode,
		Message:   msg,
		RequestID: common.RequestIDFromContext(r.Context()),
	}})
}

// writeAppError maps err through common.HTTPStatus. Internal details are
// not sent for 5xx other than recognition failures.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatus(err)
	body := errorBody{
		Code:      codeFor(err, code),
		Message:   err.Error(),
		RequestID: common.RequestIDFromContext(r.Context()),
	}

	var fe *common.ExtractionFailedError
	if errors.As(err, &fe) {
		body.Reason = fe.Reason
	} else if code == http.StatusInternalServerError {
		body.Message = "internal error"
	}
	writeJSON(w, code, map[string]errorBody{"error": body})
}

func codeFor(err error, status int) string {
	var ae *common.AppError
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	switch {
	case errors.Is(err, common.ErrExtractionFailed):
		return "EXTRACTION_FAILED"
	case status == http.StatusBadRequest:
		return "INVALID_INPUT"
	case status == http.StatusNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
