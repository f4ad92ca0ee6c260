package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"iamcore/internal/iam"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg, "message": msg})
}

// writeIAMError maps a typed iam.Error to spec §7's status codes. Any other
// error is treated as an internal error; storage errors are always one of
// iam.Error's kinds, so this is the single place that translation happens.
func writeIAMError(w http.ResponseWriter, err error) {
	var e *iam.Error
	if !errors.As(err, &e) {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	switch e.Kind {
	case iam.KindNotFound:
		writeError(w, http.StatusNotFound, e.Error())
	case iam.KindAlreadyExists:
		writeError(w, http.StatusConflict, e.Error())
	case iam.KindAuthenticationFailed:
		writeError(w, http.StatusUnauthorized, "request could not be authenticated")
	case iam.KindNotAuthorized:
		writeError(w, http.StatusForbidden, "not authorized")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// pagination parses the "offset" and "limit" query parameters, defaulting
// limit to 100 and capping it at 1000.
func pagination(r *http.Request) (offset, limit int) {
	offset = parseIntDefault(r.URL.Query().Get("offset"), 0)
	limit = parseIntDefault(r.URL.Query().Get("limit"), 100)
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
