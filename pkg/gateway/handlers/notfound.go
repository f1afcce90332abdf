package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/vango-go/vai-spy/pkg/gateway/apierror"
	"github.com/vango-go/vai-spy/pkg/gateway/mw"
)

const maxBodyBytes = 64 << 10

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.Write(w, http.StatusNotFound, &apierror.Error{
		Type:      apierror.TypeNotFound,
		Message:   "not found",
		RequestID: reqID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.WriteError(w, err, reqID)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, param, message string) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.Write(w, http.StatusBadRequest, &apierror.Error{
		Type:      apierror.TypeInvalidRequest,
		Message:   message,
		Param:     param,
		RequestID: reqID,
	})
}

// decodeBody strictly decodes a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errTrailingData
	}
	return nil
}
