package router

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/stepup/internal/pkg/goerror"
)

// maxBodyBytes bounds request bodies; the largest legitimate one is a Begin
// call carrying the released attributes and the pipeline state.
const maxBodyBytes = 64 * 1024

// Request wraps http.Request with helpers for inbound handlers.
type Request struct {
	*http.Request
}

// GetParam reads a path parameter captured by the route pattern.
func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

// DecodeBody strictly decodes a single JSON object into dst: unknown fields,
// trailing data, non-JSON content types and oversized bodies are rejected.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return goerror.NewInvalidFormat()
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return goerror.NewInvalidFormat("Content-Type must be application/json")
		}
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes+1))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat()
	}
	if dec.InputOffset() > maxBodyBytes {
		return goerror.NewInvalidFormat("Request body too large")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat()
	}

	return nil
}
