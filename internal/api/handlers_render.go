package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dgallion1/docforge/internal/assembler"
	"github.com/dgallion1/docforge/internal/render"
)

const (
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePDF  = "application/pdf"
)

// decodeJSON reads a size-limited JSON body into v and writes the error
// response itself when it fails.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// wantsRaw reports whether the caller asked for the document bytes
// instead of a JSON envelope.
func wantsRaw(r *http.Request) bool {
	raw, _ := strconv.ParseBool(r.URL.Query().Get("raw"))
	return raw
}

func writeRaw(w http.ResponseWriter, mime, name, renderID string, data []byte) {
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, sanitizeFilename(name)))
	w.Header().Set("X-Render-Id", renderID)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type docxResponse struct {
	*render.DocxResult
	Document []byte `json:"document"`
}

func (s *Server) handleRenderDocx(w http.ResponseWriter, r *http.Request) {
	var in assembler.GenerationInput
	if !s.decodeJSON(w, r, s.cfg.MaxRequestBytes, &in) {
		return
	}
	ctx, cancel := s.renderContext(r)
	defer cancel()

	res, err := s.svc.RenderDocx(ctx, in)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	if wantsRaw(r) {
		w.Header().Set("X-Validation-Valid", strconv.FormatBool(res.Validation.Valid))
		w.Header().Set("X-Validation-Warnings", strconv.Itoa(len(res.Validation.Warnings)))
		writeRaw(w, mimeDocx, res.RenderID+".docx", res.RenderID, res.Document)
		return
	}
	writeJSON(w, http.StatusOK, docxResponse{DocxResult: res, Document: res.Document})
}

type batchRequest struct {
	Inputs []assembler.GenerationInput `json:"inputs"`
}

type batchItemResponse struct {
	Index  int           `json:"index"`
	Result *docxResponse `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
	Status int           `json:"status"`
}

func (s *Server) handleRenderDocxBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decodeJSON(w, r, s.cfg.MaxRequestBytes*int64(max(1, s.cfg.BatchLimit)), &req) {
		return
	}
	if len(req.Inputs) == 0 {
		jsonError(w, "at least one input is required", http.StatusBadRequest)
		return
	}
	ctx, cancel := s.renderContext(r)
	defer cancel()

	items := s.svc.RenderDocxBatch(ctx, req.Inputs)
	out := make([]batchItemResponse, len(items))
	failed := 0
	for i, it := range items {
		out[i] = batchItemResponse{Index: it.Index, Status: http.StatusOK}
		if err := it.Err(); err != nil {
			failed++
			out[i].Error = it.Error
			out[i].Status = statusFor(err)
			continue
		}
		out[i].Result = &docxResponse{DocxResult: it.Result, Document: it.Result.Document}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "failed": failed})
}

type pdfResponse struct {
	*render.PDFResult
	PDF []byte `json:"pdf"`
}

func (s *Server) handleRenderPDF(w http.ResponseWriter, r *http.Request) {
	var in render.PDFInput
	if !s.decodeJSON(w, r, s.cfg.MaxRequestBytes, &in) {
		return
	}
	ctx, cancel := s.renderContext(r)
	defer cancel()

	res, err := s.svc.RenderPDF(ctx, in)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	if wantsRaw(r) {
		w.Header().Set("X-Fill-Strategy", string(res.Strategy))
		w.Header().Set("X-Skipped-Fields", strconv.Itoa(len(res.SkippedFields)+len(res.SkippedPlacements)))
		writeRaw(w, mimePDF, res.RenderID+".pdf", res.RenderID, res.PDF)
		return
	}
	writeJSON(w, http.StatusOK, pdfResponse{PDFResult: res, PDF: res.PDF})
}
