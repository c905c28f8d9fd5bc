package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/GrantImport/internal/core"
)

var (
	errNoFile          = errors.New("no file provided")
	errEmptyFile       = errors.New("empty file")
	errUnsupportedType = errors.New("unsupported file type")
)

// ImportData is the per-run payload of an import response.
type ImportData struct {
	ImportID        string   `json:"import_id"`
	DryRun          bool     `json:"dry_run,omitempty"`
	ProcessedGrants int      `json:"processed_grants"`
	ProcessedItems  int      `json:"processed_items"`
	SkippedGrants   []string `json:"skipped_grants,omitempty"`
	Errors          []string `json:"errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// ImportResponse is returned for every servable import request, whether or
// not each sheet committed.
type ImportResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    ImportData `json:"data"`
}

func toResponse(res *core.ImportResult) ImportResponse {
	return ImportResponse{
		Success: true,
		Message: res.Summary(),
		Data: ImportData{
			ImportID:        res.ImportID.String(),
			DryRun:          res.DryRun,
			ProcessedGrants: res.ProcessedGrants,
			ProcessedItems:  res.ProcessedItems,
			SkippedGrants:   res.SkippedGrants,
			Errors:          res.ErrorStrings(),
			Warnings:        res.WarningStrings(),
		},
	}
}

type importFunc func(ctx context.Context, fileName string, r io.Reader) (*core.ImportResult, error)

// handleImport validates and commits an uploaded workbook.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	s.serveWorkbook(w, r, s.service.Import)
}

// handleValidate runs every import check on an uploaded workbook without
// writing anything.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	s.serveWorkbook(w, r, s.service.Validate)
}

func (s *Server) serveWorkbook(w http.ResponseWriter, r *http.Request, run importFunc) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		respondError(w, r, fmt.Errorf("parse upload: %w", err), uploadStatus(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := checkUpload(header); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx := core.WithClient(r.Context(), requestClient(r))
	res, err := run(ctx, header.Filename, file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, toResponse(res))
}

// checkUpload rejects uploads that cannot be a workbook before reading them.
func checkUpload(h *multipart.FileHeader) error {
	if h.Size == 0 {
		return errEmptyFile
	}
	if ext := strings.ToLower(filepath.Ext(h.Filename)); ext != ".xlsx" && ext != ".xlsm" {
		return fmt.Errorf("%w: %q", errUnsupportedType, h.Filename)
	}
	return nil
}

// uploadStatus distinguishes an oversized body from a malformed form.
func uploadStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// requestClient identifies the caller for import history. RemoteAddr has
// already been resolved by TrustedRealIP.
func requestClient(r *http.Request) core.ClientInfo {
	return core.ClientInfo{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}
