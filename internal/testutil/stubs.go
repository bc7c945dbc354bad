package testutil

import (
	"context"

	"warelic/internal/models"
	"warelic/internal/scanner"
)

// ScannerStub is a canned scanner.Scanner for staging tests.
type ScannerStub struct {
	Result scanner.Result
	Err    error
	Calls  int
}

// Scan returns the configured verdict or error.
func (s *ScannerStub) Scan(_ context.Context, _ string, _ []byte) (scanner.Result, error) {
	s.Calls++
	if s.Err != nil {
		return scanner.Result{}, s.Err
	}
	return s.Result, nil
}

// PDFUpload builds an UploadedFile with a .pdf name around the given bytes.
func PDFUpload(name string, content []byte) models.UploadedFile {
	return models.UploadedFile{
		Bytes:        content,
		OriginalName: name,
		MimeType:     "application/pdf",
		Size:         int64(len(content)),
	}
}
