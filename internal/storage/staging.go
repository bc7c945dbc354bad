// Package storage owns the two file areas of the licensing backend: the
// request-scoped staging area holding encrypted uploads for pending change
// requests, and canonical storage holding documents of approved aggregates.
// The two never share paths, so a staged artifact can never leak into a
// canonical listing.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"warelic/internal/models"
	"warelic/internal/scanner"
	"warelic/internal/vault"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultMaxUploadBytes is the per-file size ceiling (10 MiB).
	DefaultMaxUploadBytes = 10 * 1024 * 1024
)

// allowedExtensions is the upload allow-list. Anything else is rejected
// before encryption.
var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
	".xls":  {},
	".xlsx": {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// PendingMove is a promotion whose database row is already committed but whose
// ciphertext still sits at the staged path. The rename happens after the
// transaction; a crash in between is healed by Reconcile at startup.
type PendingMove struct {
	From string
	To   string
}

// Options configures a Store.
type Options struct {
	StagingDir     string
	CanonicalDir   string
	MaxUploadBytes int64
	Scanner        scanner.Scanner
	ScanMode       scanner.Mode
}

// Store stages, promotes, discards, and retrieves encrypted document files.
type Store struct {
	vault          *vault.Vault
	stagingDir     string
	canonicalDir   string
	maxUploadBytes int64
	scanner        scanner.Scanner
	scanMode       scanner.Mode
	logger         *slog.Logger
}

// New builds a Store. StagingDir and CanonicalDir must differ so staged and
// canonical artifacts cannot collide on name.
func New(v *vault.Vault, opts Options) (*Store, error) {
	if opts.StagingDir == "" || opts.CanonicalDir == "" {
		return nil, errors.New("storage: staging and canonical directories are required")
	}
	if filepath.Clean(opts.StagingDir) == filepath.Clean(opts.CanonicalDir) {
		return nil, errors.New("storage: staging and canonical directories must differ")
	}
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	mode := opts.ScanMode
	if mode == "" {
		mode = scanner.ModePermissive
	}
	return &Store{
		vault:          v,
		stagingDir:     opts.StagingDir,
		canonicalDir:   opts.CanonicalDir,
		maxUploadBytes: maxBytes,
		scanner:        opts.Scanner,
		scanMode:       mode,
		logger:         slog.Default(),
	}, nil
}

// Stage validates, scans, encrypts, and writes one uploaded file into the
// request-scoped staging directory. The returned record is not yet persisted;
// the caller inserts it inside the submit transaction.
func (s *Store) Stage(ctx context.Context, kind string, requestID uint, slot string, file models.UploadedFile) (*models.StagedDocument, error) {
	if len(file.Bytes) == 0 {
		return nil, models.NewValidationError("No file content uploaded")
	}
	if int64(len(file.Bytes)) > s.maxUploadBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadBytes/(1024*1024)))
	}
	ext := strings.ToLower(filepath.Ext(file.OriginalName))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, models.NewValidationError(fmt.Sprintf("File type %q is not allowed", ext))
	}

	if err := s.scan(ctx, file); err != nil {
		return nil, err
	}

	ciphertext, iv, tag, err := s.vault.Seal(file.Bytes)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	rel := filepath.Join(kind, fmt.Sprintf("%d", requestID), uuid.New().String()+ext)
	path := filepath.Join(s.stagingDir, rel)
	if err := writeFile(path, ciphertext); err != nil {
		return nil, models.NewInternalError(err)
	}

	return &models.StagedDocument{
		RequestKind:  kind,
		RequestID:    requestID,
		Slot:         slot,
		Path:         path,
		IV:           iv,
		AuthTag:      tag,
		MimeType:     file.MimeType,
		OriginalName: file.OriginalName,
		SizeBytes:    file.Size,
	}, nil
}

func (s *Store) scan(ctx context.Context, file models.UploadedFile) error {
	if s.scanner == nil {
		return nil
	}
	result, err := s.scanner.Scan(ctx, file.OriginalName, file.Bytes)
	if err != nil {
		if errors.Is(err, scanner.ErrUnavailable) {
			if s.scanMode == scanner.ModeMandatory {
				return models.NewValidationError("Malware scan unavailable; upload rejected")
			}
			s.logger.Warn("malware scan skipped",
				slog.String("file", file.OriginalName),
				slog.String("reason", err.Error()),
			)
			return nil
		}
		return models.NewInternalError(err)
	}
	if !result.Clean {
		return models.NewValidationError(fmt.Sprintf("Malware detected in %s (%s)", file.OriginalName, result.Signature))
	}
	return nil
}

// PlanPromotion turns a staged document into a canonical Document record that
// references the FUTURE final path. The ciphertext is not moved and not
// re-encrypted here; the caller commits the row first and then completes the
// move with CompleteMoves.
func (s *Store) PlanPromotion(staged *models.StagedDocument, ownerType string, ownerID uint) (*models.Document, PendingMove) {
	final := filepath.Join(s.canonicalDir, uuid.New().String()+strings.ToLower(filepath.Ext(staged.Path)))
	doc := &models.Document{
		OwnerType:    ownerType,
		OwnerID:      ownerID,
		Slot:         staged.Slot,
		Path:         final,
		StagedPath:   staged.Path,
		IV:           staged.IV,
		AuthTag:      staged.AuthTag,
		MimeType:     staged.MimeType,
		OriginalName: staged.OriginalName,
		SizeBytes:    staged.SizeBytes,
	}
	return doc, PendingMove{From: staged.Path, To: final}
}

// CompleteMoves renames committed promotions into canonical storage. Failures
// are logged, not returned: the database row already points at the final path
// and the startup reconciliation finishes any rename that did not land.
func (s *Store) CompleteMoves(moves []PendingMove) {
	for _, m := range moves {
		if err := os.MkdirAll(filepath.Dir(m.To), 0o750); err != nil {
			s.logger.Error("canonical directory creation failed",
				slog.String("path", m.To), slog.String("error", err.Error()))
			continue
		}
		if err := os.Rename(m.From, m.To); err != nil {
			s.logger.Error("document promotion rename failed; reconciliation will retry",
				slog.String("from", m.From), slog.String("to", m.To), slog.String("error", err.Error()))
		}
	}
}

// Reconcile is the startup sweep closing the crash window between transaction
// commit and file rename: any Document row whose file is absent at the final
// path but still present at the recorded staged path gets the move finished.
// Returns the number of moves completed.
func (s *Store) Reconcile(ctx context.Context, db *gorm.DB) (int, error) {
	var docs []models.Document
	if err := db.WithContext(ctx).Where("staged_path <> ''").Find(&docs).Error; err != nil {
		return 0, err
	}

	finished := 0
	for i := range docs {
		doc := &docs[i]
		if _, err := os.Stat(doc.Path); err == nil {
			continue // move already landed
		}
		if _, err := os.Stat(doc.StagedPath); err != nil {
			s.logger.Error("document missing from both canonical and staged paths",
				slog.Uint64("document_id", uint64(doc.ID)),
				slog.String("path", doc.Path),
			)
			continue
		}
		s.CompleteMoves([]PendingMove{{From: doc.StagedPath, To: doc.Path}})
		if _, err := os.Stat(doc.Path); err == nil {
			finished++
		}
	}
	return finished, nil
}

// Discard removes a staged ciphertext. Failure is logged, never returned,
// because cleanup must not block a rejection transition.
func (s *Store) Discard(staged *models.StagedDocument) {
	s.Remove(staged.Path)
}

// Remove deletes a stored ciphertext best-effort. Used for rejection cleanup
// and for canonical files orphaned by an approved delete.
func (s *Store) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Error("document file cleanup failed",
			slog.String("path", path), slog.String("error", err.Error()))
	}
}

// Retrieve reads and decrypts a stored ciphertext. Records with empty iv/tag
// are legacy plaintext and are returned as-is; new code never writes them.
func (s *Store) Retrieve(path, ivHex, tagHex string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304: path comes from our own rows, never from user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.NewNotFoundError("Document file", path)
		}
		return nil, models.NewInternalError(err)
	}
	if ivHex == "" && tagHex == "" {
		return data, nil
	}
	plaintext, err := s.vault.Open(data, ivHex, tagHex)
	if err != nil {
		return nil, models.NewDecryptionError(err)
	}
	return plaintext, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
