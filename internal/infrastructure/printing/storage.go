package printing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrReceiptNotFound is returned by Get when no archived PDF exists at path
var ErrReceiptNotFound = errors.New("receipt not found")

// ErrInvalidReceiptPath is wrapped when a path is empty, absolute or
// escapes the archive
var ErrInvalidReceiptPath = errors.New("invalid receipt path")

// ReceiptStorage archives rendered receipt PDFs
type ReceiptStorage interface {
	// Store saves a PDF and returns where it landed
	Store(ctx context.Context, req *StoreRequest) (*StoreResult, error)
	// Get retrieves a PDF by the path Store returned
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes a PDF
	Delete(ctx context.Context, path string) error
}

// StoreRequest contains the parameters for storing a receipt PDF
type StoreRequest struct {
	// SaleID names the file; it must be a plain identifier
	SaleID string
	// CreatedAt selects the year/month folder; zero means now
	CreatedAt time.Time
	// PDFData is the raw PDF content
	PDFData []byte
}

// StoreResult contains the result of storing a PDF
type StoreResult struct {
	// Path is the storage path (relative to base, or the object key)
	Path string
	// URL is where the PDF can be fetched
	URL string
	// Size is the file size in bytes
	Size int64
}

var saleIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// objectPath builds {year}/{month}/{sale_id}.pdf
func objectPath(req *StoreRequest) (string, error) {
	if req == nil {
		return "", NewRenderError(ErrCodeStorageFailed, "store request is nil", nil)
	}
	if !saleIDPattern.MatchString(req.SaleID) || strings.Contains(req.SaleID, "..") {
		return "", NewRenderError(ErrCodeStorageFailed, "invalid sale ID: "+req.SaleID, nil)
	}
	if len(req.PDFData) == 0 {
		return "", NewRenderError(ErrCodeStorageFailed, "PDF data is empty", nil)
	}
	created := req.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return fmt.Sprintf("%d/%02d/%s.pdf", created.Year(), created.Month(), req.SaleID), nil
}

// FileSystemStorageConfig contains configuration for file system storage
type FileSystemStorageConfig struct {
	// BasePath is the root directory for receipt storage
	// Default: ./receipts
	BasePath string
	// BaseURL is the URL prefix the terminal serves archived receipts under
	// Default: /pos/receipts/archive
	BaseURL string
	// Logger for operations
	Logger *zap.Logger
}

// FileSystemStorage stores receipt PDFs on the local file system
type FileSystemStorage struct {
	config *FileSystemStorageConfig
	logger *zap.Logger
}

// NewFileSystemStorage creates a new file system based receipt storage
func NewFileSystemStorage(config *FileSystemStorageConfig) (*FileSystemStorage, error) {
	if config == nil {
		config = &FileSystemStorageConfig{}
	}
	if config.BasePath == "" {
		config.BasePath = "./receipts"
	}
	if config.BaseURL == "" {
		config.BaseURL = "/pos/receipts/archive"
	}

	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed,
			fmt.Sprintf("failed to create storage directory: %s", config.BasePath), err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileSystemStorage{
		config: config,
		logger: logger,
	}, nil
}

// Store saves a PDF file under {base}/{year}/{month}/{sale_id}.pdf
func (s *FileSystemStorage) Store(ctx context.Context, req *StoreRequest) (*StoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}

	relativePath, err := objectPath(req)
	if err != nil {
		return nil, err
	}

	filePath := filepath.Join(s.config.BasePath, filepath.FromSlash(relativePath))
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to create directory", err)
	}
	if err := os.WriteFile(filePath, req.PDFData, 0o644); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to write PDF file", err)
	}

	url := s.GetURL(relativePath)
	s.logger.Info("Receipt PDF stored",
		zap.String("sale_id", req.SaleID),
		zap.String("path", filePath),
		zap.Int("size", len(req.PDFData)))

	return &StoreResult{
		Path: relativePath,
		URL:  url,
		Size: int64(len(req.PDFData)),
	}, nil
}

// Get retrieves a PDF file by its relative path
func (s *FileSystemStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}

	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrReceiptNotFound
		}
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to open PDF file", err)
	}
	return file, nil
}

// Delete removes a PDF file. Deleting a missing file is not an error.
func (s *FileSystemStorage) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}

	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return NewRenderError(ErrCodeStorageFailed, "failed to delete PDF file", err)
	}

	s.logger.Info("Receipt PDF deleted", zap.String("path", path))
	return nil
}

// GetURL returns the accessible URL for a stored PDF
func (s *FileSystemStorage) GetURL(path string) string {
	cleanPath := filepath.ToSlash(filepath.Clean(path))
	return strings.TrimSuffix(s.config.BaseURL, "/") + "/" + cleanPath
}

// resolve maps a relative path onto BasePath, refusing anything that
// would escape it
func (s *FileSystemStorage) resolve(path string) (string, error) {
	cleanPath := filepath.Clean(filepath.FromSlash(path))
	if path == "" || filepath.IsAbs(cleanPath) || containsDotDot(path) {
		s.logger.Warn("Blocked receipt path", zap.String("path", path))
		return "", NewRenderError(ErrCodeStorageFailed, "invalid path", ErrInvalidReceiptPath)
	}

	fullPath := filepath.Join(s.config.BasePath, cleanPath)

	absBase, err := filepath.Abs(s.config.BasePath)
	if err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "failed to resolve base path", err)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "failed to resolve file path", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("Receipt path escape blocked",
			zap.String("path", path),
			zap.String("abs_path", absPath))
		return "", NewRenderError(ErrCodeStorageFailed, "invalid path", ErrInvalidReceiptPath)
	}
	return fullPath, nil
}

// containsDotDot checks the raw path for ".." components
func containsDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	return slices.Contains(parts, "..")
}

var _ ReceiptStorage = (*FileSystemStorage)(nil)
