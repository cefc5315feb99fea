package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/reconcile"
)

// ErrImportInProgress is returned while another import is still running.
var ErrImportInProgress = errors.New("an import is already in progress")

// Importer applies a raw import document to the ledger.
type Importer interface {
	Import(ctx context.Context, data []byte) (reconcile.Result, error)
}

// ImportService feeds backup documents into the ledger, one at a time.
type ImportService struct {
	importer Importer
	client   *http.Client
	maxBytes int64
	sem      *semaphore.Weighted
	busy     atomic.Bool
	logger   *log.Logger
}

func NewImportService(importer Importer, timeout time.Duration, maxBytes int64, logger *log.Logger) *ImportService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ImportService{
		importer: importer,
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		sem:      semaphore.NewWeighted(1),
		logger:   logger.WithComponent(log.ComponentImport),
	}
}

// InProgress reports whether an import holds the slot right now.
func (s *ImportService) InProgress() bool {
	return s.busy.Load()
}

func (s *ImportService) acquire() bool {
	if !s.sem.TryAcquire(1) {
		return false
	}
	s.busy.Store(true)
	return true
}

func (s *ImportService) release() {
	s.busy.Store(false)
	s.sem.Release(1)
}

// ImportFromURL downloads a backup document and imports it. Transport
// errors, non-2xx responses and bodies that are not JSON are
// core.ErrNetworkFailure; a JSON body that is not a ledger document is
// core.ErrInvalidFormat. The ledger is untouched on every failure.
func (s *ImportService) ImportFromURL(ctx context.Context, rawURL string) (reconcile.Result, error) {
	u, err := validateURL(rawURL)
	if err != nil {
		return reconcile.Result{}, err
	}
	if !s.acquire() {
		return reconcile.Result{}, ErrImportInProgress
	}
	defer s.release()

	fields := log.NewFields().WithOperation(log.OpImport)
	fields[log.FieldImportURL] = u.Redacted()

	data, err := s.fetch(ctx, u)
	if err != nil {
		log.LogError(ctx, s.logger, "URL import failed", err, log.OpImport, fields)
		return reconcile.Result{}, err
	}
	res, err := s.importer.Import(ctx, data)
	if err != nil && !errors.Is(err, core.ErrPersistence) {
		log.LogError(ctx, s.logger, "URL import rejected", err, log.OpImport, fields)
		return reconcile.Result{}, err
	}

	s.logger.InfoContext(ctx, "Imported ledger from URL", append(fields.ToSlice(),
		"customers", res.Customers, "transactions", res.Transactions)...)
	return res, err
}

// ImportReader imports a document read from r, such as an uploaded file.
func (s *ImportService) ImportReader(ctx context.Context, r io.Reader) (reconcile.Result, error) {
	if !s.acquire() {
		return reconcile.Result{}, ErrImportInProgress
	}
	defer s.release()

	data, err := s.readCapped(r)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("%w: %v", core.ErrInvalidFormat, err)
	}
	return s.importer.Import(ctx, data)
}

func (s *ImportService) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetworkFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %s", core.ErrNetworkFailure, resp.Status)
	}
	data, err := s.readCapped(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetworkFailure, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: response is not JSON", core.ErrNetworkFailure)
	}
	return data, nil
}

func (s *ImportService) readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", s.maxBytes)
	}
	return data, nil
}

func validateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", core.ErrValidation)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", core.ErrValidation, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: url must use http or https", core.ErrValidation)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: url has no host", core.ErrValidation)
	}
	return u, nil
}
