package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/platform/cache"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// Notifier is told about every invoice that was saved.
type Notifier interface {
	InvoiceIssued(ctx context.Context, inv Invoice) error
}

// Recorder receives invoice counters.
type Recorder interface {
	InvoiceCreated()
	NumberingConflict()
}

// IdempotencyKeys tracks client-supplied request keys for invoice creation.
type IdempotencyKeys interface {
	Claim(ctx context.Context, key string) error
	Complete(ctx context.Context, key, invoiceID string) error
	Resolve(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key string) error
}

// ServiceConfig tunes the service.
type ServiceConfig struct {
	Numbering       Numbering
	Defaults        DraftDefaults
	DefaultPageSize int
	MaxPageSize     int
	SearchLimit     int
	// MaxAttempts bounds how often a save is retried after a duplicate number.
	MaxAttempts int
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.Numbering.Prefix == "" && c.Numbering.Width == 0 {
		c.Numbering = DefaultNumbering
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 10
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	if c.DefaultPageSize > c.MaxPageSize {
		c.DefaultPageSize = c.MaxPageSize
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = c.MaxPageSize * 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

// Service implements the invoice use cases on top of a Repository.
type Service struct {
	repo     Repository
	cfg      ServiceConfig
	cache    *cache.Versioned
	notifier Notifier
	recorder Recorder
	keys     IdempotencyKeys
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithCache caches listings; saves bump the cache version.
func WithCache(c *cache.Versioned) Option {
	return func(s *Service) { s.cache = c }
}

// WithNotifier registers a notifier for saved invoices.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithRecorder registers a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithIdempotency enables replay of creates carrying an idempotency key.
func WithIdempotency(keys IdempotencyKeys) Option {
	return func(s *Service) { s.keys = keys }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs the service.
func NewService(repo Repository, logger *slog.Logger, cfg ServiceConfig, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Numbering returns the invoice number format in use.
func (s *Service) Numbering() Numbering {
	return s.cfg.Numbering
}

// Create validates a draft, freezes its totals and stores it under a freshly
// reserved invoice number. Number reservation and insert share one
// transaction, so an invoice is either stored with a valid number or not at
// all. A duplicate number is retried up to MaxAttempts before ErrConflict is
// returned. The caller's draft is never modified.
func (s *Service) Create(ctx context.Context, draft Draft) (*Invoice, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	inv := s.prepare(draft.clone())

	var stored Invoice
	var err error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			seq, err := repo.ReserveNumber(ctx)
			if err != nil {
				return fmt.Errorf("reserve number: %w", err)
			}
			inv.Number = seq
			inv.Details.InvoiceNumber = s.cfg.Numbering.Format(seq)
			stored, err = repo.Insert(ctx, inv)
			if err != nil {
				return fmt.Errorf("insert invoice: %w", err)
			}
			return nil
		})
		if !errors.Is(err, shared.ErrConflict) {
			break
		}
		if s.recorder != nil {
			s.recorder.NumberingConflict()
		}
		s.logger.Warn("invoice number conflict, retrying",
			slog.Int64("number", inv.Number), slog.Int("attempt", attempt))
	}
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump invoice cache", slog.Any("error", err))
	}
	if s.recorder != nil {
		s.recorder.InvoiceCreated()
	}
	if s.notifier != nil && stored.Client.Email != "" {
		if err := s.notifier.InvoiceIssued(ctx, stored); err != nil {
			s.logger.Warn("notify invoice issued",
				slog.String("invoice", stored.Details.InvoiceNumber), slog.Any("error", err))
		}
	}
	s.logger.Info("invoice created",
		slog.String("id", stored.ID), slog.String("number", stored.Details.InvoiceNumber))
	return &stored, nil
}

// CreateOnce behaves like Create but stores at most one invoice per key. A
// repeated key returns the invoice created the first time with replayed set.
// A key whose first request is still running yields ErrConflict. Without a
// key or an idempotency store it is plain Create.
func (s *Service) CreateOnce(ctx context.Context, key string, draft Draft) (inv *Invoice, replayed bool, err error) {
	if key == "" || s.keys == nil {
		inv, err = s.Create(ctx, draft)
		return inv, false, err
	}
	if err := draft.Validate(); err != nil {
		return nil, false, err
	}

	if err := s.keys.Claim(ctx, key); err != nil {
		if !errors.Is(err, shared.ErrIdempotencyConflict) {
			return nil, false, fmt.Errorf("create invoice: %w", err)
		}
		id, err := s.keys.Resolve(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("create invoice: %w", err)
		}
		if id == "" {
			return nil, false, fmt.Errorf("idempotency key %q still in progress: %w", key, shared.ErrConflict)
		}
		inv, err = s.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return inv, true, nil
	}

	inv, err = s.Create(ctx, draft)
	if err != nil {
		if relErr := s.keys.Release(ctx, key); relErr != nil {
			s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", relErr))
		}
		return nil, false, err
	}
	if err := s.keys.Complete(ctx, key, inv.ID); err != nil {
		s.logger.Warn("complete idempotency key", slog.String("key", key), slog.Any("error", err))
	}
	return inv, false, nil
}

func (s *Service) prepare(d Draft) Invoice {
	for i := range d.LineItems {
		if d.LineItems[i].ID == "" {
			d.LineItems[i].ID = uuid.NewString()
		}
	}
	if d.Details.DueDate.IsZero() {
		d.Details.DueDate = d.Details.Date.AddDays(s.cfg.Defaults.DueDays)
	}
	status := d.Status
	if status == "" {
		status = StatusPending
	}
	inv := Invoice{
		ID:        uuid.NewString(),
		Client:    d.Client,
		Details:   d.Details,
		LineItems: d.LineItems,
		Status:    status,
	}
	inv.applyTotals(d.Totals().Rounded(StoredScale))
	return inv
}

// Get returns the invoice with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invoice %s: %w", id, shared.ErrNotFound)
	}
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorate(inv)
	return inv, nil
}

// ListRequest asks for one page of invoices matching Options.
type ListRequest struct {
	Options  FilterOptions
	Page     int
	PageSize int
}

// ListResult is one page of invoices plus pagination bookkeeping.
type ListResult struct {
	Invoices   []Invoice         `json:"invoices"`
	Pagination shared.Pagination `json:"pagination"`
}

// List returns a page of matching invoices, newest first. A page past the
// last one yields no invoices and no error.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	pred, err := BuildFilter(req.Options)
	if err != nil {
		return ListResult{}, err
	}
	page, pageSize, err := s.pageParams(req.Page, req.PageSize)
	if err != nil {
		return ListResult{}, err
	}
	offset := shared.BuildPage(page, pageSize, 0).Offset

	var loaderErr error
	loader := func(ctx context.Context) (any, error) {
		items, total, err := s.repo.FindMany(ctx, pred, offset, pageSize)
		if err != nil {
			loaderErr = err
			return nil, err
		}
		return cachedPage{Invoices: items, Total: total}, nil
	}

	var result cachedPage
	key, err := s.cache.BuildKey(ctx, "list", pred.CacheKey(), strconv.Itoa(page), strconv.Itoa(pageSize))
	if err == nil {
		err = s.cache.FetchJSON(ctx, key, &result, loader)
	}
	if err != nil {
		if loaderErr != nil {
			return ListResult{}, fmt.Errorf("list invoices: %w", loaderErr)
		}
		s.logger.Warn("invoice cache unavailable", slog.Any("error", err))
		items, total, err := s.repo.FindMany(ctx, pred, offset, pageSize)
		if err != nil {
			return ListResult{}, fmt.Errorf("list invoices: %w", err)
		}
		result = cachedPage{Invoices: items, Total: total}
	}

	if result.Invoices == nil {
		result.Invoices = []Invoice{}
	}
	for i := range result.Invoices {
		s.decorate(&result.Invoices[i])
	}
	return ListResult{
		Invoices:   result.Invoices,
		Pagination: shared.NewPagination(page, pageSize, result.Total),
	}, nil
}

type cachedPage struct {
	Invoices []Invoice `json:"invoices"`
	Total    int       `json:"total"`
}

// Search returns every invoice matching opts, newest first, bounded by SearchLimit.
func (s *Service) Search(ctx context.Context, opts FilterOptions) ([]Invoice, error) {
	pred, err := BuildFilter(opts)
	if err != nil {
		return nil, err
	}
	items, _, err := s.repo.FindMany(ctx, pred, 0, s.cfg.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search invoices: %w", err)
	}
	for i := range items {
		s.decorate(&items[i])
	}
	return items, nil
}

// NextNumber previews the next invoice number without reserving it.
func (s *Service) NextNumber(ctx context.Context) (string, error) {
	next, err := NextNumber(ctx, s.repo)
	if err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return s.cfg.Numbering.Format(next), nil
}

// NewDraft returns a default draft carrying the previewed next number.
func (s *Service) NewDraft(ctx context.Context) (Draft, error) {
	number, err := s.NextNumber(ctx)
	if err != nil {
		return Draft{}, err
	}
	return NewDraft(s.cfg.Defaults, number, DateOf(s.now())), nil
}

// Preview computes display totals of a draft without saving it.
func (s *Service) Preview(draft Draft) Totals {
	return draft.Totals().Rounded(DisplayScale)
}

func (s *Service) pageParams(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = s.cfg.DefaultPageSize
	}
	verr := &shared.ValidationError{}
	if page < 1 {
		verr.Add("page", "must be at least 1")
	}
	if pageSize < 1 || pageSize > s.cfg.MaxPageSize {
		verr.Add("limit", fmt.Sprintf("must be between 1 and %d", s.cfg.MaxPageSize))
	}
	if !verr.Empty() {
		return 0, 0, verr
	}
	return page, pageSize, nil
}

// decorate fills the display number of rows stored before it was persisted.
// Stored numbers keep the format they were issued with.
func (s *Service) decorate(inv *Invoice) {
	if inv.Details.InvoiceNumber == "" && inv.Number > 0 {
		inv.Details.InvoiceNumber = s.cfg.Numbering.Format(inv.Number)
	}
}
