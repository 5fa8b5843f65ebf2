package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/swdash/internal/reader"
	"github.com/charlesng35/swdash/internal/snapshot"
	"github.com/charlesng35/swdash/internal/store"
	appErrors "github.com/charlesng35/swdash/pkg/errors"
	"github.com/charlesng35/swdash/pkg/response"
	appValidator "github.com/charlesng35/swdash/pkg/validator"
)

// TableReader is the part of the read orchestrator the HTTP layer depends on.
type TableReader interface {
	ListTables(ctx context.Context) ([]string, error)
	HasTable(ctx context.Context, table string) (bool, error)
	FindTableLike(ctx context.Context, keywords ...string) (string, bool, error)
	ReadTable(ctx context.Context, table string, opts ...reader.ReadOption) (*snapshot.Snapshot, error)
	PickTimeColumn(snap *snapshot.Snapshot) (string, bool)
	CachedAt(table string) (time.Time, bool)
	ClearCache(table string) int
}

// TableHandler serves table listings and table reads.
type TableHandler struct {
	reader TableReader
}

// NewTableHandler constructs a TableHandler.
func NewTableHandler(r TableReader) (*TableHandler, error) {
	if r == nil {
		return nil, errors.New("table handler: reader is required")
	}
	return &TableHandler{reader: r}, nil
}

type columnDTO struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type tableDTO struct {
	Table      string      `json:"table"`
	Columns    []columnDTO `json:"columns"`
	Rows       [][]any     `json:"rows"`
	RowCount   int         `json:"row_count"`
	TimeColumn string      `json:"time_column,omitempty"`
	CachedAt   *time.Time  `json:"cached_at,omitempty"`
}

func mapSnapshot(table string, snap *snapshot.Snapshot, timeColumn string) tableDTO {
	dto := tableDTO{
		Table:      table,
		Columns:    make([]columnDTO, 0, len(snap.Columns)),
		Rows:       snap.Rows,
		RowCount:   snap.Len(),
		TimeColumn: timeColumn,
	}
	if dto.Rows == nil {
		dto.Rows = [][]any{}
	}
	for _, col := range snap.Columns {
		dto.Columns = append(dto.Columns, columnDTO{Name: col.Name, Kind: col.Kind.String()})
	}
	return dto
}

// List handles GET /api/tables.
func (h *TableHandler) List(c *gin.Context) {
	tables, err := h.reader.ListTables(c.Request.Context())
	if err != nil {
		response.Error(c, storeError(err))
		return
	}
	if tables == nil {
		tables = []string{}
	}
	response.SuccessWithMeta(c, http.StatusOK, gin.H{"tables": tables}, &response.Meta{Total: len(tables)})
}

// Find handles GET /api/tables/find?keywords=a,b.
func (h *TableHandler) Find(c *gin.Context) {
	keywords := splitKeywords(c.QueryArray("keywords"))
	if len(keywords) == 0 {
		response.Error(c, appErrors.Invalid("keywords is required"))
		return
	}

	name, found, err := h.reader.FindTableLike(c.Request.Context(), keywords...)
	if err != nil {
		response.Error(c, storeError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"keywords": keywords,
		"found":    found,
		"table":    name,
	})
}

// Read handles GET /api/tables/:name. Only cached tables and tables present
// in the store listing are served.
func (h *TableHandler) Read(c *gin.Context) {
	name := c.Param("name")
	if err := appValidator.ValidateVar("table", name, "required,identifier"); err != nil {
		response.Error(c, appErrors.Invalid(formatValidationError(err)))
		return
	}

	opts, err := readOptions(c)
	if err != nil {
		response.Error(c, appErrors.Invalid(err.Error()))
		return
	}

	ctx := c.Request.Context()
	known, err := h.reader.HasTable(ctx, name)
	if err != nil {
		response.Error(c, storeError(err))
		return
	}
	if !known {
		response.Error(c, appErrors.ErrTableNotFound)
		return
	}

	snap, err := h.reader.ReadTable(ctx, name, opts...)
	if err != nil {
		response.Error(c, storeError(err))
		return
	}

	timeColumn, _ := h.reader.PickTimeColumn(snap)
	dto := mapSnapshot(name, snap, timeColumn)
	if at, ok := h.reader.CachedAt(name); ok {
		at = at.UTC()
		dto.CachedAt = &at
	}
	response.SuccessWithMeta(c, http.StatusOK, dto, &response.Meta{Total: dto.RowCount})
}

func readOptions(c *gin.Context) ([]reader.ReadOption, error) {
	limit, err := parseIntQuery(c, "limit", 0)
	if err != nil {
		return nil, err
	}
	if err := appValidator.ValidateVar("limit", limit, "gte=0"); err != nil {
		return nil, errors.New(formatValidationError(err))
	}
	ttl, err := parseDurationQuery(c, "ttl")
	if err != nil {
		return nil, err
	}
	refresh, err := parseBoolQuery(c, "refresh", false)
	if err != nil {
		return nil, err
	}
	useCache, err := parseBoolQuery(c, "cache", true)
	if err != nil {
		return nil, err
	}

	opts := []reader.ReadOption{reader.WithRowCap(limit)}
	if ttl > 0 {
		opts = append(opts, reader.WithTTL(ttl))
	}
	if refresh {
		opts = append(opts, reader.WithForceRefresh())
	}
	if !useCache {
		opts = append(opts, reader.WithoutCache())
	}
	return opts, nil
}

// storeError maps read-path failures onto API errors.
func storeError(err error) *appErrors.AppError {
	switch {
	case errors.Is(err, store.ErrStoreUnavailable):
		return appErrors.ErrStoreUnavailable.WithInternal(err)
	case errors.Is(err, context.DeadlineExceeded):
		return appErrors.ErrStoreTimeout.WithInternal(err)
	default:
		return appErrors.ErrStoreQuery.WithInternal(err)
	}
}
