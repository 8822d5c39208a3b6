package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/viktsys/tdingest/aggregate"
	"github.com/viktsys/tdingest/models"
	"github.com/viktsys/tdingest/store"
)

// MovementStore is the write side used by the handlers.
type MovementStore interface {
	Record(ctx context.Context, req store.WriteRequest) (store.WriteResult, error)
	Update(ctx context.Context, id uint, req store.UpdateRequest) (models.Movement, error)
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint) (models.Movement, error)
}

// Aggregator is the query side used by the handlers.
type Aggregator interface {
	Instruments() []models.Instrument
	History(ctx context.Context, tituloID int, f aggregate.Filter) ([]models.HistoryBucket, error)
	Compare(ctx context.Context, ids []int, f aggregate.Filter) ([]models.ComparisonBucket, error)
	Series(ctx context.Context, acao models.Action, ids []int, f aggregate.Filter) ([]models.SeriesBucket, error)
}

type Handler struct {
	store   MovementStore
	agg     Aggregator
	ping    func(ctx context.Context) error
	metrics *Metrics
	log     zerolog.Logger
}

// NewHandler wires the handlers. ping may be nil, in which case /health only
// reports that the process is up.
func NewHandler(st MovementStore, agg Aggregator, ping func(ctx context.Context) error, metrics *Metrics, log zerolog.Logger) *Handler {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Handler{
		store:   st,
		agg:     agg,
		ping:    ping,
		metrics: metrics,
		log:     log.With().Str("component", "api").Logger(),
	}
}

type recordRequest struct {
	CategoriaTitulo string   `json:"categoria_titulo" binding:"required"`
	Ano             int      `json:"ano" binding:"required"`
	Mes             *int     `json:"mes" binding:"required"`
	Acao            string   `json:"acao" binding:"required,acao"`
	Valor           *float64 `json:"valor" binding:"required,gte=0"`
}

type updateRequest struct {
	Ano   *int     `json:"ano"`
	Mes   *int     `json:"mes"`
	Acao  *string  `json:"acao" binding:"omitempty,acao"`
	Valor *float64 `json:"valor" binding:"omitempty,gte=0"`
}

func (h *Handler) Health(c *gin.Context) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, h.agg.Instruments())
}

func (h *Handler) RecordMovement(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, err)
		return
	}
	acao, _ := models.ParseAction(req.Acao)

	res, err := h.store.Record(c.Request.Context(), store.WriteRequest{
		Categoria: strings.TrimSpace(req.CategoriaTitulo),
		Ano:       req.Ano,
		Mes:       *req.Mes,
		Acao:      acao,
		Valor:     *req.Valor,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.metrics.observeWrite(res.Operation())

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"status":       "ok",
		"operacao":     res.Operation(),
		"movimento_id": res.MovementID,
	})
}

func (h *Handler) GetMovement(c *gin.Context) {
	id, err := movementID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	m, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateMovement(c *gin.Context) {
	id, err := movementID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, err)
		return
	}

	upd := store.UpdateRequest{Ano: req.Ano, Mes: req.Mes, Valor: req.Valor}
	if req.Acao != nil {
		acao, _ := models.ParseAction(*req.Acao)
		upd.Acao = &acao
	}

	m, err := h.store.Update(c.Request.Context(), id, upd)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.metrics.observeWrite("updated")
	c.JSON(http.StatusOK, gin.H{"status": "ok", "updated_id": m.ID, "movimento": m})
}

func (h *Handler) DeleteMovement(c *gin.Context) {
	id, err := movementID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.metrics.observeWrite("deleted")
	c.JSON(http.StatusOK, gin.H{"status": "ok", "deleted_id": id})
}

func (h *Handler) History(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		h.fail(c, models.InvalidArgument("id", c.Param("id"), "instrument id must be an integer"))
		return
	}
	f, err := parseFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	buckets, err := h.agg.History(c.Request.Context(), id, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

func (h *Handler) Compare(c *gin.Context) {
	ids, err := parseIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	f, err := parseFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	buckets, err := h.agg.Compare(c.Request.Context(), ids, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

// Series returns a handler for the sale-only or redemption-only series.
func (h *Handler) Series(acao models.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := parseIDs(c)
		if err != nil {
			h.fail(c, err)
			return
		}
		f, err := parseFilter(c)
		if err != nil {
			h.fail(c, err)
			return
		}
		buckets, err := h.agg.Series(c.Request.Context(), acao, ids, f)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, buckets)
	}
}

func movementID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, models.InvalidArgument("id", c.Param("id"), "movement id must be a positive integer")
	}
	return uint(id), nil
}

// parseIDs reads ?titulos=1,2 and repeated ?titulos=1&titulos=2.
func parseIDs(c *gin.Context) ([]int, error) {
	var ids []int
	for _, raw := range c.QueryArray("titulos") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, models.InvalidArgument("titulos", part, "instrument ids must be integers")
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func parseFilter(c *gin.Context) (aggregate.Filter, error) {
	var f aggregate.Filter
	var err error

	if f.GroupBy, err = aggregate.ParseGroupBy(c.Query("agrupar")); err != nil {
		return f, err
	}
	if f.Inicio, err = parseDate("data_inicio", c.Query("data_inicio")); err != nil {
		return f, err
	}
	if f.Fim, err = parseDate("data_fim", c.Query("data_fim")); err != nil {
		return f, err
	}
	return f, nil
}

// parseDate accepts YYYY-MM-DD or YYYY-MM. Empty means no bound.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, models.InvalidArgument(field, s, "date must be YYYY-MM-DD or YYYY-MM")
}
