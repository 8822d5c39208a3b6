package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viktsys/tdingest/aggregate"
	"github.com/viktsys/tdingest/config"
	"github.com/viktsys/tdingest/database"
	"github.com/viktsys/tdingest/models"
	"github.com/viktsys/tdingest/store"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := database.Open(config.Database{Driver: config.DriverSQLite, Path: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, models.DefaultInstruments(), zerolog.Nop()))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	instruments := models.DefaultInstruments()
	ping := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	h := NewHandler(
		store.New(db, instruments, zerolog.Nop()),
		aggregate.New(db, instruments, zerolog.Nop()),
		ping, NewMetrics(), zerolog.Nop(),
	)
	return SetupRoutes(h, zerolog.Nop())
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type writeResponse struct {
	Status      string `json:"status"`
	Operacao    string `json:"operacao"`
	MovimentoID uint   `json:"movimento_id"`
}

func TestHealth(t *testing.T) {
	r := setupTestRouter(t)

	w := doRequest(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealthUnavailable(t *testing.T) {
	h := NewHandler(nil, nil, func(context.Context) error { return errors.New("down") }, nil, zerolog.Nop())
	r := SetupRoutes(h, zerolog.Nop())

	w := doRequest(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestListInstruments(t *testing.T) {
	r := setupTestRouter(t)

	w := doRequest(r, http.MethodGet, "/api/v1/titulos", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]models.Instrument](t, w)
	require.Len(t, got, 6)
	assert.Equal(t, models.Instrument{ID: 4, CategoriaTitulo: "NTN-B Principal"}, got[3])
}

func TestRecordMovementCreatedThenMerged(t *testing.T) {
	r := setupTestRouter(t)
	body := `{"categoria_titulo":"LFT","ano":2020,"mes":1,"acao":"venda","valor":1500000}`

	w := doRequest(r, http.MethodPost, "/api/v1/movimentos", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[writeResponse](t, w)
	assert.Equal(t, "created", created.Operacao)

	w = doRequest(r, http.MethodPost, "/api/v1/movimentos", strings.Replace(body, "1500000", "500000", 1))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	merged := decode[writeResponse](t, w)
	assert.Equal(t, "merged", merged.Operacao)
	assert.Equal(t, created.MovimentoID, merged.MovimentoID)

	w = doRequest(r, http.MethodGet, "/api/v1/movimentos/"+itoa(created.MovimentoID), "")
	require.Equal(t, http.StatusOK, w.Code)
	m := decode[models.Movement](t, w)
	assert.Equal(t, 2_000_000.0, m.ValorReais)
	assert.Equal(t, 2.0, m.ValorMilhoes)
}

func TestRecordMovementErrors(t *testing.T) {
	r := setupTestRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
		field  string
	}{
		{"unknown category", `{"categoria_titulo":"CDB","ano":2020,"mes":1,"acao":"venda","valor":1}`, http.StatusUnprocessableEntity, "INVALID_CATEGORY", "categoria_titulo"},
		{"month out of range", `{"categoria_titulo":"LFT","ano":2020,"mes":13,"acao":"venda","valor":1}`, http.StatusUnprocessableEntity, "INVALID_MONTH", "mes"},
		{"negative amount", `{"categoria_titulo":"LFT","ano":2020,"mes":1,"acao":"venda","valor":-1}`, http.StatusBadRequest, "INVALID_ARGUMENT", "valor"},
		{"bad action", `{"categoria_titulo":"LFT","ano":2020,"mes":1,"acao":"compra","valor":1}`, http.StatusBadRequest, "INVALID_ARGUMENT", "acao"},
		{"missing month", `{"categoria_titulo":"LFT","ano":2020,"acao":"venda","valor":1}`, http.StatusBadRequest, "INVALID_ARGUMENT", "mes"},
		{"wrong type", `{"categoria_titulo":"LFT","ano":"2020","mes":1,"acao":"venda","valor":1}`, http.StatusBadRequest, "INVALID_ARGUMENT", "ano"},
		{"malformed", `{"categoria_titulo":`, http.StatusBadRequest, "INVALID_ARGUMENT", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/v1/movimentos", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			got := decode[APIError](t, w)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.code, got.ErrorCode)
			if tt.field != "" {
				require.NotNil(t, got.Details)
				assert.Equal(t, tt.field, got.Details.Field)
			}
		})
	}
}

func TestUpdateMovementConflict(t *testing.T) {
	r := setupTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/movimentos", `{"categoria_titulo":"LTN","ano":2020,"mes":1,"acao":"venda","valor":10}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = doRequest(r, http.MethodPost, "/api/v1/movimentos", `{"categoria_titulo":"LTN","ano":2020,"mes":2,"acao":"venda","valor":20}`)
	require.Equal(t, http.StatusCreated, w.Code)
	b := decode[writeResponse](t, w)

	w = doRequest(r, http.MethodPatch, "/api/v1/movimentos/"+itoa(b.MovimentoID), `{"mes":1}`)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "CONFLICT", decode[APIError](t, w).ErrorCode)

	w = doRequest(r, http.MethodPatch, "/api/v1/movimentos/"+itoa(b.MovimentoID), `{"mes":3,"valor":7000000}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated struct {
		UpdatedID uint            `json:"updated_id"`
		Movimento models.Movement `json:"movimento"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, b.MovimentoID, updated.UpdatedID)
	assert.Equal(t, 3, updated.Movimento.Mes)
	assert.Equal(t, 7.0, updated.Movimento.ValorMilhoes)
}

func TestUpdateAndDeleteNotFound(t *testing.T) {
	r := setupTestRouter(t)

	w := doRequest(r, http.MethodPatch, "/api/v1/movimentos/42", `{"mes":3}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodDelete, "/api/v1/movimentos/42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[APIError](t, w).ErrorCode)

	w = doRequest(r, http.MethodDelete, "/api/v1/movimentos/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteMovement(t *testing.T) {
	r := setupTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/movimentos", `{"categoria_titulo":"NTN-C","ano":2020,"mes":1,"acao":"resgate","valor":10}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := itoa(decode[writeResponse](t, w).MovimentoID)

	w = doRequest(r, http.MethodDelete, "/api/v1/movimentos/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","deleted_id":`+id+`}`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/movimentos/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func seed(t *testing.T, r *gin.Engine) {
	t.Helper()
	for _, body := range []string{
		`{"categoria_titulo":"LTN","ano":2020,"mes":1,"acao":"venda","valor":100}`,
		`{"categoria_titulo":"LTN","ano":2021,"mes":4,"acao":"resgate","valor":40}`,
		`{"categoria_titulo":"LFT","ano":2020,"mes":1,"acao":"venda","valor":10}`,
		`{"categoria_titulo":"LFT","ano":2020,"mes":1,"acao":"resgate","valor":3}`,
	} {
		w := doRequest(r, http.MethodPost, "/api/v1/movimentos", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func TestHistoryEndpoint(t *testing.T) {
	r := setupTestRouter(t)
	seed(t, r)

	w := doRequest(r, http.MethodGet, "/api/v1/titulos/1/historico?agrupar=ano", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `[
		{"ano":2020,"valor_venda":100,"valor_resgate":0},
		{"ano":2021,"valor_venda":0,"valor_resgate":40}
	]`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/titulos/1/historico?data_inicio=2021-01", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"ano":2021,"mes":4,"valor_venda":0,"valor_resgate":40}]`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/titulos/9/historico", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/titulos/1/historico?data_inicio=ontem", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/titulos/1/historico?agrupar=semana", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompareEndpoint(t *testing.T) {
	r := setupTestRouter(t)
	seed(t, r)

	w := doRequest(r, http.MethodGet, "/api/v1/comparativo?titulos=2,1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `[
		{"ano":2020,"mes":1,"titulos":[
			{"titulo_id":1,"categoria_titulo":"LTN","valor_venda":100,"valor_resgate":0},
			{"titulo_id":2,"categoria_titulo":"LFT","valor_venda":10,"valor_resgate":3}
		]},
		{"ano":2021,"mes":4,"titulos":[
			{"titulo_id":1,"categoria_titulo":"LTN","valor_venda":0,"valor_resgate":40}
		]}
	]`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/comparativo?titulos=1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "titulos", decode[APIError](t, w).Details.Field)

	w = doRequest(r, http.MethodGet, "/api/v1/comparativo?titulos=1&titulos=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSeriesEndpoints(t *testing.T) {
	r := setupTestRouter(t)
	seed(t, r)

	w := doRequest(r, http.MethodGet, "/api/v1/vendas?agrupar=ano", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"ano":2020,"valor":110}]`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/resgates?titulos=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"ano":2021,"mes":4,"valor":40}]`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/resgates?titulos=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupTestRouter(t)
	seed(t, r)

	w := doRequest(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `tdingest_movement_writes_total{operation="created"} 4`)
	assert.Contains(t, body, `tdingest_http_requests_total{method="POST",route="/api/v1/movimentos",status="201"} 4`)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
