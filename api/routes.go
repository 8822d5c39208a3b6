package api

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/viktsys/tdingest/models"
)

func SetupRoutes(h *Handler, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	registerValidations()

	r := gin.New()
	r.Use(RequestID(), Logger(log.With().Str("component", "http").Logger()), gin.Recovery(), h.metrics.Middleware())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/titulos", h.ListInstruments)
		v1.GET("/titulos/:id/historico", h.History)
		v1.GET("/comparativo", h.Compare)
		v1.GET("/vendas", h.Series(models.ActionSale))
		v1.GET("/resgates", h.Series(models.ActionRedemption))

		v1.POST("/movimentos", h.RecordMovement)
		v1.GET("/movimentos/:id", h.GetMovement)
		v1.PATCH("/movimentos/:id", h.UpdateMovement)
		v1.DELETE("/movimentos/:id", h.DeleteMovement)
	}

	return r
}

// registerValidations adds the "acao" rule and reports fields by their JSON
// names.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("acao", func(fl validator.FieldLevel) bool {
		_, err := models.ParseAction(fl.Field().String())
		return err == nil
	})
}
