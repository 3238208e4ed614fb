package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handler contém os handlers HTTP do serviço
type Handler struct {
	auth          *AuthUseCase
	products      *ProductUseCase
	customers     *CustomerUseCase
	sales         *SaleUseCase
	reports       *ReportUseCase
	tokens        *TokenIssuer
	store         DocumentStore
	tracer        trace.Tracer
	maxImageBytes int64
	now           func() time.Time
}

// NewHandler cria uma nova instância de Handler
func NewHandler(
	auth *AuthUseCase,
	products *ProductUseCase,
	customers *CustomerUseCase,
	sales *SaleUseCase,
	reports *ReportUseCase,
	tokens *TokenIssuer,
	store DocumentStore,
	tracer trace.Tracer,
	maxImageBytes int64,
) *Handler {
	if maxImageBytes <= 0 {
		maxImageBytes = 5 << 20
	}
	validatorsOnce.Do(registerValidators)
	return &Handler{
		auth:          auth,
		products:      products,
		customers:     customers,
		sales:         sales,
		reports:       reports,
		tokens:        tokens,
		store:         store,
		tracer:        tracerOrNoop(tracer),
		maxImageBytes: maxImageBytes,
		now:           time.Now,
	}
}

// RegisterRoutes registra todas as rotas no router
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ping", h.Ping)
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	authRequired := requireAuth(h.tokens)

	auth := api.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/request-reset", h.RequestPasswordReset)
	auth.POST("/reset-password", h.ResetPassword)

	products := api.Group("/products")
	products.GET("", h.ListProducts)
	products.GET("/report/pdf", authRequired, h.ProductsReportPDF)
	products.GET("/:id", h.GetProduct)
	products.GET("/:id/image", h.GetProductImage)
	products.POST("", authRequired, h.CreateProduct)
	products.PUT("/:id", authRequired, h.UpdateProduct)
	products.DELETE("/:id", authRequired, h.DeleteProduct)

	customers := api.Group("/customers")
	customers.POST("", h.CreateCustomer)
	customers.GET("", h.ListCustomers)
	customers.GET("/:id", h.GetCustomer)

	sales := api.Group("/sales")
	sales.POST("", h.CreateSale)
	sales.GET("", h.ListSales)
	sales.GET("/:id", h.GetSale)
	sales.GET("/:id/invoice", h.SaleInvoicePDF)

	reports := api.Group("/reports", authRequired)
	reports.GET("/sales-total", h.SalesTotalReport)
	reports.GET("/stock", h.StockReport)
	reports.GET("/customer-purchases/:id", h.CustomerPurchasesReport)
}

// Ping é o endpoint de liveness
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// HealthCheck verifica a conexão com o document store
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logger.Warn("ℹ️ [HEALTH] document store unreachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// statusFor converte os erros do domínio no status HTTP.
// InsufficientStock e EmailTaken são verificados antes de Conflict.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrIdempotencyKeyReused):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrInvalidResetToken),
		errors.Is(err, ErrResetTokenExpired):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("❌ request failed",
			zap.String("route", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}

func bindError(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

var validatorsOnce sync.Once

// registerValidators ensina o validator do gin a comparar decimal.Decimal como número
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
}
