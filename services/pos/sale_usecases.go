package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultStockMaxRetries = 10

// SaleLineRequest é uma linha pedida: produto e quantidade
type SaleLineRequest struct {
	ProductID string
	Quantity  int
}

// CreateSaleRequest é o pedido de venda recebido pelo coordenador
type CreateSaleRequest struct {
	CustomerID string
	Items      []SaleLineRequest
}

func (r CreateSaleRequest) validate() error {
	if len(r.Items) == 0 {
		return ErrEmptySale
	}
	for i, line := range r.Items {
		if strings.TrimSpace(line.ProductID) == "" {
			return validationError(fmt.Sprintf("item %d: productId is required", i+1))
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("item %d: %w", i+1, ErrInvalidQuantity)
		}
	}
	return nil
}

// demand soma as quantidades por produto, na ordem em que aparecem no pedido
func (r CreateSaleRequest) demand() ([]string, map[string]int) {
	order := make([]string, 0, len(r.Items))
	totals := make(map[string]int, len(r.Items))
	for _, line := range r.Items {
		if _, seen := totals[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		totals[line.ProductID] += line.Quantity
	}
	return order, totals
}

// SaleUseCase coordena a venda: valida, baixa o estoque com CAS e grava a venda
type SaleUseCase struct {
	products    ProductRepository
	customers   CustomerRepository
	sales       SaleRepository
	publisher   SaleEventPublisher
	idempotency IdempotencyStore
	tracer      trace.Tracer
	maxRetries  int
	now         func() time.Time

	salesCreatedCounter  metric.Int64Counter
	saleFailureCounter   metric.Int64Counter
	casConflictCounter   metric.Int64Counter
	compensationsCounter metric.Int64Counter
}

// NewSaleUseCase cria uma nova instância de SaleUseCase
func NewSaleUseCase(
	products ProductRepository,
	customers CustomerRepository,
	sales SaleRepository,
	publisher SaleEventPublisher,
	idempotency IdempotencyStore,
	tracer trace.Tracer,
	maxRetries int,
) *SaleUseCase {
	if maxRetries <= 0 {
		maxRetries = defaultStockMaxRetries
	}
	if publisher == nil {
		publisher = NopSaleEventPublisher{}
	}
	if idempotency == nil {
		idempotency = NewMemoryIdempotencyStore(defaultIdempotencyTTL)
	}

	meter := otel.Meter(serviceName)
	return &SaleUseCase{
		products:             products,
		customers:            customers,
		sales:                sales,
		publisher:            publisher,
		idempotency:          idempotency,
		tracer:               tracerOrNoop(tracer),
		maxRetries:           maxRetries,
		now:                  time.Now,
		salesCreatedCounter:  newCounter(meter, "pos_sales_created_total", "Sales persisted"),
		saleFailureCounter:   newCounter(meter, "pos_sale_failures_total", "Sale requests rejected or failed"),
		casConflictCounter:   newCounter(meter, "pos_stock_cas_conflicts_total", "Stock writes rejected by a revision conflict"),
		compensationsCounter: newCounter(meter, "pos_stock_compensations_total", "Stock decrements reverted after a failed sale"),
	}
}

// CreateSale registra uma venda.
//
// Primeiro todas as linhas são validadas contra o estoque atual, sem nenhuma escrita.
// Depois cada linha baixa o estoque com compare-and-swap, repetindo em conflito de
// revisão. Se uma linha ou a gravação da venda falhar, as baixas já aplicadas são
// revertidas antes de retornar o erro.
func (uc *SaleUseCase) CreateSale(ctx context.Context, req CreateSaleRequest) (*Sale, error) {
	ctx, span := uc.tracer.Start(ctx, "create_sale")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", req.CustomerID),
		attribute.Int("sale.lines", len(req.Items)),
	)

	logger.Info("➡️ [CREATE SALE] request received",
		zap.String("customer_id", req.CustomerID), zap.Int("lines", len(req.Items)))

	sale, err := uc.createSale(ctx, req)
	if err != nil {
		reason := saleFailureReason(err)
		uc.saleFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		logger.Info("❌ [CREATE SALE] failed", zap.String("reason", reason), zap.Error(err))
		return nil, err
	}

	uc.salesCreatedCounter.Add(ctx, 1)
	span.SetAttributes(attribute.String("sale_id", sale.ID), attribute.String("sale.total", sale.Total.String()))
	logger.Info("✅ [CREATE SALE] success", zap.String("sale_id", sale.ID), zap.String("total", sale.Total.StringFixed(2)))
	return sale, nil
}

func (uc *SaleUseCase) createSale(ctx context.Context, req CreateSaleRequest) (*Sale, error) {
	// 1. Validação do pedido, antes de qualquer acesso ao store
	if err := req.validate(); err != nil {
		return nil, err
	}

	// 2. Resolve o cliente
	customerName := GuestCustomerName
	if req.CustomerID != "" {
		customer, err := uc.customers.Get(ctx, req.CustomerID)
		if err != nil {
			return nil, err
		}
		customerName = customer.Name
	}

	// 3. Fase de validação: a demanda agregada de cada produto cabe no estoque atual
	order, totals := req.demand()
	for _, productID := range order {
		product, err := uc.products.Get(ctx, productID)
		if err != nil {
			return nil, err
		}
		if product.Stock < totals[productID] {
			return nil, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   totals[productID],
			}
		}
	}

	// 4. Fase de commit: baixa linha a linha, guardando o log de compensação
	applied := make([]stockMovement, 0, len(req.Items))
	items := make([]SaleItem, 0, len(req.Items))
	total := decimal.Zero
	for _, line := range req.Items {
		product, err := uc.decreaseStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, uc.compensate(ctx, applied, err)
		}
		applied = append(applied, stockMovement{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			MovementType: MovementTypeDecreased,
		})

		item := NewSaleItem(product, line.Quantity)
		items = append(items, item)
		total = total.Add(item.LineTotal)
	}

	// 5. Grava a venda
	sale := NewSale(req.CustomerID, customerName, items, total, uc.now())
	if err := uc.sales.Create(ctx, sale); err != nil {
		return nil, uc.compensate(ctx, applied, fmt.Errorf("failed to persist sale: %w", err))
	}

	// 6. Publica o evento; falha aqui não desfaz a venda
	if err := uc.publisher.PublishSaleRecorded(ctx, sale); err != nil {
		logger.Warn("ℹ️ [SALE EVENT] publish failed", zap.String("sale_id", sale.ID), zap.Error(err))
	}
	return sale, nil
}

// decreaseStock relê o produto e tenta o CAS até maxRetries vezes
func (uc *SaleUseCase) decreaseStock(ctx context.Context, productID string, quantity int) (*Product, error) {
	for attempt := 1; attempt <= uc.maxRetries; attempt++ {
		product, err := uc.products.Get(ctx, productID)
		if err != nil {
			return nil, err
		}
		if product.Stock < quantity {
			return nil, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   quantity,
			}
		}

		err = uc.products.CompareAndSwapStock(ctx, product, product.Stock-quantity)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}

		uc.casConflictCounter.Add(ctx, 1)
		logger.Debug("⏳ [DECREASE STOCK] revision conflict, retrying",
			zap.String("product_id", productID), zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("stock update for product %s gave up after %d attempts: %w",
		productID, uc.maxRetries, ErrConflict)
}

// increaseStock devolve quantidade ao estoque com o mesmo laço de CAS
func (uc *SaleUseCase) increaseStock(ctx context.Context, productID string, quantity int) error {
	for attempt := 1; attempt <= uc.maxRetries; attempt++ {
		product, err := uc.products.Get(ctx, productID)
		if err != nil {
			return err
		}
		err = uc.products.CompareAndSwapStock(ctx, product, product.Stock+quantity)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
		uc.casConflictCounter.Add(ctx, 1)
	}
	return fmt.Errorf("stock compensation for product %s gave up after %d attempts: %w",
		productID, uc.maxRetries, ErrConflict)
}

// compensate reverte as baixas aplicadas, da última para a primeira. Roda com um
// contexto que sobrevive ao cancelamento da requisição.
func (uc *SaleUseCase) compensate(ctx context.Context, applied []stockMovement, cause error) error {
	if len(applied) == 0 {
		return cause
	}
	ctx = context.WithoutCancel(ctx)

	errs := []error{cause}
	for i := len(applied) - 1; i >= 0; i-- {
		movement := stockMovement{
			ProductID:    applied[i].ProductID,
			Quantity:     applied[i].Quantity,
			MovementType: MovementTypeIncreased,
		}
		logger.Info("↩️ [COMPENSATE STOCK]",
			zap.String("product_id", movement.ProductID),
			zap.Int("quantity", movement.Quantity),
			zap.String("movement", movement.MovementType))

		err := uc.increaseStock(ctx, movement.ProductID, movement.Quantity)
		switch {
		case err == nil:
			uc.compensationsCounter.Add(ctx, 1)
		case errors.Is(err, ErrNotFound):
			logger.Warn("ℹ️ [COMPENSATE STOCK] product no longer exists, skipping",
				zap.String("product_id", movement.ProductID))
		default:
			logger.Error("❌ [COMPENSATE STOCK] failed",
				zap.String("product_id", movement.ProductID), zap.Error(err))
			errs = append(errs, fmt.Errorf("compensation for product %s: %w", movement.ProductID, err))
		}
	}

	if len(errs) == 1 {
		return cause
	}
	return errors.Join(errs...)
}

// CreateSaleIdempotent executa CreateSale uma única vez por chave. Uma chave já
// concluída devolve a venda gravada com replayed = true.
func (uc *SaleUseCase) CreateSaleIdempotent(ctx context.Context, key string, req CreateSaleRequest) (*Sale, bool, error) {
	if key == "" {
		sale, err := uc.CreateSale(ctx, req)
		return sale, false, err
	}

	fingerprint, err := requestFingerprint(req)
	if err != nil {
		return nil, false, err
	}
	state, saleID, err := uc.idempotency.Reserve(ctx, key, fingerprint)
	if errors.Is(err, ErrIdempotencyKeyReused) {
		return nil, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}

	switch state {
	case IdempotencyCompleted:
		logger.Info("ℹ️ [IDEMPOTENCY] sale already recorded for key", zap.String("key", key), zap.String("sale_id", saleID))
		sale, err := uc.sales.Get(ctx, saleID)
		return sale, true, err
	case IdempotencyInProgress:
		return nil, false, ErrSaleInProgress
	}

	sale, err := uc.CreateSale(ctx, req)
	if err != nil {
		if rerr := uc.idempotency.Release(context.WithoutCancel(ctx), key); rerr != nil {
			logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(rerr))
		}
		return nil, false, err
	}

	uc.completeIdempotencyKey(context.WithoutCancel(ctx), key, fingerprint, sale.ID)
	return sale, false, nil
}

// completeIdempotencyKey tenta gravar a venda na chave duas vezes. Se ambas
// falharem a chave fica pendente até expirar.
func (uc *SaleUseCase) completeIdempotencyKey(ctx context.Context, key, fingerprint, saleID string) {
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		if err = uc.idempotency.Complete(ctx, key, fingerprint, saleID); err == nil {
			return
		}
		logger.Warn("failed to complete idempotency key",
			zap.String("key", key), zap.Int("attempt", attempt), zap.Error(err))
	}
	logger.Error("❌ [IDEMPOTENCY] key left pending for a recorded sale",
		zap.String("key", key), zap.String("sale_id", saleID), zap.Error(err))
}

// requestFingerprint identifica o conteúdo de um pedido de venda
func requestFingerprint(req CreateSaleRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode sale request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// GetSale busca uma venda pelo id
func (uc *SaleUseCase) GetSale(ctx context.Context, id string) (*Sale, error) {
	return uc.sales.Get(ctx, id)
}

// ListSales lista as vendas em ordem de gravação
func (uc *SaleUseCase) ListSales(ctx context.Context) ([]*Sale, error) {
	return uc.sales.List(ctx)
}

func saleFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
