package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ProductInput são os dados de criação de um produto
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Image       *ProductImage
}

// ProductUpdate é uma alteração parcial; campos nil ficam como estão.
// Com Rev preenchido, a escrita só acontece se o produto ainda estiver nessa revisão.
type ProductUpdate struct {
	Rev         string
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Image       *ProductImage
}

func (u ProductUpdate) apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Image != nil {
		p.Image = u.Image
	}
}

// ProductUseCase contém a lógica do catálogo de produtos
type ProductUseCase struct {
	products   ProductRepository
	tracer     trace.Tracer
	maxRetries int
}

// NewProductUseCase cria uma nova instância de ProductUseCase
func NewProductUseCase(products ProductRepository, tracer trace.Tracer, maxRetries int) *ProductUseCase {
	if maxRetries <= 0 {
		maxRetries = defaultStockMaxRetries
	}
	return &ProductUseCase{products: products, tracer: tracerOrNoop(tracer), maxRetries: maxRetries}
}

func (uc *ProductUseCase) List(ctx context.Context) ([]*Product, error) {
	return uc.products.List(ctx)
}

func (uc *ProductUseCase) Get(ctx context.Context, id string) (*Product, error) {
	return uc.products.Get(ctx, id)
}

func (uc *ProductUseCase) Create(ctx context.Context, in ProductInput) (*Product, error) {
	ctx, span := uc.tracer.Start(ctx, "create_product")
	defer span.End()

	product := NewProduct(in.Name, in.Description, in.Price, in.Stock)
	product.Image = in.Image
	if err := uc.products.Create(ctx, product); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("product_id", product.ID))
	logger.Info("✅ [PRODUCT] created", zap.String("product_id", product.ID), zap.Int("stock", product.Stock))
	return product, nil
}

// Update aplica a alteração parcial. Sem Rev, relê e tenta de novo em conflito.
func (uc *ProductUseCase) Update(ctx context.Context, id string, upd ProductUpdate) (*Product, error) {
	ctx, span := uc.tracer.Start(ctx, "update_product")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", id))

	for attempt := 1; ; attempt++ {
		product, err := uc.products.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if upd.Rev != "" {
			product.Rev = upd.Rev
		}
		upd.apply(product)

		err = uc.products.Update(ctx, product)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, ErrConflict) || upd.Rev != "" || attempt >= uc.maxRetries {
			return nil, err
		}
		logger.Debug("⏳ [PRODUCT] revision conflict on update, retrying",
			zap.String("product_id", id), zap.Int("attempt", attempt))
	}
}

// Delete remove o produto. Vendas antigas mantêm o nome gravado na linha.
func (uc *ProductUseCase) Delete(ctx context.Context, id, rev string) error {
	ctx, span := uc.tracer.Start(ctx, "delete_product")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", id))

	if rev != "" {
		return uc.products.Delete(ctx, id, rev)
	}
	for attempt := 1; ; attempt++ {
		product, err := uc.products.Get(ctx, id)
		if err != nil {
			return err
		}
		err = uc.products.Delete(ctx, id, product.Rev)
		if err == nil || !errors.Is(err, ErrConflict) || attempt >= uc.maxRetries {
			return err
		}
	}
}

// Image retorna a imagem embutida no produto
func (uc *ProductUseCase) Image(ctx context.Context, id string) (*ProductImage, error) {
	product, err := uc.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Image == nil || len(product.Image.Data) == 0 {
		return nil, fmt.Errorf("product %s has no image: %w", id, ErrNotFound)
	}
	return product.Image, nil
}
