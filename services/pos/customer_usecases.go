package main

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// CustomerInput são os dados de cadastro de um cliente
type CustomerInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// CustomerUseCase contém a lógica de clientes
type CustomerUseCase struct {
	customers CustomerRepository
}

// NewCustomerUseCase cria uma nova instância de CustomerUseCase
func NewCustomerUseCase(customers CustomerRepository) *CustomerUseCase {
	return &CustomerUseCase{customers: customers}
}

func (uc *CustomerUseCase) Create(ctx context.Context, in CustomerInput) (*Customer, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, validationError("customer name is required")
	}
	customer := NewCustomer(in.Name, in.Email, in.Phone, in.Address)
	if err := uc.customers.Create(ctx, customer); err != nil {
		return nil, err
	}
	logger.Info("✅ [CUSTOMER] created", zap.String("customer_id", customer.ID))
	return customer, nil
}

func (uc *CustomerUseCase) List(ctx context.Context) ([]*Customer, error) {
	return uc.customers.List(ctx)
}

func (uc *CustomerUseCase) Get(ctx context.Context, id string) (*Customer, error) {
	return uc.customers.Get(ctx, id)
}
