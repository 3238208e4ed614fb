package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testEnv monta os repositórios sobre um store em memória
type testEnv struct {
	store       *MemoryDocumentStore
	users       UserRepository
	products    ProductRepository
	customers   CustomerRepository
	sales       SaleRepository
	idempotency *MemoryIdempotencyStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := NewMemoryDocumentStore()
	return &testEnv{
		store:       store,
		users:       NewUserRepository(store),
		products:    NewProductRepository(store),
		customers:   NewCustomerRepository(store),
		sales:       NewSaleRepository(store),
		idempotency: NewMemoryIdempotencyStore(defaultIdempotencyTTL),
	}
}

func (e *testEnv) saleUseCase() *SaleUseCase {
	return NewSaleUseCase(e.products, e.customers, e.sales, nil, e.idempotency, nil, 0)
}

func (e *testEnv) seedProduct(t *testing.T, name, price string, stock int) *Product {
	t.Helper()
	product := NewProduct(name, "", decimal.RequireFromString(price), stock)
	require.NoError(t, e.products.Create(context.Background(), product))
	return product
}

func (e *testEnv) seedCustomer(t *testing.T, name string) *Customer {
	t.Helper()
	customer := NewCustomer(name, "", "", "")
	require.NoError(t, e.customers.Create(context.Background(), customer))
	return customer
}

func (e *testEnv) stockOf(t *testing.T, productID string) int {
	t.Helper()
	product, err := e.products.Get(context.Background(), productID)
	require.NoError(t, err)
	return product.Stock
}

// MockSaleRepository simula o livro de vendas
type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) Get(ctx context.Context, id string) (*Sale, error) {
	args := m.Called(ctx, id)
	sale, _ := args.Get(0).(*Sale)
	return sale, args.Error(1)
}

func (m *MockSaleRepository) List(ctx context.Context) ([]*Sale, error) {
	args := m.Called(ctx)
	sales, _ := args.Get(0).([]*Sale)
	return sales, args.Error(1)
}

func (m *MockSaleRepository) ListByCustomer(ctx context.Context, customerID string) ([]*Sale, error) {
	args := m.Called(ctx, customerID)
	sales, _ := args.Get(0).([]*Sale)
	return sales, args.Error(1)
}

func (m *MockSaleRepository) Create(ctx context.Context, sale *Sale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

// MockSaleEventPublisher simula o publisher de eventos
type MockSaleEventPublisher struct {
	mock.Mock
}

func (m *MockSaleEventPublisher) PublishSaleRecorded(ctx context.Context, sale *Sale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

func (m *MockSaleEventPublisher) Close() error {
	return m.Called().Error(0)
}

// MockMailer simula o envio de emails
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, mail Mail) error {
	args := m.Called(ctx, mail)
	return args.Error(0)
}
