package main

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// notFoundAs troca o ErrNotFound genérico do store pelo erro da entidade
func notFoundAs(err error, sentinel error, id string) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return err
}

// UserRepository define as operações de persistência de usuários
type UserRepository interface {
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
}

type documentUserRepository struct {
	store DocumentStore
}

// NewUserRepository cria uma nova instância de UserRepository
func NewUserRepository(store DocumentStore) UserRepository {
	return &documentUserRepository{store: store}
}

func (r *documentUserRepository) Get(ctx context.Context, id string) (*User, error) {
	user, err := getDocument[User](ctx, r.store, CollectionUsers, id)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, id)
	}
	return user, nil
}

func (r *documentUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = normalizeEmail(email)
	users, err := findDocuments[User](ctx, r.store, CollectionUsers, Selector{"email": email}, 1)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	return users[0], nil
}

func (r *documentUserRepository) Create(ctx context.Context, user *User) error {
	err := putDocument(ctx, r.store, CollectionUsers, user)
	if errors.Is(err, ErrConflict) {
		return ErrEmailTaken
	}
	return err
}

func (r *documentUserRepository) Update(ctx context.Context, user *User) error {
	return notFoundAs(putDocument(ctx, r.store, CollectionUsers, user), ErrUserNotFound, user.ID)
}

// ProductRepository define as operações sobre produtos e o estoque
type ProductRepository interface {
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	Create(ctx context.Context, product *Product) error
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id, rev string) error
	// CompareAndSwapStock grava newStock somente se o produto ainda estiver na
	// revisão lida. Em caso de sucesso, product passa a refletir a nova revisão.
	CompareAndSwapStock(ctx context.Context, product *Product, newStock int) error
}

type documentProductRepository struct {
	store DocumentStore
	now   func() time.Time
}

// NewProductRepository cria uma nova instância de ProductRepository
func NewProductRepository(store DocumentStore) ProductRepository {
	return &documentProductRepository{store: store, now: time.Now}
}

func (r *documentProductRepository) Get(ctx context.Context, id string) (*Product, error) {
	product, err := getDocument[Product](ctx, r.store, CollectionProducts, id)
	if err != nil {
		return nil, notFoundAs(err, ErrProductNotFound, id)
	}
	return product, nil
}

func (r *documentProductRepository) List(ctx context.Context) ([]*Product, error) {
	return findDocuments[Product](ctx, r.store, CollectionProducts, nil, 0)
}

func (r *documentProductRepository) Create(ctx context.Context, product *Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	return putDocument(ctx, r.store, CollectionProducts, product)
}

func (r *documentProductRepository) Update(ctx context.Context, product *Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	product.UpdatedAt = r.now().UTC()
	return notFoundAs(putDocument(ctx, r.store, CollectionProducts, product), ErrProductNotFound, product.ID)
}

func (r *documentProductRepository) Delete(ctx context.Context, id, rev string) error {
	return notFoundAs(r.store.Destroy(ctx, CollectionProducts, id, rev), ErrProductNotFound, id)
}

func (r *documentProductRepository) CompareAndSwapStock(ctx context.Context, product *Product, newStock int) error {
	if newStock < 0 {
		return ErrNegativeStock
	}
	next := *product
	next.Stock = newStock
	next.UpdatedAt = r.now().UTC()
	if err := putDocument(ctx, r.store, CollectionProducts, &next); err != nil {
		return notFoundAs(err, ErrProductNotFound, product.ID)
	}
	*product = next
	return nil
}

// CustomerRepository define as operações de persistência de clientes
type CustomerRepository interface {
	Get(ctx context.Context, id string) (*Customer, error)
	List(ctx context.Context) ([]*Customer, error)
	Create(ctx context.Context, customer *Customer) error
}

type documentCustomerRepository struct {
	store DocumentStore
}

// NewCustomerRepository cria uma nova instância de CustomerRepository
func NewCustomerRepository(store DocumentStore) CustomerRepository {
	return &documentCustomerRepository{store: store}
}

func (r *documentCustomerRepository) Get(ctx context.Context, id string) (*Customer, error) {
	customer, err := getDocument[Customer](ctx, r.store, CollectionCustomers, id)
	if err != nil {
		return nil, notFoundAs(err, ErrCustomerNotFound, id)
	}
	return customer, nil
}

func (r *documentCustomerRepository) List(ctx context.Context) ([]*Customer, error) {
	return findDocuments[Customer](ctx, r.store, CollectionCustomers, nil, 0)
}

func (r *documentCustomerRepository) Create(ctx context.Context, customer *Customer) error {
	return putDocument(ctx, r.store, CollectionCustomers, customer)
}

// SaleRepository define as operações do livro de vendas, que só aceita inserções
type SaleRepository interface {
	Get(ctx context.Context, id string) (*Sale, error)
	List(ctx context.Context) ([]*Sale, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*Sale, error)
	Create(ctx context.Context, sale *Sale) error
}

type documentSaleRepository struct {
	store DocumentStore
}

// NewSaleRepository cria uma nova instância de SaleRepository
func NewSaleRepository(store DocumentStore) SaleRepository {
	return &documentSaleRepository{store: store}
}

func (r *documentSaleRepository) Get(ctx context.Context, id string) (*Sale, error) {
	sale, err := getDocument[Sale](ctx, r.store, CollectionSales, id)
	if err != nil {
		return nil, notFoundAs(err, ErrSaleNotFound, id)
	}
	return sale, nil
}

func (r *documentSaleRepository) List(ctx context.Context) ([]*Sale, error) {
	return findDocuments[Sale](ctx, r.store, CollectionSales, nil, 0)
}

func (r *documentSaleRepository) ListByCustomer(ctx context.Context, customerID string) ([]*Sale, error) {
	return findDocuments[Sale](ctx, r.store, CollectionSales, Selector{"customerId": customerID}, 0)
}

func (r *documentSaleRepository) Create(ctx context.Context, sale *Sale) error {
	if sale.Rev != "" {
		return fmt.Errorf("sale %s is immutable: %w", sale.ID, ErrConflict)
	}
	return putDocument(ctx, r.store, CollectionSales, sale)
}
