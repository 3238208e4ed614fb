package main

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GuestCustomerName é o nome gravado em vendas sem cliente associado
const GuestCustomerName = "Guest"

// Meta carrega o identificador e a revisão de um documento
type Meta struct {
	ID  string `json:"_id,omitempty"`
	Rev string `json:"_rev,omitempty"`
}

func (m *Meta) meta() *Meta { return m }

// User representa um usuário do sistema
type User struct {
	Meta
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	PasswordHash      string     `json:"passwordHash"`
	ResetTokenHash    string     `json:"resetTokenHash,omitempty"`
	ResetTokenExpires *time.Time `json:"resetTokenExpires,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// NewUser cria uma nova instância de User
func NewUser(email, name, passwordHash string) *User {
	return &User{
		Email:        normalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}

// ClearResetToken invalida o token de redefinição de senha
func (u *User) ClearResetToken() {
	u.ResetTokenHash = ""
	u.ResetTokenExpires = nil
}

// ProductImage é a imagem embutida no documento do produto
type ProductImage struct {
	Data        []byte `json:"data"`
	ContentType string `json:"contentType"`
}

// Product representa um produto do catálogo
type Product struct {
	Meta
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       *ProductImage   `json:"image,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NewProduct cria uma nova instância de Product
func NewProduct(name, description string, price decimal.Decimal, stock int) *Product {
	now := time.Now().UTC()
	return &Product{
		Name:        strings.TrimSpace(name),
		Description: description,
		Price:       price,
		Stock:       stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate verifica se o produto tem nome, preço >= 0 e estoque >= 0
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return validationError("product name is required")
	}
	if p.Price.IsNegative() {
		return validationError("price must be >= 0")
	}
	if p.Stock < 0 {
		return validationError("stock must be >= 0")
	}
	return nil
}

// Customer representa um cliente
type Customer struct {
	Meta
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewCustomer cria uma nova instância de Customer
func NewCustomer(name, email, phone, address string) *Customer {
	return &Customer{
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		Phone:     strings.TrimSpace(phone),
		Address:   strings.TrimSpace(address),
		CreatedAt: time.Now().UTC(),
	}
}

// SaleItem é uma linha da venda com preço e nome congelados no momento da venda
type SaleItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// NewSaleItem cria a linha da venda a partir do produto lido no commit
func NewSaleItem(product *Product, quantity int) SaleItem {
	return SaleItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   product.Price,
		LineTotal:   product.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Sale representa uma venda. Vendas nunca são alteradas depois de gravadas.
type Sale struct {
	Meta
	CustomerID   string          `json:"customerId,omitempty"`
	CustomerName string          `json:"customerName"`
	Items        []SaleItem      `json:"items"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// NewSale cria uma nova instância de Sale
func NewSale(customerID, customerName string, items []SaleItem, total decimal.Decimal, createdAt time.Time) *Sale {
	if customerName == "" {
		customerName = GuestCustomerName
	}
	return &Sale{
		CustomerID:   customerID,
		CustomerName: customerName,
		Items:        items,
		Total:        total,
		CreatedAt:    createdAt.UTC(),
	}
}

// IsGuest indica se a venda foi feita sem cliente
func (s *Sale) IsGuest() bool {
	return s.CustomerID == ""
}

// stockMovement registra uma alteração de estoque aplicada durante uma venda
type stockMovement struct {
	ProductID    string
	Quantity     int
	MovementType string
}

// MovementType representa os tipos de movimentação de estoque
const (
	MovementTypeDecreased = "decreased"
	MovementTypeIncreased = "increased"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
