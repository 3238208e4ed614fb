package main

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// SalesTotalRow é uma venda no relatório de totais
type SalesTotalRow struct {
	SaleID       string
	Date         time.Time
	CustomerName string
	ItemCount    int
	Total        decimal.Decimal
}

// SalesTotalReport lista todas as vendas com o total geral
type SalesTotalReport struct {
	Rows       []SalesTotalRow
	GrandTotal decimal.Decimal
}

// StockRow é a posição de um produto no relatório de estoque
type StockRow struct {
	ProductID  string
	Name       string
	Price      decimal.Decimal
	Stock      int
	StockValue decimal.Decimal
}

// StockReport é a posição de estoque valorizada pelo preço atual
type StockReport struct {
	Rows       []StockRow
	TotalUnits int
	TotalValue decimal.Decimal
}

// CustomerPurchaseRow é uma linha de item comprado pelo cliente
type CustomerPurchaseRow struct {
	SaleID      string
	Date        time.Time
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// CustomerPurchasesReport lista cada linha das compras de um cliente
type CustomerPurchasesReport struct {
	CustomerID   string
	CustomerName string
	Rows         []CustomerPurchaseRow
	Total        decimal.Decimal
}

// Invoice é a venda com os dados de contato do cliente
type Invoice struct {
	Sale            *Sale
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
}

// BuildSalesTotalReport agrega as vendas na ordem recebida
func BuildSalesTotalReport(sales []*Sale) SalesTotalReport {
	report := SalesTotalReport{Rows: make([]SalesTotalRow, 0, len(sales)), GrandTotal: decimal.Zero}
	for _, sale := range sales {
		count := 0
		for _, item := range sale.Items {
			count += item.Quantity
		}
		report.Rows = append(report.Rows, SalesTotalRow{
			SaleID:       sale.ID,
			Date:         sale.CreatedAt,
			CustomerName: sale.CustomerName,
			ItemCount:    count,
			Total:        sale.Total,
		})
		report.GrandTotal = report.GrandTotal.Add(sale.Total)
	}
	return report
}

func BuildStockReport(products []*Product) StockReport {
	report := StockReport{Rows: make([]StockRow, 0, len(products)), TotalValue: decimal.Zero}
	for _, p := range products {
		value := p.Price.Mul(decimal.NewFromInt(int64(p.Stock)))
		report.Rows = append(report.Rows, StockRow{
			ProductID:  p.ID,
			Name:       p.Name,
			Price:      p.Price,
			Stock:      p.Stock,
			StockValue: value,
		})
		report.TotalUnits += p.Stock
		report.TotalValue = report.TotalValue.Add(value)
	}
	return report
}

// BuildCustomerPurchases usa o nome gravado na venda quando o cliente não existe mais
func BuildCustomerPurchases(customerID string, customer *Customer, sales []*Sale) CustomerPurchasesReport {
	report := CustomerPurchasesReport{
		CustomerID: customerID,
		Rows:       make([]CustomerPurchaseRow, 0),
		Total:      decimal.Zero,
	}
	if customer != nil {
		report.CustomerName = customer.Name
	} else if len(sales) > 0 {
		report.CustomerName = sales[0].CustomerName
	}

	for _, sale := range sales {
		for _, item := range sale.Items {
			report.Rows = append(report.Rows, CustomerPurchaseRow{
				SaleID:      sale.ID,
				Date:        sale.CreatedAt,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				LineTotal:   item.LineTotal,
			})
		}
		report.Total = report.Total.Add(sale.Total)
	}
	return report
}

// BuildInvoice monta a fatura; sem cliente, só o nome gravado na venda aparece
func BuildInvoice(sale *Sale, customer *Customer) Invoice {
	invoice := Invoice{Sale: sale, CustomerName: sale.CustomerName}
	if customer != nil {
		invoice.CustomerName = customer.Name
		invoice.CustomerEmail = customer.Email
		invoice.CustomerPhone = customer.Phone
		invoice.CustomerAddress = customer.Address
	}
	return invoice
}

// ReportUseCase lê as coleções e monta os relatórios. Nunca escreve.
type ReportUseCase struct {
	products  ProductRepository
	customers CustomerRepository
	sales     SaleRepository
}

// NewReportUseCase cria uma nova instância de ReportUseCase
func NewReportUseCase(products ProductRepository, customers CustomerRepository, sales SaleRepository) *ReportUseCase {
	return &ReportUseCase{products: products, customers: customers, sales: sales}
}

func (uc *ReportUseCase) SalesTotal(ctx context.Context) (SalesTotalReport, error) {
	sales, err := uc.sales.List(ctx)
	if err != nil {
		return SalesTotalReport{}, err
	}
	return BuildSalesTotalReport(sales), nil
}

func (uc *ReportUseCase) Stock(ctx context.Context) (StockReport, error) {
	products, err := uc.products.List(ctx)
	if err != nil {
		return StockReport{}, err
	}
	return BuildStockReport(products), nil
}

func (uc *ReportUseCase) Products(ctx context.Context) ([]*Product, error) {
	return uc.products.List(ctx)
}

// CustomerPurchases falha com ErrCustomerNotFound apenas se não houver cliente nem vendas
func (uc *ReportUseCase) CustomerPurchases(ctx context.Context, customerID string) (CustomerPurchasesReport, error) {
	customer, err := uc.lookupCustomer(ctx, customerID)
	if err != nil {
		return CustomerPurchasesReport{}, err
	}
	sales, err := uc.sales.ListByCustomer(ctx, customerID)
	if err != nil {
		return CustomerPurchasesReport{}, err
	}
	if customer == nil && len(sales) == 0 {
		return CustomerPurchasesReport{}, ErrCustomerNotFound
	}
	return BuildCustomerPurchases(customerID, customer, sales), nil
}

func (uc *ReportUseCase) Invoice(ctx context.Context, saleID string) (Invoice, error) {
	sale, err := uc.sales.Get(ctx, saleID)
	if err != nil {
		return Invoice{}, err
	}
	var customer *Customer
	if !sale.IsGuest() {
		if customer, err = uc.lookupCustomer(ctx, sale.CustomerID); err != nil {
			return Invoice{}, err
		}
	}
	return BuildInvoice(sale, customer), nil
}

// lookupCustomer retorna nil, sem erro, quando o cliente não existe
func (uc *ReportUseCase) lookupCustomer(ctx context.Context, id string) (*Customer, error) {
	customer, err := uc.customers.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return customer, err
}
