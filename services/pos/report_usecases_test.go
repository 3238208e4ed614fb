package main

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSale(id, customerID, customerName string, items ...SaleItem) *Sale {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal)
	}
	sale := NewSale(customerID, customerName, items, total, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	sale.ID = id
	return sale
}

func sampleItem(name, price string, qty int) SaleItem {
	return NewSaleItem(&Product{Meta: Meta{ID: "p-" + name}, Name: name, Price: decimal.RequireFromString(price)}, qty)
}

func TestBuildSalesTotalReport(t *testing.T) {
	// Arrange
	sales := []*Sale{
		sampleSale("s1", "", "", sampleItem("Coffee", "10.00", 2)),
		sampleSale("s2", "c1", "Ana", sampleItem("Tea", "3.50", 1), sampleItem("Milk", "4.00", 3)),
	}

	// Act
	report := BuildSalesTotalReport(sales)

	// Assert
	require.Len(t, report.Rows, 2)
	assert.Equal(t, "s1", report.Rows[0].SaleID)
	assert.Equal(t, GuestCustomerName, report.Rows[0].CustomerName)
	assert.Equal(t, 2, report.Rows[0].ItemCount)
	assert.Equal(t, 4, report.Rows[1].ItemCount)
	assert.True(t, report.Rows[1].Total.Equal(decimal.RequireFromString("15.50")))
	assert.True(t, report.GrandTotal.Equal(decimal.RequireFromString("35.50")))
}

func TestBuildSalesTotalReport_Empty(t *testing.T) {
	report := BuildSalesTotalReport(nil)

	assert.Empty(t, report.Rows)
	assert.True(t, report.GrandTotal.IsZero())
}

func TestBuildStockReport(t *testing.T) {
	products := []*Product{
		NewProduct("Coffee", "", decimal.RequireFromString("10.00"), 3),
		NewProduct("Tea", "", decimal.RequireFromString("2.25"), 4),
	}

	report := BuildStockReport(products)

	require.Len(t, report.Rows, 2)
	assert.True(t, report.Rows[0].StockValue.Equal(decimal.RequireFromString("30")))
	assert.Equal(t, 7, report.TotalUnits)
	assert.True(t, report.TotalValue.Equal(decimal.RequireFromString("39")))
}

func TestBuildCustomerPurchases_UsesRecordedNameWithoutCustomer(t *testing.T) {
	sales := []*Sale{
		sampleSale("s1", "c1", "Ana", sampleItem("Coffee", "10.00", 1), sampleItem("Tea", "3.00", 2)),
	}

	report := BuildCustomerPurchases("c1", nil, sales)

	assert.Equal(t, "Ana", report.CustomerName)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, "Tea", report.Rows[1].ProductName)
	assert.True(t, report.Total.Equal(decimal.RequireFromString("16")))
}

func TestReportUseCase(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	customer := NewCustomer("Ana", "ana@example.com", "555-0101", "Rua A, 10")
	require.NoError(t, env.customers.Create(ctx, customer))
	coffee := env.seedProduct(t, "Coffee", "10.00", 5)

	sales := env.saleUseCase()
	withCustomer, err := sales.CreateSale(ctx, CreateSaleRequest{
		CustomerID: customer.ID,
		Items:      []SaleLineRequest{{ProductID: coffee.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	guest, err := sales.CreateSale(ctx, CreateSaleRequest{
		Items: []SaleLineRequest{{ProductID: coffee.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	uc := NewReportUseCase(env.products, env.customers, env.sales)

	t.Run("sales total", func(t *testing.T) {
		report, err := uc.SalesTotal(ctx)
		require.NoError(t, err)
		require.Len(t, report.Rows, 2)
		assert.Equal(t, withCustomer.ID, report.Rows[0].SaleID)
		assert.True(t, report.GrandTotal.Equal(decimal.RequireFromString("30")))
	})

	t.Run("stock", func(t *testing.T) {
		report, err := uc.Stock(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, report.TotalUnits)
	})

	t.Run("customer purchases", func(t *testing.T) {
		report, err := uc.CustomerPurchases(ctx, customer.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", report.CustomerName)
		require.Len(t, report.Rows, 1)
		assert.Equal(t, 2, report.Rows[0].Quantity)
	})

	t.Run("customer without sales", func(t *testing.T) {
		other := NewCustomer("Bia", "", "", "")
		require.NoError(t, env.customers.Create(ctx, other))

		report, err := uc.CustomerPurchases(ctx, other.ID)
		require.NoError(t, err)
		assert.Empty(t, report.Rows)
		assert.True(t, report.Total.IsZero())
	})

	t.Run("unknown customer", func(t *testing.T) {
		_, err := uc.CustomerPurchases(ctx, "missing")
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})

	t.Run("invoice with customer", func(t *testing.T) {
		invoice, err := uc.Invoice(ctx, withCustomer.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", invoice.CustomerName)
		assert.Equal(t, "Rua A, 10", invoice.CustomerAddress)
	})

	t.Run("guest invoice", func(t *testing.T) {
		invoice, err := uc.Invoice(ctx, guest.ID)
		require.NoError(t, err)
		assert.Equal(t, GuestCustomerName, invoice.CustomerName)
		assert.Empty(t, invoice.CustomerEmail)
	})

	t.Run("unknown sale", func(t *testing.T) {
		_, err := uc.Invoice(ctx, "missing")
		assert.ErrorIs(t, err, ErrSaleNotFound)
	})
}
