package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const idempotencyHeader = "Idempotency-Key"

type saleLineBody struct {
	ProductID string          `json:"productId"`
	Quantity  json.RawMessage `json:"quantity"`
}

type createSaleBody struct {
	CustomerID string         `json:"customerId"`
	Items      []saleLineBody `json:"items"`
}

// parseQuantity aceita um inteiro JSON ou uma string com um inteiro
func parseQuantity(raw json.RawMessage) (int, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return 0, ErrInvalidQuantity
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return 0, ErrInvalidQuantity
	}

	var text string
	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return 0, ErrInvalidQuantity
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, ErrInvalidQuantity
	}
	return n, nil
}

func (b createSaleBody) toRequest() (CreateSaleRequest, error) {
	req := CreateSaleRequest{
		CustomerID: strings.TrimSpace(b.CustomerID),
		Items:      make([]SaleLineRequest, 0, len(b.Items)),
	}
	for i, line := range b.Items {
		qty, err := parseQuantity(line.Quantity)
		if err != nil {
			return req, fmt.Errorf("item %d: %w", i+1, err)
		}
		req.Items = append(req.Items, SaleLineRequest{
			ProductID: strings.TrimSpace(line.ProductID),
			Quantity:  qty,
		})
	}
	return req, nil
}

// CreateSale registra a venda. Com Idempotency-Key, uma repetição devolve a venda original com 200.
func (h *Handler) CreateSale(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "http.create_sale")
	defer span.End()

	var body createSaleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, bindError(err))
		return
	}
	req, err := body.toRequest()
	if err != nil {
		respondError(c, err)
		return
	}

	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	span.SetAttributes(attribute.Bool("idempotent", key != ""))

	sale, replayed, err := h.sales.CreateSaleIdempotent(ctx, key, req)
	if err != nil {
		respondError(c, err)
		return
	}
	if replayed {
		c.Header("Idempotent-Replayed", "true")
		c.JSON(http.StatusOK, sale)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (h *Handler) ListSales(c *gin.Context) {
	sales, err := h.sales.ListSales(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (h *Handler) GetSale(c *gin.Context) {
	sale, err := h.sales.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *Handler) SaleInvoicePDF(c *gin.Context) {
	invoice, err := h.reports.Invoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := RenderInvoicePDF(invoice)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, "invoice-"+invoice.Sale.ID+".pdf", pdfContentType, data)
}

func (h *Handler) SalesTotalReport(c *gin.Context) {
	report, err := h.reports.SalesTotal(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := RenderSalesTotalXLSX(report)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, "sales-total.xlsx", xlsxContentType, data)
}

func (h *Handler) StockReport(c *gin.Context) {
	report, err := h.reports.Stock(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := RenderStockXLSX(report)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, "stock.xlsx", xlsxContentType, data)
}

func (h *Handler) CustomerPurchasesReport(c *gin.Context) {
	report, err := h.reports.CustomerPurchases(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := RenderCustomerPurchasesXLSX(report)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, "customer-purchases-"+report.CustomerID+".xlsx", xlsxContentType, data)
}
