package main

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
)

const pdfContentType = "application/pdf"

type pdfColumn struct {
	title string
	width float64
	align string
}

// pdfDoc encapsula o fpdf com tradução de UTF-8 para a fonte padrão
type pdfDoc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newPDFDoc(title string) *pdfDoc {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	d := &pdfDoc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, d.tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	return d
}

func (d *pdfDoc) line(text string) {
	d.pdf.CellFormat(0, 6, d.tr(text), "", 1, "L", false, 0, "")
}

func (d *pdfDoc) table(columns []pdfColumn, rows [][]string) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.SetFillColor(230, 230, 230)
	for _, c := range columns {
		d.pdf.CellFormat(c.width, 7, d.tr(c.title), "1", 0, c.align, true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		for i, c := range columns {
			d.pdf.CellFormat(c.width, 7, d.tr(row[i]), "1", 0, c.align, false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *pdfDoc) total(label, value string) {
	d.pdf.Ln(2)
	d.pdf.SetFont("Helvetica", "B", 11)
	d.pdf.CellFormat(150, 8, d.tr(label), "", 0, "R", false, 0, "")
	d.pdf.CellFormat(40, 8, d.tr(value), "", 1, "R", false, 0, "")
}

func (d *pdfDoc) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderInvoicePDF gera a fatura de uma venda
func RenderInvoicePDF(inv Invoice) ([]byte, error) {
	sale := inv.Sale
	d := newPDFDoc("Invoice " + sale.ID)

	d.line("Date: " + sale.CreatedAt.Format(reportDateFmt))
	d.line("Customer: " + inv.CustomerName)
	for _, extra := range []struct{ label, value string }{
		{"Email", inv.CustomerEmail},
		{"Phone", inv.CustomerPhone},
		{"Address", inv.CustomerAddress},
	} {
		if extra.value != "" {
			d.line(extra.label + ": " + extra.value)
		}
	}
	d.pdf.Ln(4)

	rows := make([][]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		rows = append(rows, []string{
			item.ProductName,
			strconv.Itoa(item.Quantity),
			item.UnitPrice.StringFixed(2),
			item.LineTotal.StringFixed(2),
		})
	}
	d.table([]pdfColumn{
		{"Product", 90, "L"},
		{"Qty", 20, "R"},
		{"Unit price", 40, "R"},
		{"Line total", 40, "R"},
	}, rows)
	d.total("Total", sale.Total.StringFixed(2))

	return d.bytes()
}

// RenderProductsPDF gera o relatório do catálogo com preço e estoque
func RenderProductsPDF(products []*Product, generatedAt time.Time) ([]byte, error) {
	d := newPDFDoc("Products report")
	d.line("Generated at: " + generatedAt.Format(reportDateFmt))
	d.pdf.Ln(4)

	report := BuildStockReport(products)
	rows := make([][]string, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, []string{
			r.Name,
			r.Price.StringFixed(2),
			strconv.Itoa(r.Stock),
			r.StockValue.StringFixed(2),
		})
	}
	d.table([]pdfColumn{
		{"Product", 90, "L"},
		{"Price", 30, "R"},
		{"Stock", 30, "R"},
		{"Stock value", 40, "R"},
	}, rows)
	d.total(fmt.Sprintf("Total (%d units)", report.TotalUnits), report.TotalValue.StringFixed(2))

	return d.bytes()
}
