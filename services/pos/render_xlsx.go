package main

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	reportDateFmt   = "2006-01-02 15:04"
)

// sheet é uma planilha simples: cabeçalho em negrito, linhas e rodapé de totais
type sheet struct {
	name   string
	header []any
	rows   [][]any
	footer []any
}

func (s sheet) render() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", s.name); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	write := func(row int, values []any, styled bool) error {
		start, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, start, &values); err != nil {
			return err
		}
		if !styled {
			return nil
		}
		end, err := excelize.CoordinatesToCellName(len(values), row)
		if err != nil {
			return err
		}
		return f.SetCellStyle(s.name, start, end, bold)
	}

	if err := write(1, s.header, true); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range s.rows {
		if err := write(i+2, row, false); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if s.footer != nil {
		if err := write(len(s.rows)+2, s.footer, true); err != nil {
			return nil, fmt.Errorf("failed to write totals: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render spreadsheet: %w", err)
	}
	return buf.Bytes(), nil
}

func RenderSalesTotalXLSX(report SalesTotalReport) ([]byte, error) {
	rows := make([][]any, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, []any{
			r.SaleID, r.Date.Format(reportDateFmt), r.CustomerName, r.ItemCount, r.Total.InexactFloat64(),
		})
	}
	return sheet{
		name:   "Sales",
		header: []any{"Sale", "Date", "Customer", "Items", "Total"},
		rows:   rows,
		footer: []any{"Total", "", "", len(report.Rows), report.GrandTotal.InexactFloat64()},
	}.render()
}

func RenderStockXLSX(report StockReport) ([]byte, error) {
	rows := make([][]any, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, []any{
			r.ProductID, r.Name, r.Price.InexactFloat64(), r.Stock, r.StockValue.InexactFloat64(),
		})
	}
	return sheet{
		name:   "Stock",
		header: []any{"Product", "Name", "Price", "Stock", "Stock value"},
		rows:   rows,
		footer: []any{"Total", "", "", report.TotalUnits, report.TotalValue.InexactFloat64()},
	}.render()
}

func RenderCustomerPurchasesXLSX(report CustomerPurchasesReport) ([]byte, error) {
	rows := make([][]any, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, []any{
			r.SaleID, r.Date.Format(reportDateFmt), r.ProductName, r.Quantity,
			r.UnitPrice.InexactFloat64(), r.LineTotal.InexactFloat64(),
		})
	}
	return sheet{
		name:   "Purchases",
		header: []any{"Sale", "Date", "Product", "Quantity", "Unit price", "Line total"},
		rows:   rows,
		footer: []any{"Total " + report.CustomerName, "", "", "", "", report.Total.InexactFloat64()},
	}.render()
}
