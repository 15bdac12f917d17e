package service

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/boddenberg/occurrence-console/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Export file names and sheet.
const (
	CSVFileName  = "occurrences.csv"
	XLSXFileName = "occurrences.xlsx"
	SheetName    = "Occurrences"
)

// ExportHeaders are the fixed export columns.
var ExportHeaders = []string{
	"Date", "Sale ID", "Description", "Category", "Detection Area",
	"Origin Area", "Salesperson", "Immediate Action", "Action Description", "Status",
}

func exportRow(o domain.Occurrence) []string {
	return []string{
		domain.FormatDate(o.Date),
		o.SaleID,
		o.Description,
		o.Category,
		o.DetectionArea,
		o.OriginArea,
		o.Salesperson,
		o.ImmediateAction,
		o.ActionDescription,
		string(o.Status),
	}
}

// ExportCSV writes rows as CSV with a header line.
func ExportCSV(w io.Writer, rows []domain.Occurrence) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeaders); err != nil {
		return err
	}
	for _, o := range rows {
		if err := cw.Write(exportRow(o)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportXLSX writes rows as a single-sheet workbook.
func ExportXLSX(w io.Writer, rows []domain.Occurrence) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	if err := sw.SetRow("A1", toCells(ExportHeaders)); err != nil {
		return err
	}
	for i, o := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(exportRow(o))); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	_, err = f.WriteTo(w)
	return err
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
