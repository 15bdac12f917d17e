package service_test

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/service"

	"github.com/go-playground/assert/v2"
	"github.com/xuri/excelize/v2"
)

func exportFixture() []domain.Occurrence {
	return []domain.Occurrence{
		{
			ID: "o1", Date: day("2024-05-10"), SaleID: "S-1", Description: "Late, very late",
			Category: "Logistics", DetectionArea: "Store", OriginArea: "Carrier", Salesperson: "Rita",
			ImmediateAction: "Refund", ActionDescription: "Partial refund", Status: domain.StatusOpen,
		},
		{
			ID: "o2", Date: day("2024-04-01"), SaleID: "S-2", Description: "Wrong size",
			Category: "Product", DetectionArea: "Support", OriginArea: "Warehouse", Salesperson: "Leo",
			Status: domain.StatusResolved,
		},
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := service.ExportCSV(&buf, exportFixture()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, len(records), 3)
	assert.Equal(t, records[0], service.ExportHeaders)
	assert.Equal(t, records[1][0], "2024-05-10")
	assert.Equal(t, records[1][2], "Late, very late")
	assert.Equal(t, records[2][9], "Resolved")
}

func TestExportXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := service.ExportXLSX(&buf, exportFixture()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(service.SheetName)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, len(rows), 3)
	assert.Equal(t, rows[0], service.ExportHeaders)
	assert.Equal(t, rows[1][1], "S-1")
	assert.Equal(t, rows[2][0], "2024-04-01")
}

func TestExportCSV_EmptyListWritesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := service.ExportCSV(&buf, nil); err != nil {
		t.Fatal(err)
	}
	records, _ := csv.NewReader(&buf).ReadAll()
	assert.Equal(t, len(records), 1)
}
