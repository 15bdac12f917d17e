package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an occurrence.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInAnalysis Status = "In Analysis"
	StatusResolved   Status = "Resolved"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusOpen, StatusInAnalysis, StatusResolved}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Occurrence is a logged incident tied to a sales transaction.
type Occurrence struct {
	ID                string    `json:"id"`
	Date              time.Time `json:"date"`
	SaleID            string    `json:"saleId"`
	Description       string    `json:"description"`
	Category          string    `json:"category"`
	DetectionArea     string    `json:"detectionArea"`
	OriginArea        string    `json:"originArea"`
	Salesperson       string    `json:"salesperson"`
	ImmediateAction   string    `json:"immediateAction"`
	ActionDescription string    `json:"actionDescription"`
	Status            Status    `json:"status"`
}

// OccurrenceFromDocument decodes a remote document. Unknown fields are ignored.
func OccurrenceFromDocument(doc Document) Occurrence {
	f := doc.Fields
	return Occurrence{
		ID:                doc.ID,
		Date:              dateField(f, "date"),
		SaleID:            stringField(f, "saleId"),
		Description:       stringField(f, "description"),
		Category:          stringField(f, "category"),
		DetectionArea:     stringField(f, "detectionArea"),
		OriginArea:        stringField(f, "originArea"),
		Salesperson:       stringField(f, "salesperson"),
		ImmediateAction:   stringField(f, "immediateAction"),
		ActionDescription: stringField(f, "actionDescription"),
		Status:            Status(stringField(f, "status")),
	}
}

// OccurrenceInput is the payload collected by the occurrence form.
type OccurrenceInput struct {
	Date              string `json:"date"`
	SaleID            string `json:"saleId"`
	Description       string `json:"description"`
	Category          string `json:"category"`
	DetectionArea     string `json:"detectionArea"`
	OriginArea        string `json:"originArea"`
	Salesperson       string `json:"salesperson"`
	ImmediateAction   string `json:"immediateAction"`
	ActionDescription string `json:"actionDescription"`
	Status            Status `json:"status"`
}

// Validate checks the required fields of the occurrence form.
func (in *OccurrenceInput) Validate() error {
	required := []struct {
		field, value string
	}{
		{"date", in.Date},
		{"saleId", in.SaleID},
		{"description", in.Description},
		{"category", in.Category},
		{"detectionArea", in.DetectionArea},
		{"originArea", in.OriginArea},
		{"salesperson", in.Salesperson},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ErrValidation{Field: r.field, Message: "is required"}
		}
	}
	if _, err := ParseDate(in.Date); err != nil {
		return &ErrValidation{Field: "date", Message: err.Error()}
	}
	if in.Status == "" {
		in.Status = StatusOpen
	}
	if !in.Status.Valid() {
		return &ErrValidation{Field: "status", Message: "must be one of Open, In Analysis, Resolved"}
	}
	return nil
}

// Fields returns the document field map written to the store.
func (in OccurrenceInput) Fields() map[string]any {
	date, _ := ParseDate(in.Date)
	return map[string]any{
		"date":              FormatDate(date),
		"saleId":            strings.TrimSpace(in.SaleID),
		"description":       strings.TrimSpace(in.Description),
		"category":          in.Category,
		"detectionArea":     in.DetectionArea,
		"originArea":        in.OriginArea,
		"salesperson":       in.Salesperson,
		"immediateAction":   in.ImmediateAction,
		"actionDescription": strings.TrimSpace(in.ActionDescription),
		"status":            string(in.Status),
	}
}
