package api

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/pricing"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/wizard"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   int               `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// CreateSessionRequest optionally resumes a prior session by id.
type CreateSessionRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

// JumpRequest targets a step for the edit affordance.
type JumpRequest struct {
	Step int `json:"step"`
}

// SubmitRequest carries the terms-acceptance gate.
type SubmitRequest struct {
	TermsAccepted bool `json:"termsAccepted"`
}

// DocumentSummary is a document entry without its inline file payload.
type DocumentSummary struct {
	FileName         string            `json:"fileName"`
	FileSize         int64             `json:"fileSize"`
	FileType         string            `json:"fileType"`
	UploadedAt       time.Time         `json:"uploadedAt"`
	Pending          bool              `json:"pending,omitempty"`
	ExtractedInfo    map[string]string `json:"extractedInfo,omitempty"`
	ValidationResult string            `json:"validationResult,omitempty"`
}

// PriceResponse is an itemized quote, optionally converted for display.
type PriceResponse struct {
	BasePrice        decimal.Decimal  `json:"basePrice"`
	VehicleSurcharge decimal.Decimal  `json:"vehicleSurcharge"`
	ServicesTotal    decimal.Decimal  `json:"servicesTotal"`
	Total            decimal.Decimal  `json:"total"`
	Currency         pricing.Currency `json:"currency"`
	DisplayTotal     *decimal.Decimal `json:"displayTotal,omitempty"`
	DisplayCurrency  pricing.Currency `json:"displayCurrency,omitempty"`
}

// SessionResponse is the full wizard state for a session.
type SessionResponse struct {
	SessionID          string                                `json:"sessionId"`
	Step               int                                   `json:"step"`
	Status             model.Status                          `json:"status"`
	ApplicationID      string                                `json:"applicationId,omitempty"`
	VisaSelection      model.VisaSelection                   `json:"visaSelection"`
	PersonalInfo       model.PersonalInfo                    `json:"personalInfo"`
	TravelInfo         model.TravelInfo                      `json:"travelInfo"`
	AdditionalServices []string                              `json:"additionalServices"`
	Documents          map[model.DocumentRole]DocumentSummary `json:"documents"`
	RequiredDocuments  []model.DocumentRole                  `json:"requiredDocuments"`
	Price              PriceResponse                         `json:"price"`
	StepErrors         map[string]string                     `json:"stepErrors,omitempty"`
}

// SubmissionResponse is the backend's answer to a stored submission.
type SubmissionResponse struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
}

func newSessionResponse(w *wizard.Wizard) SessionResponse {
	draft := w.Draft()
	docs := make(map[model.DocumentRole]DocumentSummary, len(draft.Documents))
	for role, rec := range draft.Documents {
		docs[role] = DocumentSummary{
			FileName:         rec.FileName,
			FileSize:         rec.FileSize,
			FileType:         rec.FileType,
			UploadedAt:       rec.UploadedAt,
			ExtractedInfo:    rec.ExtractedInfo,
			ValidationResult: rec.ValidationResult,
		}
	}
	// Surface in-flight conversions for roles with no committed record yet.
	for _, role := range draft.VisaSelection.RequiredRoles() {
		if _, ok := docs[role]; !ok && w.UploadPending(role) {
			docs[role] = DocumentSummary{Pending: true}
		}
	}

	return SessionResponse{
		SessionID:          w.SessionID(),
		Step:               w.Step(),
		Status:             draft.Status,
		ApplicationID:      draft.ApplicationID,
		VisaSelection:      draft.VisaSelection,
		PersonalInfo:       draft.PersonalInfo,
		TravelInfo:         draft.TravelInfo,
		AdditionalServices: draft.AdditionalServices,
		Documents:          docs,
		RequiredDocuments:  draft.VisaSelection.RequiredRoles(),
		Price:              newPriceResponse(w.Price(), ""),
		StepErrors:         w.StepErrors(),
	}
}

func newPriceResponse(b pricing.Breakdown, display pricing.Currency) PriceResponse {
	resp := PriceResponse{
		BasePrice:        b.BasePrice,
		VehicleSurcharge: b.VehicleSurcharge,
		ServicesTotal:    b.ServicesTotal,
		Total:            b.Total,
		Currency:         b.Currency,
	}
	if display != "" && display != b.Currency {
		converted := pricing.DisplayAmount(b.Total, b.Currency, display)
		resp.DisplayTotal = &converted
		resp.DisplayCurrency = display
	}
	return resp
}

func pricingCurrency(s string) pricing.Currency {
	switch strings.ToUpper(s) {
	case "USD":
		return pricing.USD
	case "KRW":
		return pricing.KRW
	case "VND":
		return pricing.VND
	default:
		return ""
	}
}
