// Package submit assembles the backend submission payload from a finished
// draft and delivers it to the submissions endpoint.
package submit

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/pricing"
)

// PayloadDocument is the per-role document entry submitted to the backend.
type PayloadDocument struct {
	FileName      string            `json:"fileName"`
	FileSize      int64             `json:"fileSize"`
	FileType      string            `json:"fileType"`
	FileData      string            `json:"fileData"`
	ExtractedInfo map[string]string `json:"extractedInfo,omitempty"`
}

// Payload is the exact shape the backend submissions endpoint expects.
type Payload struct {
	ApplicationID        string                     `json:"applicationId"`
	VisaType             model.VisaType             `json:"visaType"`
	VisaDurationType     model.DurationType         `json:"visaDurationType"`
	ProcessingType       model.ProcessingType       `json:"processingType,omitempty"`
	TransitPeopleCount   int                        `json:"transitPeopleCount,omitempty"`
	TransitVehicleType   model.VehicleType          `json:"transitVehicleType,omitempty"`
	FullName             string                     `json:"fullName"`
	Email                string                     `json:"email"`
	Phone                string                     `json:"phone"`
	Address              string                     `json:"address"`
	PhoneOfFriend        string                     `json:"phoneOfFriend"`
	EntryDate            string                     `json:"entryDate"`
	EntryPort            string                     `json:"entryPort"`
	TotalPrice           decimal.Decimal            `json:"totalPrice"`
	Currency             pricing.Currency           `json:"currency"`
	AdditionalServiceIDs []string                   `json:"additionalServiceIds"`
	Documents            map[string]PayloadDocument `json:"documents"`
}

// Result is the backend's successful submission response.
type Result struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
}

// NewApplicationID generates a client-side application id: the VN prefix,
// epoch milliseconds, and a random suffix. Generated exactly once per
// draft; retries reuse the stored id.
func NewApplicationID() string {
	return fmt.Sprintf("VN%d%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

// Assemble builds the submission payload. The total price is re-derived
// from the draft at assembly time rather than trusted from earlier UI
// state. Documents without file content are omitted. The draft's
// application id is used verbatim when present so repeated submit attempts
// stay idempotent.
func Assemble(d *model.Draft) Payload {
	id := d.ApplicationID
	if id == "" {
		id = NewApplicationID()
	}

	breakdown := pricing.Compute(d)

	docs := make(map[string]PayloadDocument, len(d.Documents))
	for role, rec := range d.Documents {
		if rec.Empty() {
			continue
		}
		docs[string(role)] = PayloadDocument{
			FileName:      rec.FileName,
			FileSize:      rec.FileSize,
			FileType:      rec.FileType,
			FileData:      rec.FileData,
			ExtractedInfo: rec.ExtractedInfo,
		}
	}

	services := d.AdditionalServices
	if services == nil {
		services = []string{}
	}

	return Payload{
		ApplicationID:        id,
		VisaType:             d.VisaSelection.VisaType,
		VisaDurationType:     d.VisaSelection.VisaDurationType,
		ProcessingType:       d.VisaSelection.ProcessingType,
		TransitPeopleCount:   d.VisaSelection.TransitPeopleCount,
		TransitVehicleType:   d.VisaSelection.TransitVehicleType,
		FullName:             d.PersonalInfo.FullName,
		Email:                d.PersonalInfo.Email,
		Phone:                d.PersonalInfo.Phone,
		Address:              d.PersonalInfo.Address,
		PhoneOfFriend:        d.PersonalInfo.PhoneOfFriend,
		EntryDate:            d.TravelInfo.EntryDate,
		EntryPort:            d.TravelInfo.EntryPort,
		TotalPrice:           breakdown.Total,
		Currency:             breakdown.Currency,
		AdditionalServiceIDs: services,
		Documents:            docs,
	}
}
