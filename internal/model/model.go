package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// VisaType identifies the visa product being applied for.
type VisaType string

const (
	VisaGeneral VisaType = "E_VISA_GENERAL"
	VisaUrgent  VisaType = "E_VISA_URGENT"
	VisaTransit VisaType = "E_VISA_TRANSIT"
)

// DurationType distinguishes single-entry from multiple-entry visas.
type DurationType string

const (
	DurationSingle90   DurationType = "SINGLE_90"
	DurationMultiple90 DurationType = "MULTIPLE_90"
)

// ProcessingType selects the processing speed for urgent visas.
// General visas are always processed at the GENERAL speed.
type ProcessingType string

const (
	ProcessingGeneral ProcessingType = "GENERAL"
	Express3Day       ProcessingType = "EXPRESS_3DAY"
	Express2Day       ProcessingType = "EXPRESS_2DAY"
	Express1Day       ProcessingType = "EXPRESS_1DAY"
	Express4Hour      ProcessingType = "EXPRESS_4HOUR"
	Express2Hour      ProcessingType = "EXPRESS_2HOUR"
	Express1Hour      ProcessingType = "EXPRESS_1HOUR"
)

// VehicleType is the border-crossing vehicle for transit visas.
type VehicleType string

const (
	VehicleInnova   VehicleType = "INNOVA"
	VehicleCarnival VehicleType = "CARNIVAL"
)

// Status is the application lifecycle tag owned by this subsystem.
// Downstream states (review, approval) belong to the backend.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
)

const (
	// MinTransitPeople and MaxTransitPeople bound the transit party size.
	MinTransitPeople = 1
	MaxTransitPeople = 3
)

// EntryPorts lists the supported airports and border crossings.
var EntryPorts = []string{"SGN", "HAN", "DAD", "CXR", "PQC", "VDO", "HPH", "UIH", "CAH"}

// IsValidEntryPort reports whether code is a known entry port.
func IsValidEntryPort(code string) bool {
	return lo.Contains(EntryPorts, code)
}

// DocumentRole is the semantic slot a document fills. Transit applications
// use synthesized per-person roles instead of the plain passport/photo pair.
type DocumentRole string

const (
	RolePassport DocumentRole = "passport"
	RolePhoto    DocumentRole = "photo"
)

// PassportRole returns the passport role for the person at index i.
func PassportRole(i int) DocumentRole {
	return DocumentRole(fmt.Sprintf("passportPerson%d", i))
}

// PhotoRole returns the photo role for the person at index i.
func PhotoRole(i int) DocumentRole {
	return DocumentRole(fmt.Sprintf("photoPerson%d", i))
}

// IsPhoto reports whether the role holds an identity photo. Photo roles
// carry a tighter size ceiling and an image-only MIME allow-list.
func (r DocumentRole) IsPhoto() bool {
	return r == RolePhoto || strings.HasPrefix(string(r), "photoPerson")
}

// IsPassport reports whether the role holds a passport scan. Passport roles
// are the only ones fed to the recognition service.
func (r DocumentRole) IsPassport() bool {
	return r == RolePassport || strings.HasPrefix(string(r), "passportPerson")
}

// VisaSelection holds the step-1 choices. ProcessingType is meaningful only
// for urgent visas; the transit fields only for transit visas.
type VisaSelection struct {
	VisaType           VisaType       `json:"visaType"`
	VisaDurationType   DurationType   `json:"visaDurationType"`
	ProcessingType     ProcessingType `json:"processingType,omitempty"`
	TransitPeopleCount int            `json:"transitPeopleCount,omitempty"`
	TransitVehicleType VehicleType    `json:"transitVehicleType,omitempty"`
}

// RequiredRoles derives the document roles a draft must carry to pass the
// upload step. Transit parties use per-person keys; everything else uses the
// plain passport/photo pair.
func (s VisaSelection) RequiredRoles() []DocumentRole {
	if s.VisaType != VisaTransit {
		return []DocumentRole{RolePassport, RolePhoto}
	}
	n := ClampPeopleCount(s.TransitPeopleCount)
	roles := make([]DocumentRole, 0, 2*n)
	for i := 0; i < n; i++ {
		roles = append(roles, PassportRole(i), PhotoRole(i))
	}
	return roles
}

// ClampPeopleCount clamps a transit party size into the supported range.
func ClampPeopleCount(n int) int {
	if n < MinTransitPeople {
		return MinTransitPeople
	}
	if n > MaxTransitPeople {
		return MaxTransitPeople
	}
	return n
}

// PersonalInfo holds the step-2 fields. Validation tags follow
// go-playground/validator; phone_intl is registered in internal/validate.
type PersonalInfo struct {
	FullName      string `json:"fullName" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"required,phone_intl"`
	Address       string `json:"address" validate:"required"`
	PhoneOfFriend string `json:"phoneOfFriend" validate:"required,phone_intl"`
}

// TravelInfo holds the step-3 fields. EntryDate uses YYYY-MM-DD.
type TravelInfo struct {
	EntryDate string `json:"entryDate"`
	EntryPort string `json:"entryPort"`
}

// DocumentRecord is an accepted upload stored under its role.
type DocumentRecord struct {
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	FileType   string    `json:"fileType"`
	FileData   string    `json:"fileData"` // data-URI encoded bytes
	UploadedAt time.Time `json:"uploadedAt"`

	// ExtractedInfo carries fields returned by the recognition service,
	// normalized to camelCase. Absent for roles without recognition.
	ExtractedInfo map[string]string `json:"extractedInfo,omitempty"`

	// ValidationResult is the photo suitability verdict ("SUITABLE" or a
	// rejection code). Empty when no verdict was obtained.
	ValidationResult string `json:"validationResult,omitempty"`
}

// Empty reports whether the record carries no file payload.
func (r DocumentRecord) Empty() bool {
	return r.FileData == "" && r.FileName == ""
}

// Draft is the single mutable aggregate owned by the wizard for the
// lifetime of one application attempt.
type Draft struct {
	ApplicationID      string                          `json:"applicationId,omitempty"`
	Status             Status                          `json:"status"`
	VisaSelection      VisaSelection                   `json:"visaSelection"`
	PersonalInfo       PersonalInfo                    `json:"personalInfo"`
	TravelInfo         TravelInfo                      `json:"travelInfo"`
	Documents          map[DocumentRole]DocumentRecord `json:"documents"`
	AdditionalServices []string                        `json:"additionalServices"`
}

// NewDraft creates an empty draft with defaults.
func NewDraft() *Draft {
	return &Draft{
		Status:    StatusDraft,
		Documents: make(map[DocumentRole]DocumentRecord),
		VisaSelection: VisaSelection{
			TransitPeopleCount: MinTransitPeople,
		},
	}
}

// Clone returns a deep copy of the draft. Callers outside the wizard only
// ever see clones; the live draft has a single owner.
func (d *Draft) Clone() *Draft {
	out := *d
	out.Documents = make(map[DocumentRole]DocumentRecord, len(d.Documents))
	for role, rec := range d.Documents {
		if rec.ExtractedInfo != nil {
			rec.ExtractedInfo = lo.Assign(map[string]string{}, rec.ExtractedInfo)
		}
		out.Documents[role] = rec
	}
	out.AdditionalServices = append([]string(nil), d.AdditionalServices...)
	return &out
}

// Normalize clears fields that are meaningless for the selected visa type:
// processing speed for non-urgent visas, transit party fields for
// non-transit visas. It also deduplicates the additional-service set.
func (d *Draft) Normalize() {
	if d.VisaSelection.VisaType != VisaUrgent {
		d.VisaSelection.ProcessingType = ""
	}
	if d.VisaSelection.VisaType != VisaTransit {
		d.VisaSelection.TransitPeopleCount = MinTransitPeople
		d.VisaSelection.TransitVehicleType = ""
	} else {
		d.VisaSelection.TransitPeopleCount = ClampPeopleCount(d.VisaSelection.TransitPeopleCount)
	}
	d.AdditionalServices = lo.Uniq(d.AdditionalServices)
	if d.Documents == nil {
		d.Documents = make(map[DocumentRole]DocumentRecord)
	}
}
