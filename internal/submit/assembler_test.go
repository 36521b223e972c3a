package submit

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/pricing"
)

func completedDraft() *model.Draft {
	d := model.NewDraft()
	d.VisaSelection = model.VisaSelection{
		VisaType:         model.VisaGeneral,
		VisaDurationType: model.DurationSingle90,
	}
	d.PersonalInfo = model.PersonalInfo{
		FullName:      "HONG GILDONG",
		Email:         "hong@example.com",
		Phone:         "+82 10-1234-5678",
		Address:       "123 Teheran-ro, Seoul",
		PhoneOfFriend: "+84 90 123 4567",
	}
	d.TravelInfo = model.TravelInfo{EntryDate: "2026-10-01", EntryPort: "SGN"}
	d.Documents[model.RolePassport] = model.DocumentRecord{
		FileName:      "passport.jpg",
		FileSize:      1024,
		FileType:      "image/jpeg",
		FileData:      "data:image/jpeg;base64,AA==",
		ExtractedInfo: map[string]string{"passportNo": "M1234567"},
	}
	d.Documents[model.RolePhoto] = model.DocumentRecord{
		FileName: "photo.png",
		FileSize: 2048,
		FileType: "image/png",
		FileData: "data:image/png;base64,AA==",
	}
	return d
}

func TestNewApplicationID(t *testing.T) {
	pattern := regexp.MustCompile(`^VN\d{17}$`)
	id := NewApplicationID()
	assert.True(t, pattern.MatchString(id), "id %q should be VN + epoch millis + 4-digit suffix", id)
}

func TestAssemble(t *testing.T) {
	t.Run("flattens draft sections", func(t *testing.T) {
		p := Assemble(completedDraft())
		assert.Equal(t, model.VisaGeneral, p.VisaType)
		assert.Equal(t, model.DurationSingle90, p.VisaDurationType)
		assert.Equal(t, "HONG GILDONG", p.FullName)
		assert.Equal(t, "hong@example.com", p.Email)
		assert.Equal(t, "2026-10-01", p.EntryDate)
		assert.Equal(t, "SGN", p.EntryPort)
	})

	t.Run("re-derives the total price", func(t *testing.T) {
		d := completedDraft()
		p := Assemble(d)
		assert.True(t, p.TotalPrice.Equal(decimal.NewFromInt(67500)))
		assert.Equal(t, pricing.KRW, p.Currency)
	})

	t.Run("generates an id when the draft has none", func(t *testing.T) {
		p := Assemble(completedDraft())
		assert.NotEmpty(t, p.ApplicationID)
		assert.Contains(t, p.ApplicationID, "VN")
	})

	t.Run("reuses the draft's id verbatim", func(t *testing.T) {
		d := completedDraft()
		d.ApplicationID = "VN17000000000000001"
		p := Assemble(d)
		assert.Equal(t, "VN17000000000000001", p.ApplicationID)
	})

	t.Run("omits empty document records", func(t *testing.T) {
		d := completedDraft()
		d.Documents[model.RolePhoto] = model.DocumentRecord{}
		p := Assemble(d)
		assert.Contains(t, p.Documents, "passport")
		assert.NotContains(t, p.Documents, "photo")
	})

	t.Run("carries extracted info through", func(t *testing.T) {
		p := Assemble(completedDraft())
		assert.Equal(t, "M1234567", p.Documents["passport"].ExtractedInfo["passportNo"])
	})

	t.Run("nil services become an empty slice", func(t *testing.T) {
		d := completedDraft()
		d.AdditionalServices = nil
		p := Assemble(d)
		assert.NotNil(t, p.AdditionalServiceIDs)
		assert.Empty(t, p.AdditionalServiceIDs)
	})

	t.Run("transit drafts submit in VND", func(t *testing.T) {
		d := completedDraft()
		d.VisaSelection = model.VisaSelection{
			VisaType:           model.VisaTransit,
			VisaDurationType:   model.DurationSingle90,
			TransitPeopleCount: 2,
			TransitVehicleType: model.VehicleCarnival,
		}
		p := Assemble(d)
		assert.Equal(t, pricing.VND, p.Currency)
		assert.True(t, p.TotalPrice.Equal(decimal.NewFromInt(13_400_000)))
		assert.Equal(t, 2, p.TransitPeopleCount)
		assert.Equal(t, model.VehicleCarnival, p.TransitVehicleType)
	})
}
