// Package validate holds the field predicates and per-step completeness
// rules gating forward transitions in the application wizard.
package validate

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
)

// SuitableVerdict is the passing photo suitability verdict returned by the
// external photo checker.
const SuitableVerdict = "SUITABLE"

var (
	phoneSeparators = regexp.MustCompile(`[\s\-().+]`)
	digitsOnly      = regexp.MustCompile(`^\d+$`)
	passportPattern = regexp.MustCompile(`^[A-Za-z0-9]{6,12}$`)
)

var v = newValidator()

func newValidator() *validator.Validate {
	vld := validator.New(validator.WithRequiredStructEnabled())
	// Registered here so model struct tags can reference it.
	_ = vld.RegisterValidation("phone_intl", func(fl validator.FieldLevel) bool {
		return Phone(fl.Field().String())
	})
	return vld
}

// Email reports whether s is a syntactically valid email address.
func Email(s string) bool {
	return v.Var(s, "required,email") == nil
}

// Phone reports whether s is an international phone number: 8-15 digits
// after stripping spaces, dashes, dots, parentheses and a leading plus.
func Phone(s string) bool {
	stripped := phoneSeparators.ReplaceAllString(s, "")
	if !digitsOnly.MatchString(stripped) {
		return false
	}
	return len(stripped) >= 8 && len(stripped) <= 15
}

// PassportNumber reports whether s looks like a passport number
// (6-12 alphanumeric characters).
func PassportNumber(s string) bool {
	return passportPattern.MatchString(s)
}

// Step reports whether the draft satisfies the completeness rule for the
// given wizard step. Unknown steps never validate.
func Step(step int, d *model.Draft) bool {
	return len(StepErrors(step, d)) == 0 && step >= 1 && step <= 5
}

// StepErrors returns field-level failure messages for the given step.
// An empty map means the step validates. The wizard itself treats failures
// as silent no-ops; these messages exist for the UI layer.
func StepErrors(step int, d *model.Draft) map[string]string {
	errs := make(map[string]string)
	switch step {
	case 1:
		stepOneErrors(d, errs)
	case 2:
		stepTwoErrors(d, errs)
	case 3:
		stepThreeErrors(d, errs)
	case 4:
		stepFourErrors(d, errs)
	case 5:
		// Review is non-blocking; the submit gate is the terms checkbox,
		// enforced by the submit operation.
	}
	return errs
}

func stepOneErrors(d *model.Draft, errs map[string]string) {
	sel := d.VisaSelection
	if sel.VisaType == "" {
		errs["visaType"] = "visa type is required"
	}
	if sel.VisaDurationType == "" {
		errs["visaDurationType"] = "entry duration is required"
	}
	if sel.VisaType == model.VisaUrgent && sel.ProcessingType == "" {
		errs["processingType"] = "processing speed is required for urgent visas"
	}
}

func stepTwoErrors(d *model.Draft, errs map[string]string) {
	err := v.Struct(d.PersonalInfo)
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["personalInfo"] = "invalid personal information"
		return
	}
	for _, fe := range verrs {
		switch fe.Field() {
		case "FullName":
			errs["fullName"] = "full name is required"
		case "Email":
			errs["email"] = "a valid email address is required"
		case "Phone":
			errs["phone"] = "a valid phone number is required"
		case "Address":
			errs["address"] = "address is required"
		case "PhoneOfFriend":
			errs["phoneOfFriend"] = "a valid local contact number is required"
		}
	}
}

func stepThreeErrors(d *model.Draft, errs map[string]string) {
	ti := d.TravelInfo
	if ti.EntryDate == "" {
		errs["entryDate"] = "entry date is required"
	} else if date, err := time.Parse("2006-01-02", ti.EntryDate); err != nil {
		errs["entryDate"] = "entry date must be YYYY-MM-DD"
	} else {
		now := time.Now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if date.Before(today) {
			errs["entryDate"] = "entry date cannot be in the past"
		}
	}
	if ti.EntryPort == "" {
		errs["entryPort"] = "entry port is required"
	} else if !model.IsValidEntryPort(ti.EntryPort) {
		errs["entryPort"] = "unknown entry port"
	}
}

func stepFourErrors(d *model.Draft, errs map[string]string) {
	for _, role := range d.VisaSelection.RequiredRoles() {
		rec, ok := d.Documents[role]
		if !ok || rec.Empty() {
			errs[string(role)] = "document is required"
			continue
		}
		// Opportunistic suitability check: a verdict is only enforced
		// when one was actually obtained.
		if role.IsPhoto() && rec.ValidationResult != "" && rec.ValidationResult != SuitableVerdict {
			errs[string(role)] = "photo does not meet passport photo requirements"
		}
	}
}
