package usecase

import (
	"context"
	"fmt"
	"strings"
)

type QuickActionKind string

const (
	QuickActionSymptoms   QuickActionKind = "symptoms"
	QuickActionHeart      QuickActionKind = "heart"
	QuickActionPreventive QuickActionKind = "preventive"
	QuickActionMedication QuickActionKind = "medication"
)

// QuickActionForm is the union of the fields of the four quick-action dialogs.
type QuickActionForm struct {
	Symptoms string `json:"symptoms"`
	Duration string `json:"duration"`
	Severity string `json:"severity"`

	Concerns      string   `json:"concerns"`
	Age           string   `json:"age"`
	BloodPressure string   `json:"bloodPressure"`
	RiskFactors   []string `json:"riskFactors"`

	CareType string `json:"careType"`
	AgeGroup string `json:"ageGroup"`
	Goals    string `json:"goals"`

	MedicationName string   `json:"medicationName"`
	Dosage         string   `json:"dosage"`
	Frequency      string   `json:"frequency"`
	ReminderTimes  []string `json:"reminderTimes"`
	Instructions   string   `json:"instructions"`
}

// FormatQuickAction turns a dialog form into the chat message sent on the
// user's behalf. Each kind requires its headline field.
func FormatQuickAction(kind QuickActionKind, f QuickActionForm) (string, error) {
	var b strings.Builder
	line := func(label, v string) {
		if strings.TrimSpace(v) != "" {
			fmt.Fprintf(&b, "\n%s: %s", label, v)
		}
	}

	switch kind {
	case QuickActionSymptoms:
		if strings.TrimSpace(f.Symptoms) == "" {
			return "", missingField("symptoms")
		}
		fmt.Fprintf(&b, "I'm experiencing the following symptoms: %s", f.Symptoms)
		line("Duration", f.Duration)
		line("Severity", f.Severity)
	case QuickActionHeart:
		if strings.TrimSpace(f.Concerns) == "" {
			return "", missingField("concerns")
		}
		fmt.Fprintf(&b, "I have heart health concerns: %s", f.Concerns)
		line("Age", f.Age)
		line("Blood Pressure", f.BloodPressure)
		line("Risk Factors", strings.Join(f.RiskFactors, ", "))
	case QuickActionPreventive:
		if strings.TrimSpace(f.CareType) == "" {
			return "", missingField("careType")
		}
		fmt.Fprintf(&b, "I'm interested in preventive care for: %s", f.CareType)
		line("Age Group", f.AgeGroup)
		line("Health Goals", f.Goals)
	case QuickActionMedication:
		if strings.TrimSpace(f.MedicationName) == "" {
			return "", missingField("medicationName")
		}
		fmt.Fprintf(&b, "I need a medication reminder for: %s (%s)", f.MedicationName, f.Dosage)
		line("Frequency", f.Frequency)
		line("Reminder Times", strings.Join(f.ReminderTimes, ", "))
		line("Instructions", f.Instructions)
	default:
		return "", newUserError(ErrorInvalidInput, "unknown_quick_action", "Unknown quick action.", nil)
	}
	return b.String(), nil
}

// QuickAction formats the form and submits it like a typed message.
func (p *ChatPage) QuickAction(ctx context.Context, kind QuickActionKind, f QuickActionForm) (Exchange, error) {
	msg, err := FormatQuickAction(kind, f)
	if err != nil {
		return Exchange{}, err
	}
	return p.Submit(ctx, msg)
}

func missingField(name string) *Error {
	return newUserError(ErrorInvalidInput, "missing_"+name, "Please fill in "+name+".", nil)
}
