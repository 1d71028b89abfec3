package generator

import (
	"fmt"
	"strings"

	"github.com/Turnstyle/ria-hunter-sub000/core/data"
)

// notDisclosed marks absent profile attributes explicitly so the model is
// never left to fill gaps on its own.
const notDisclosed = "not disclosed"

const systemPrompt = "You are a financial research assistant writing concise, " +
	"factual profiles of registered investment advisers. Use only the facts " +
	"provided. Where a fact reads \"" + notDisclosed + "\", state that it is " +
	"not disclosed instead of guessing."

// BuildPrompt renders the fixed generation template for a profile. The field
// order is stable so identical profiles always yield identical prompts.
func BuildPrompt(profile data.Profile) (string, error) {
	if strings.TrimSpace(profile.LegalName) == "" {
		return "", fmt.Errorf("%w: profile %d has no legal name", ErrDataInvalid, profile.CRDNumber)
	}

	var b strings.Builder
	b.WriteString("Write a single-paragraph narrative profile of the registered investment adviser described below.\n\n")
	writeFact(&b, "Firm name", profile.LegalName)
	writeFact(&b, "City", profile.City)
	writeFact(&b, "State", profile.State)
	writeFact(&b, "CRD number", fmt.Sprintf("%d", profile.CRDNumber))
	writeFact(&b, "SEC file number", profile.SECNumber)
	writeFact(&b, "Assets under management", formatAUM(profile.AUM))
	if profile.EmployeeCount > 0 {
		writeFact(&b, "Employees", fmt.Sprintf("%d", profile.EmployeeCount))
	} else {
		writeFact(&b, "Employees", "")
	}
	writeFact(&b, "Services", profile.Services)
	writeFact(&b, "Client types", profile.ClientTypes)
	return b.String(), nil
}

func writeFact(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = notDisclosed
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func formatAUM(aum int64) string {
	switch {
	case aum >= 1_000_000_000:
		return fmt.Sprintf("$%.1f billion", float64(aum)/1_000_000_000)
	case aum >= 1_000_000:
		return fmt.Sprintf("$%.1f million", float64(aum)/1_000_000)
	case aum > 0:
		return fmt.Sprintf("$%d", aum)
	default:
		return ""
	}
}
