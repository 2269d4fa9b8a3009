package domain

import (
	"fmt"
	"strings"
)

// ExtractedFields is the per-type view of the loosely shaped key/value bag the
// vision model returns. Keys that no variant recognizes land in Extra.
type ExtractedFields interface {
	DocumentType() DocumentType
	ExtraFields() GenericFields
}

// GenericFields is an untyped bag of optional strings.
type GenericFields map[string]string

func (g GenericFields) Get(key string) string {
	if g == nil {
		return ""
	}
	return g[key]
}

type AccidentFields struct {
	PersonName        string
	AHVNumber         string
	AccidentDate      string
	InjuryDescription string
	AccidentLocation  string
	Employer          string
	Extra             GenericFields
}

func (AccidentFields) DocumentType() DocumentType    { return TypeAccidentReport }
func (f AccidentFields) ExtraFields() GenericFields { return f.Extra }

type DamageFields struct {
	DamageDate      string
	Location        string
	Description     string
	EstimatedAmount string
	PolicyNumber    string
	Extra           GenericFields
}

func (DamageFields) DocumentType() DocumentType    { return TypeDamageReport }
func (f DamageFields) ExtraFields() GenericFields { return f.Extra }

type ContractChangeFields struct {
	ChangeType    string
	Description   string
	PolicyNumber  string
	EffectiveDate string
	Extra         GenericFields
}

func (ContractChangeFields) DocumentType() DocumentType    { return TypeContractChange }
func (f ContractChangeFields) ExtraFields() GenericFields { return f.Extra }

type InvoiceFields struct {
	InvoiceNumber string
	InvoiceDate   string
	DueDate       string
	Amount        string
	Currency      string
	Issuer        string
	Extra         GenericFields
}

func (InvoiceFields) DocumentType() DocumentType    { return TypeInvoice }
func (f InvoiceFields) ExtraFields() GenericFields { return f.Extra }

type MiscFields struct {
	Title       string
	Description string
	Extra       GenericFields
}

func (MiscFields) DocumentType() DocumentType    { return TypeMisc }
func (f MiscFields) ExtraFields() GenericFields { return f.Extra }

var fieldAliases = map[string][]string{
	"person_name":        {"person_name", "name", "full_name", "versicherte_person", "vorname_nachname"},
	"ahv_number":         {"ahv_number", "ahv", "ahv_nr", "ahv_nummer", "sozialversicherungsnummer"},
	"accident_date":      {"accident_date", "unfalldatum", "unfall_datum", "date"},
	"injury_description": {"injury_description", "injury", "verletzung", "art_der_verletzung"},
	"accident_location":  {"accident_location", "unfallort", "location"},
	"employer":           {"employer", "arbeitgeber"},
	"damage_date":        {"damage_date", "schadendatum", "schaden_datum", "date"},
	"location":           {"location", "schadenort", "ort"},
	"description":        {"description", "beschreibung", "damage_description", "schadenbeschreibung"},
	"estimated_amount":   {"estimated_amount", "schadenbetrag", "amount"},
	"policy_number":      {"policy_number", "policennummer", "police_nr", "vertragsnummer"},
	"change_type":        {"change_type", "art_der_aenderung", "aenderungsart", "type_of_change"},
	"effective_date":     {"effective_date", "gueltig_ab", "per_datum", "date"},
	"invoice_number":     {"invoice_number", "rechnungsnummer", "rechnung_nr"},
	"invoice_date":       {"invoice_date", "rechnungsdatum", "date"},
	"due_date":           {"due_date", "faellig_am", "zahlbar_bis"},
	"amount":             {"amount", "total", "total_amount", "betrag", "gesamtbetrag"},
	"currency":           {"currency", "waehrung"},
	"issuer":             {"issuer", "vendor", "vendor_name", "rechnungssteller"},
	"title":              {"title", "titel", "subject", "betreff"},
}

// ParseExtractedFields resolves the raw map into the variant for t.
func ParseExtractedFields(t DocumentType, raw map[string]any) ExtractedFields {
	bag := normalizeFieldBag(raw)
	used := make(map[string]bool)
	pick := func(canonical string) string {
		for _, key := range fieldAliases[canonical] {
			if v, ok := bag[key]; ok && v != "" {
				used[key] = true
				return v
			}
		}
		return ""
	}

	var out ExtractedFields
	switch t {
	case TypeAccidentReport:
		f := AccidentFields{
			PersonName:        pick("person_name"),
			AHVNumber:         pick("ahv_number"),
			AccidentDate:      pick("accident_date"),
			InjuryDescription: pick("injury_description"),
			AccidentLocation:  pick("accident_location"),
			Employer:          pick("employer"),
		}
		f.Extra = leftovers(bag, used)
		out = f
	case TypeDamageReport:
		f := DamageFields{
			DamageDate:      pick("damage_date"),
			Location:        pick("location"),
			Description:     pick("description"),
			EstimatedAmount: pick("estimated_amount"),
			PolicyNumber:    pick("policy_number"),
		}
		f.Extra = leftovers(bag, used)
		out = f
	case TypeContractChange:
		f := ContractChangeFields{
			ChangeType:    pick("change_type"),
			Description:   pick("description"),
			PolicyNumber:  pick("policy_number"),
			EffectiveDate: pick("effective_date"),
		}
		f.Extra = leftovers(bag, used)
		out = f
	case TypeInvoice:
		f := InvoiceFields{
			InvoiceNumber: pick("invoice_number"),
			InvoiceDate:   pick("invoice_date"),
			DueDate:       pick("due_date"),
			Amount:        pick("amount"),
			Currency:      pick("currency"),
			Issuer:        pick("issuer"),
		}
		f.Extra = leftovers(bag, used)
		out = f
	default:
		f := MiscFields{
			Title:       pick("title"),
			Description: pick("description"),
		}
		f.Extra = leftovers(bag, used)
		out = f
	}
	return out
}

// MergeFieldMaps returns base overlaid with any keys missing from it in extra.
func MergeFieldMaps(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range base {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

func normalizeFieldBag(raw map[string]any) GenericFields {
	out := make(GenericFields, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
		if key == "" || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case float64:
			s = strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", val), "0"), ".")
		default:
			s = fmt.Sprint(val)
		}
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "null") {
			continue
		}
		out[key] = s
	}
	return out
}

func leftovers(bag GenericFields, used map[string]bool) GenericFields {
	var out GenericFields
	for k, v := range bag {
		if used[k] {
			continue
		}
		if out == nil {
			out = make(GenericFields)
		}
		out[k] = v
	}
	return out
}
