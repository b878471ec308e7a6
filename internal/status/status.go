// Package status maps raw appointment status tags onto the display
// vocabulary shown to users. The backend occasionally carries legacy or
// camel-joined values; lookups degrade through a case-insensitive pass and a
// substring heuristic before falling back to a humanized string, so a
// rendering path never fails on an unexpected tag.
package status

import (
	"strings"
	"unicode"
)

// Badge classifies a status for UI styling.
type Badge string

const (
	BadgeSuccess Badge = "success"
	BadgeDanger  Badge = "danger"
	BadgeWarning Badge = "warning"
	BadgeInfo    Badge = "info"
	BadgeNeutral Badge = "neutral"
)

// Display is a human-readable rendering of a raw status tag.
type Display struct {
	Label string
	Badge Badge
}

// ReservedLabel is shown for empty statuses (slot held, consultation not yet
// materialized).
const ReservedLabel = "Reservado"

var catalog = map[string]Display{
	"Agendada":    {Label: "Agendada", Badge: BadgeInfo},
	"EmAndamento": {Label: "Em andamento", Badge: BadgeInfo},
	"Realizada":   {Label: "Realizada", Badge: BadgeSuccess},

	"CanceladaPacienteNoPrazo":    {Label: "Cancelada pelo paciente", Badge: BadgeWarning},
	"CanceladaPsicologoNoPrazo":   {Label: "Cancelada pelo psicólogo", Badge: BadgeWarning},
	"CanceladaPacienteForaPrazo":  {Label: "Cancelada pelo paciente fora do prazo", Badge: BadgeDanger},
	"CanceladaPsicologoForaPrazo": {Label: "Cancelada pelo psicólogo fora do prazo", Badge: BadgeDanger},
	"CanceladaForcaMaior":         {Label: "Cancelada por força maior", Badge: BadgeWarning},

	"CanceladaNaoCumprimentoContratualPaciente":  {Label: "Cancelada por não cumprimento contratual do paciente", Badge: BadgeDanger},
	"CanceladaNaoCumprimentoContratualPsicologo": {Label: "Cancelada por não cumprimento contratual do psicólogo", Badge: BadgeDanger},

	"ReagendadaPacienteNoPrazo":    {Label: "Reagendada pelo paciente", Badge: BadgeInfo},
	"ReagendadaPsicologoNoPrazo":   {Label: "Reagendada pelo psicólogo", Badge: BadgeInfo},
	"ReagendadaPacienteForaPrazo":  {Label: "Reagendada pelo paciente fora do prazo", Badge: BadgeWarning},
	"ReagendadaPsicologoForaPrazo": {Label: "Reagendada pelo psicólogo fora do prazo", Badge: BadgeWarning},

	"PacienteNaoCompareceu":  {Label: "Paciente não compareceu", Badge: BadgeDanger},
	"PsicologoNaoCompareceu": {Label: "Psicólogo não compareceu", Badge: BadgeDanger},

	"PsicologoDescredenciado": {Label: "Psicólogo descredenciado", Badge: BadgeDanger},
	"CanceladoAdministrador":  {Label: "Cancelado pelo administrador", Badge: BadgeDanger},
}

var catalogFolded map[string]Display

func init() {
	catalogFolded = make(map[string]Display, len(catalog))
	for key, display := range catalog {
		catalogFolded[strings.ToLower(key)] = display
	}
}

// Known reports whether raw belongs to the canonical vocabulary.
func Known(raw string) bool {
	_, ok := catalog[raw]
	return ok
}

// Vocabulary returns the canonical raw tags, for validation on write paths.
func Vocabulary() []string {
	keys := make([]string, 0, len(catalog))
	for key := range catalog {
		keys = append(keys, key)
	}
	return keys
}

// Normalize resolves a raw status tag into its display form. It never fails:
// unknown tags degrade through substring heuristics and finally a humanized
// split of the camel-joined value.
func Normalize(raw string) Display {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Display{Label: ReservedLabel, Badge: BadgeNeutral}
	}

	if display, ok := catalog[raw]; ok {
		return display
	}
	if display, ok := catalogFolded[strings.ToLower(raw)]; ok {
		return display
	}
	if display, ok := decompose(raw); ok {
		return display
	}

	return Display{Label: humanize(raw), Badge: BadgeNeutral}
}

// decompose recognizes partially known tags by their dominant substring and
// rebuilds a label from the qualifiers present.
func decompose(raw string) (Display, bool) {
	folded := strings.ToLower(raw)

	switch {
	case strings.Contains(folded, "reagendada") || strings.Contains(folded, "reagendado"):
		return qualified("Reagendada", folded, BadgeInfo, BadgeWarning), true
	case strings.Contains(folded, "cancelada") || strings.Contains(folded, "cancelado"):
		if strings.Contains(folded, "forcamaior") || strings.Contains(folded, "forca_maior") {
			return Display{Label: "Cancelada por força maior", Badge: BadgeWarning}, true
		}
		return qualified("Cancelada", folded, BadgeWarning, BadgeDanger), true
	case strings.Contains(folded, "naocompareceu"):
		if strings.Contains(folded, "psicologo") {
			return Display{Label: "Psicólogo não compareceu", Badge: BadgeDanger}, true
		}
		return Display{Label: "Paciente não compareceu", Badge: BadgeDanger}, true
	case strings.Contains(folded, "descredenciado"):
		return Display{Label: "Psicólogo descredenciado", Badge: BadgeDanger}, true
	}

	return Display{}, false
}

func qualified(verb, folded string, inPrazo, foraPrazo Badge) Display {
	var b strings.Builder
	b.WriteString(verb)

	switch {
	case strings.Contains(folded, "psicologo"):
		b.WriteString(" pelo psicólogo")
	case strings.Contains(folded, "paciente"):
		b.WriteString(" pelo paciente")
	case strings.Contains(folded, "administrador"):
		b.WriteString(" pelo administrador")
	}

	badge := inPrazo
	if strings.Contains(folded, "foraprazo") || strings.Contains(folded, "fora_prazo") {
		b.WriteString(" fora do prazo")
		badge = foraPrazo
	}

	return Display{Label: b.String(), Badge: badge}
}

// humanize splits a camel-joined tag into words and capitalizes the first.
// "UnknownXyzStatus" becomes "Unknown Xyz Status".
func humanize(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteRune(' ')
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
