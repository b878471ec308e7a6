package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalVocabulary(t *testing.T) {
	// Every canonical tag must yield a non-empty label and a valid badge.
	valid := map[Badge]struct{}{
		BadgeSuccess: {},
		BadgeDanger:  {},
		BadgeWarning: {},
		BadgeInfo:    {},
		BadgeNeutral: {},
	}
	for _, raw := range Vocabulary() {
		display := Normalize(raw)
		require.NotEmpty(t, display.Label, "label for %s", raw)
		_, ok := valid[display.Badge]
		require.True(t, ok, "badge for %s", raw)
	}
}

func TestNormalizeKnownLabels(t *testing.T) {
	cases := []struct {
		raw   string
		label string
		badge Badge
	}{
		{"Agendada", "Agendada", BadgeInfo},
		{"EmAndamento", "Em andamento", BadgeInfo},
		{"Realizada", "Realizada", BadgeSuccess},
		{"ReagendadaPacienteNoPrazo", "Reagendada pelo paciente", BadgeInfo},
		{"ReagendadaPsicologoForaPrazo", "Reagendada pelo psicólogo fora do prazo", BadgeWarning},
		{"CanceladaForcaMaior", "Cancelada por força maior", BadgeWarning},
		{"CanceladaPacienteForaPrazo", "Cancelada pelo paciente fora do prazo", BadgeDanger},
		{"PacienteNaoCompareceu", "Paciente não compareceu", BadgeDanger},
		{"PsicologoDescredenciado", "Psicólogo descredenciado", BadgeDanger},
		{"CanceladoAdministrador", "Cancelado pelo administrador", BadgeDanger},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			display := Normalize(tc.raw)
			assert.Equal(t, tc.label, display.Label)
			assert.Equal(t, tc.badge, display.Badge)
		})
	}
}

func TestNormalizeEmptyIsReserved(t *testing.T) {
	display := Normalize("")
	assert.Equal(t, ReservedLabel, display.Label)
	assert.Equal(t, BadgeNeutral, display.Badge)

	display = Normalize("   ")
	assert.Equal(t, ReservedLabel, display.Label)
}

func TestNormalizeCaseInsensitiveLookup(t *testing.T) {
	display := Normalize("realizada")
	assert.Equal(t, "Realizada", display.Label)
	assert.Equal(t, BadgeSuccess, display.Badge)

	display = Normalize("CANCELADAFORCAMAIOR")
	assert.Equal(t, "Cancelada por força maior", display.Label)
}

func TestNormalizeHeuristicDecomposition(t *testing.T) {
	// Legacy tags that never made it into the catalog still decompose.
	display := Normalize("ReagendadaAdministrador")
	assert.Equal(t, "Reagendada pelo administrador", display.Label)
	assert.Equal(t, BadgeInfo, display.Badge)

	display = Normalize("CanceladaPacienteForaPrazoV2")
	assert.Equal(t, "Cancelada pelo paciente fora do prazo", display.Label)
	assert.Equal(t, BadgeDanger, display.Badge)

	display = Normalize("ConsultaPacienteNaoCompareceu")
	assert.Equal(t, "Paciente não compareceu", display.Label)
}

func TestNormalizeUnknownHumanizes(t *testing.T) {
	display := Normalize("UnknownXyzStatus")
	assert.Equal(t, "Unknown Xyz Status", display.Label)
	assert.Equal(t, BadgeNeutral, display.Badge)

	display = Normalize("pendente")
	assert.Equal(t, "Pendente", display.Label)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("Agendada"))
	assert.False(t, Known("agendada"))
	assert.False(t, Known("UnknownXyzStatus"))
}
