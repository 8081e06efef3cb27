package lexical_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/utils/lexical"
)

func TestTokenize(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []string
	}{
		{"lowercase and short tokens", "Tengo un GATO", []string{"tengo", "gato"}},
		{"punctuation stripped", "¿Dónde está mi canción?", []string{"dónde", "está", "canción"}},
		{"accents kept", "Ñandú pequeño", []string{"ñandú", "pequeño"}},
		{"empty", "  ", nil},
		{"only short", "a de la", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Equal(t, lexical.Tokenize(tc.input), tc.want)
		})
	}
}

func TestScore(t *testing.T) {
	query := lexical.Tokenize("tengo un gato")

	t.Run("exact match", func(t *testing.T) {
		// gato matches twice, tengo never: 4 points / 2 tokens
		score := lexical.Score(query, "El gato duerme. Mi gato come.")
		gt.Equal(t, score, 2.0)
		gt.True(t, lexical.IsRelevant(score))
	})

	t.Run("substring match", func(t *testing.T) {
		// gatos contains gato: 1 point / 2 tokens
		score := lexical.Score(query, "Los gatos duermen.")
		gt.Equal(t, score, 0.5)
		gt.False(t, lexical.IsRelevant(score))
	})

	t.Run("substring in other direction", func(t *testing.T) {
		score := lexical.Score(lexical.Tokenize("gatos"), "gato")
		gt.Equal(t, score, 1.0)
	})

	t.Run("no match", func(t *testing.T) {
		gt.Equal(t, lexical.Score(query, "El perro ladra."), 0.0)
	})

	t.Run("empty query", func(t *testing.T) {
		gt.Equal(t, lexical.Score(nil, "gato"), 0.0)
	})
}
