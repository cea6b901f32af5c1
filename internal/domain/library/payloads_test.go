package library

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTermEqual(t *testing.T) {
	a := Term{Name: "Body weight", Definition: "Mass", Synonyms: []string{"BW", "Weight"}}
	require.True(t, a.Equal(Term{Name: " Body weight ", Definition: "Mass", Synonyms: []string{"Weight", "BW", ""}}))
	require.False(t, a.Equal(Term{Name: "Body weight", Definition: "Mass (kg)", Synonyms: []string{"BW", "Weight"}}))
	require.False(t, a.Equal(Term{Name: "Body weight", Definition: "Mass"}))
	require.Error(t, Term{Name: "  "}.Validate())
}

func TestTemplateValidateAndParameters(t *testing.T) {
	tpl := Template{Name: "Percentage of [Activity] completed by [Timepoint]"}
	require.NoError(t, tpl.Validate())
	require.Equal(t, []string{"Activity", "Timepoint"}, tpl.Parameters())

	require.Error(t, Template{Name: "Bad [[nested]]"}.Validate())
	require.Error(t, Template{Name: "Unclosed [Activity"}.Validate())
	require.Error(t, Template{Name: "Stray ] bracket"}.Validate())
	require.Error(t, Template{}.Validate())

	require.True(t, tpl.Equal(Template{Name: tpl.Name + " "}))
	require.False(t, tpl.Equal(Template{Name: tpl.Name, GuidanceText: "x"}))
}
