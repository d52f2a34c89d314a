package specifics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestNormalize(t *testing.T) {
	raw := map[string]*string{
		"color":       strPtr("blue"),
		"collar_type": strPtr("crew neck"),
		"pattern":     strPtr("solid"),
		"sleeveType":  nil,
	}

	attrs := Normalize(raw)

	v, ok := attrs.Get("color")
	assert.True(t, ok)
	assert.Equal(t, "blue", v)

	v, ok = attrs.Get("collarType")
	assert.True(t, ok)
	assert.Equal(t, "crew neck", v)

	// Unknown keys are dropped, not an error
	_, present := attrs["pattern"]
	assert.False(t, present)

	// nil values survive normalization as nil
	sleeve, present := attrs["sleeveType"]
	assert.True(t, present)
	assert.Nil(t, sleeve)
}

func TestNormalizeAliases(t *testing.T) {
	attrs := Normalize(map[string]*string{
		"Colour":            strPtr("navy"),
		"sleeve_type":       strPtr("long sleeve"),
		"country_of_origin": strPtr("Portugal"),
	})

	v, ok := attrs.Get("color")
	assert.True(t, ok)
	assert.Equal(t, "navy", v)

	v, ok = attrs.Get("sleeveType")
	assert.True(t, ok)
	assert.Equal(t, "long sleeve", v)

	v, ok = attrs.Get("countryOfOrigin")
	assert.True(t, ok)
	assert.Equal(t, "Portugal", v)
}

func TestParseGenerated(t *testing.T) {
	text := "```json\n{\"color\": \"blue\", \"sleeve_type\": null, \"pattern\": \"striped\"}\n```"

	attrs, err := ParseGenerated(text)
	require.NoError(t, err)

	v, ok := attrs.Get("color")
	assert.True(t, ok)
	assert.Equal(t, "blue", v)

	sleeve, present := attrs["sleeveType"]
	assert.True(t, present)
	assert.Nil(t, sleeve)

	_, present = attrs["pattern"]
	assert.False(t, present)
}

func TestParseGeneratedNotJSON(t *testing.T) {
	_, err := ParseGenerated("I'm sorry, I cannot analyze this image.")
	assert.Error(t, err)
}

func TestAttributeSetNullRoundTrip(t *testing.T) {
	attrs := AttributeSet{
		"color":      strPtr("blue"),
		"sleeveType": nil,
	}

	b, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"color":"blue","sleeveType":null}`, string(b))

	var decoded AttributeSet
	require.NoError(t, json.Unmarshal(b, &decoded))

	_, ok := decoded.Get("sleeveType")
	assert.False(t, ok)
	v, ok := decoded.Get("color")
	assert.True(t, ok)
	assert.Equal(t, "blue", v)
}

func TestAnalysisResultShape(t *testing.T) {
	var result AnalysisResult
	err := json.Unmarshal([]byte(`{"itemSpecifics":{"color":"blue","fit":null},"labels":["T-shirt","Sleeve"]}`), &result)
	require.NoError(t, err)

	v, ok := result.ItemSpecifics.Get("color")
	assert.True(t, ok)
	assert.Equal(t, "blue", v)
	assert.Equal(t, []string{"T-shirt", "Sleeve"}, result.Labels)
}
