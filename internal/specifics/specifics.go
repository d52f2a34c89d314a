package specifics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Attribute names the analysis service is constrained to. Anything outside
// this vocabulary is dropped during normalization.
const (
	AttrColor           = "color"
	AttrCollarType      = "collarType"
	AttrSleeveType      = "sleeveType"
	AttrFit             = "fit"
	AttrCountryOfOrigin = "countryOfOrigin"
	AttrStyle           = "style"
)

// Vocabulary is the full set of attribute names, in stable order.
var Vocabulary = []string{
	AttrColor,
	AttrCollarType,
	AttrSleeveType,
	AttrFit,
	AttrCountryOfOrigin,
	AttrStyle,
}

// aliases maps key variants the generation step tends to emit onto the
// canonical vocabulary.
var aliases = map[string]string{
	"collar_type":       AttrCollarType,
	"sleeve_type":       AttrSleeveType,
	"country_of_origin": AttrCountryOfOrigin,
	"colour":            AttrColor,
}

// AttributeSet maps an attribute name to its value. A nil value means the
// service could not determine the attribute; it marshals as JSON null.
// Consumers must treat any attribute as possibly absent or nil.
type AttributeSet map[string]*string

// Get returns the value for name and whether it is present and non-nil.
func (s AttributeSet) Get(name string) (string, bool) {
	v, ok := s[name]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Set stores a non-nil value for name.
func (s AttributeSet) Set(name, value string) {
	s[name] = &value
}

// AnalysisRequest is the wire shape sent to the analysis endpoint.
type AnalysisRequest struct {
	ImageURL string `json:"imageUrl"`
}

// AnalysisResult is the wire shape returned by the analysis endpoint.
// Labels carries the raw detection labels the attributes were synthesized
// from, mostly useful for debugging.
type AnalysisResult struct {
	Success       bool         `json:"success,omitempty"`
	ItemSpecifics AttributeSet `json:"itemSpecifics"`
	Labels        []string     `json:"labels,omitempty"`
}

// Normalize clamps raw onto the attribute vocabulary. Alias keys are mapped
// to their canonical names, unknown keys are dropped, and nil values are
// kept as nil. The input is not modified.
func Normalize(raw map[string]*string) AttributeSet {
	out := make(AttributeSet, len(raw))
	for k, v := range raw {
		name := k
		if canonical, ok := aliases[strings.ToLower(k)]; ok {
			name = canonical
		}
		if !inVocabulary(name) {
			continue
		}
		out[name] = v
	}
	return out
}

func inVocabulary(name string) bool {
	for _, v := range Vocabulary {
		if v == name {
			return true
		}
	}
	return false
}

// ParseGenerated decodes the text-generation step's output into a
// normalized AttributeSet. The model is instructed to respond with a bare
// JSON object but tends to wrap it in markdown code fences, so those are
// stripped first.
func ParseGenerated(text string) (AttributeSet, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw map[string]*string
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse generated attributes: %w (response: %s)", err, text)
	}

	return Normalize(raw), nil
}
