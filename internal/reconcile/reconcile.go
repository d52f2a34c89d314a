// Package reconcile writes a normalized attribute set back into a listing
// page's form fields.
package reconcile

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/raine/ebay-specifics/internal/specifics"
	"github.com/rs/zerolog/log"
)

// FieldBinding ties one attribute name to the CSS selector of the form
// field it fills.
type FieldBinding struct {
	Attribute string `json:"attribute"`
	Selector  string `json:"selector"`
}

// BindingTable is a static attribute → selector mapping for one page
// layout. At most one binding exists per attribute.
type BindingTable struct {
	bindings []FieldBinding
}

// NewBindingTable builds a table from bindings, rejecting duplicate
// attributes.
func NewBindingTable(bindings []FieldBinding) (*BindingTable, error) {
	seen := make(map[string]bool, len(bindings))
	for _, b := range bindings {
		if b.Attribute == "" || b.Selector == "" {
			return nil, fmt.Errorf("binding must have both attribute and selector: %+v", b)
		}
		if seen[b.Attribute] {
			return nil, fmt.Errorf("duplicate binding for attribute %q", b.Attribute)
		}
		seen[b.Attribute] = true
	}
	return &BindingTable{bindings: bindings}, nil
}

// NotifyFunc is called once per applied field, standing in for the DOM
// input/change event the host page's form framework needs to see the
// update.
type NotifyFunc func(attribute, selector, value string)

// Reconciler applies attribute sets onto parsed form documents.
type Reconciler struct {
	table  *BindingTable
	notify NotifyFunc
}

// New creates a reconciler over table. notify may be nil.
func New(table *BindingTable, notify NotifyFunc) *Reconciler {
	return &Reconciler{table: table, notify: notify}
}

// Apply writes each present, non-nil attribute into its bound field and
// returns how many fields were set. Attributes that are nil or missing,
// and bindings whose selector matches nothing, leave the document
// untouched. Apply is idempotent: reapplying the same set yields the same
// final field values.
func (r *Reconciler) Apply(doc *goquery.Document, attrs specifics.AttributeSet) int {
	applied := 0
	for _, b := range r.table.bindings {
		value, ok := attrs.Get(b.Attribute)
		if !ok {
			continue
		}

		field := doc.Find(b.Selector).First()
		if field.Length() == 0 {
			log.Debug().
				Str("attribute", b.Attribute).
				Str("selector", b.Selector).
				Msg("bound field not found on page")
			continue
		}

		setFieldValue(field, value)
		applied++

		if r.notify != nil {
			r.notify(b.Attribute, b.Selector, value)
		}
	}
	return applied
}

// setFieldValue updates a form field the way its element kind expects:
// value attribute for inputs, text content for textareas, selected option
// for selects.
func setFieldValue(field *goquery.Selection, value string) {
	switch goquery.NodeName(field) {
	case "textarea":
		field.SetText(value)
	case "select":
		field.Find("option").Each(func(_ int, opt *goquery.Selection) {
			v, ok := opt.Attr("value")
			if !ok {
				v = opt.Text()
			}
			if v == value {
				opt.SetAttr("selected", "selected")
			} else {
				opt.RemoveAttr("selected")
			}
		})
	default:
		field.SetAttr("value", value)
	}
}
