package kg

// excludedFields is the built-in, literal set of field-name spellings that
// must never appear as either endpoint of a user-supplied explicit
// relationship pair. Comparison against it is exact and case-sensitive.
var excludedFields = map[string]bool{
	"Product_Line":      true,
	"product_line":      true,
	"PRODUCT_LINE":       true,
	"Product Line":      true,
	"Business_Unit":      true,
	"business_unit":      true,
	"BUSINESS_UNIT":      true,
	"Business Unit":      true,
	"[Business Unit]":    true,
	"BUSINESS_UNIT_CODE": true,
	"business unit":      true,
	"[Product Type]":     true,
	"Product Type":       true,
	"product_type":       true,
	"PRODUCT_TYPE":       true,
}

// IsExcludedField reports whether name matches the built-in excluded
// fields set exactly.
func IsExcludedField(name string) bool {
	return excludedFields[name]
}
