package csvimport

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// FieldType is the expected type of a column
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInt     FieldType = "int"
	TypeDecimal FieldType = "decimal"
	TypeDate    FieldType = "date"
)

// FieldRule describes the checks applied to one column
type FieldRule struct {
	Column    string
	Type      FieldType
	Required  bool
	MaxLength int
	MinValue  *decimal.Decimal
}

// FieldRuleBuilder builds field rules fluently
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field starts a rule for a string column
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{Column: column, Type: TypeString}}
}

// Required rejects blank values
func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

// Int expects a whole number
func (b *FieldRuleBuilder) Int() *FieldRuleBuilder {
	b.rule.Type = TypeInt
	return b
}

// Decimal expects an exact decimal number
func (b *FieldRuleBuilder) Decimal() *FieldRuleBuilder {
	b.rule.Type = TypeDecimal
	return b
}

// Date expects YYYY-MM-DD
func (b *FieldRuleBuilder) Date() *FieldRuleBuilder {
	b.rule.Type = TypeDate
	return b
}

// MaxLength limits the value length in characters
func (b *FieldRuleBuilder) MaxLength(n int) *FieldRuleBuilder {
	b.rule.MaxLength = n
	return b
}

// MinValue sets the inclusive lower bound of a numeric column
func (b *FieldRuleBuilder) MinValue(v decimal.Decimal) *FieldRuleBuilder {
	b.rule.MinValue = &v
	return b
}

// Build returns the rule
func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// FieldValidator applies rules to rows and collects the failures
type FieldValidator struct {
	rules  []FieldRule
	errors *ErrorCollection
}

// NewFieldValidator creates a validator that reports into errs
func NewFieldValidator(rules []FieldRule, errs *ErrorCollection) *FieldValidator {
	return &FieldValidator{rules: rules, errors: errs}
}

// ValidateRow checks every rule and reports whether the row passed
func (v *FieldValidator) ValidateRow(row *Row) bool {
	ok := true
	for _, rule := range v.rules {
		value := row.Get(rule.Column)

		if value == "" {
			if rule.Required {
				v.errors.Add(RowError{
					Row:     row.LineNumber,
					Column:  rule.Column,
					Code:    ErrCodeRequiredField,
					Message: fmt.Sprintf("field '%s' is required", rule.Column),
				})
				ok = false
			}
			continue
		}

		if err := validateType(value, rule.Type); err != nil {
			v.errors.Add(RowError{
				Row:     row.LineNumber,
				Column:  rule.Column,
				Code:    ErrCodeInvalidType,
				Message: fmt.Sprintf("expected %s", rule.Type),
				Value:   value,
			})
			ok = false
			continue
		}

		if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
			v.errors.Add(RowError{
				Row:     row.LineNumber,
				Column:  rule.Column,
				Code:    ErrCodeInvalidLength,
				Message: fmt.Sprintf("must be at most %d characters", rule.MaxLength),
			})
			ok = false
		}

		if rule.MinValue != nil && (rule.Type == TypeInt || rule.Type == TypeDecimal) {
			d, _ := decimal.NewFromString(value)
			if d.LessThan(*rule.MinValue) {
				v.errors.Add(RowError{
					Row:     row.LineNumber,
					Column:  rule.Column,
					Code:    ErrCodeInvalidRange,
					Message: fmt.Sprintf("must be at least %s", rule.MinValue.String()),
					Value:   value,
				})
				ok = false
			}
		}
	}
	return ok
}

func validateType(value string, fieldType FieldType) error {
	switch fieldType {
	case TypeInt:
		_, err := strconv.Atoi(value)
		return err
	case TypeDecimal:
		_, err := decimal.NewFromString(value)
		return err
	case TypeDate:
		_, err := invoicing.ParseDate(value)
		return err
	}
	return nil
}
