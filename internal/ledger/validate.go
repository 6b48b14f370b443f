package ledger

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/money"
)

// requestValidator performs structural validation of requests before any
// storage access.
type requestValidator struct {
	validator *validator.Validate
	maxAmount decimal.Decimal
}

func newRequestValidator(maxAmount decimal.Decimal) *requestValidator {
	return &requestValidator{
		validator: validator.New(),
		maxAmount: maxAmount,
	}
}

// check validates the struct tags of req and reports the first failure.
func (v *requestValidator) check(req any) error {
	err := v.validator.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid("", "%v", err)
	}
	fe := verrs[0]
	return invalid(fieldName(fe.StructNamespace()), "%s", describe(fe))
}

// checkAmount enforces amount bounds and currency precision.
func (v *requestValidator) checkAmount(field string, amount decimal.Decimal, currency string) error {
	if !amount.IsPositive() {
		return invalid(field, "must be greater than zero")
	}
	if amount.GreaterThan(v.maxAmount) {
		return invalid(field, "must not exceed %s", v.maxAmount)
	}
	if !money.IsRepresentable(amount, currency) {
		return invalid(field, "%s allows at most %d fractional digits", currency, money.MinorUnits(currency))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "iso4217":
		return fmt.Sprintf("%v is not an ISO 4217 currency code", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "unique":
		return "must not contain duplicates"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "nefield":
		return fmt.Sprintf("must differ from %s", fieldName(fe.Param()))
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// fieldName turns a struct namespace such as "ExpenseDraft.Participants[1]"
// into the request field name "participants[1]".
func fieldName(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	return snake(namespace)
}

func snake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
