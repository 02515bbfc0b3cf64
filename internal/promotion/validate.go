package promotion

import (
	"errors"
	"sort"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/common"
)

// ErrInvalid is wrapped by every ValidationError.
var ErrInvalid = errors.New("invalid promotion")

// ValidationError lists the offending fields of a promotion definition.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return ErrInvalid.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Validate enforces the definition-time rules of a promotion: field bounds,
// a known kind with exactly the percentage it needs, known scope categories
// and an ordered activity window.
func Validate(p Promotion) error {
	fields := map[string]string{}
	if err := common.Validator().Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for k, v := range common.FieldErrors(fieldErrs) {
			fields[k] = v
		}
	}

	switch p.Kind {
	case KindTwoForOne:
		if p.Percentage != nil {
			fields["percentage"] = "must be empty for two-for-one"
		}
		if p.SecondUnitPercentage != nil {
			fields["secondUnitPercentage"] = "must be empty for two-for-one"
		}
	case KindPercentageOff:
		if p.Percentage == nil {
			fields["percentage"] = "is required for percentage-off"
		}
		if p.SecondUnitPercentage != nil {
			fields["secondUnitPercentage"] = "must be empty for percentage-off"
		}
	case KindSecondUnitPercentageOff:
		if p.SecondUnitPercentage == nil {
			fields["secondUnitPercentage"] = "is required for second-unit-percentage-off"
		}
		if p.Percentage != nil {
			fields["percentage"] = "must be empty for second-unit-percentage-off"
		}
	default:
		if _, ok := fields["kind"]; !ok {
			fields["kind"] = "is invalid"
		}
	}

	if p.Category != "" && p.Category != AllCategories && !p.Category.IsValid() {
		fields["category"] = "is invalid"
	}
	if p.LinkCategory != "" && p.LinkCategory != AllCategories && !p.LinkCategory.IsValid() {
		fields["linkCategory"] = "is invalid"
	}
	if p.ProductID == nil && p.Category == "" {
		fields["scope"] = "needs a product or a category"
	}
	if p.ActiveFrom != nil && p.ActiveUntil != nil && civilDate(*p.ActiveFrom).After(civilDate(*p.ActiveUntil)) {
		fields["activeUntil"] = "must not be before activeFrom"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// normalizeScope canonicalises legacy category spellings on the way in.
func normalizeScope(raw string) (catalog.Category, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		return "", nil
	case "all", "todas", "all-categories":
		return AllCategories, nil
	}
	return catalog.ParseCategory(value)
}
