package promotion

import (
	"fmt"
	"strings"
)

// Kind is the discount rule a promotion applies.
type Kind string

const (
	// KindTwoForOne makes the second unit of every pair free.
	KindTwoForOne Kind = "two-for-one"
	// KindPercentageOff discounts the whole line by Percentage.
	KindPercentageOff Kind = "percentage-off"
	// KindSecondUnitPercentageOff discounts the second unit of every pair by SecondUnitPercentage.
	KindSecondUnitPercentageOff Kind = "second-unit-percentage-off"
)

var kinds = []Kind{KindTwoForOne, KindPercentageOff, KindSecondUnitPercentageOff}

// legacy spellings accepted by ParseKind; rows written before the kind column
// was constrained still carry them.
var kindAliases = map[string]Kind{
	"two-for-one":                KindTwoForOne,
	"two_for_one":                KindTwoForOne,
	"2x1":                        KindTwoForOne,
	"2 x 1":                      KindTwoForOne,
	"percentage-off":             KindPercentageOff,
	"percentage":                 KindPercentageOff,
	"porcentaje":                 KindPercentageOff,
	"descuento_porcentaje":       KindPercentageOff,
	"second-unit-percentage-off": KindSecondUnitPercentageOff,
	"second_unit_pct":            KindSecondUnitPercentageOff,
	"segunda_unidad":             KindSecondUnitPercentageOff,
	"segunda unidad":             KindSecondUnitPercentageOff,
	"descuento_segunda_unidad":   KindSecondUnitPercentageOff,
}

// Kinds lists the supported promotion kinds.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// IsValid reports whether k is one of the canonical kinds.
func (k Kind) IsValid() bool {
	for _, candidate := range kinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseKind normalises a stored or submitted kind into its canonical value.
func ParseKind(raw string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if kind, ok := kindAliases[key]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("invalid promotion kind %q", raw)
}
