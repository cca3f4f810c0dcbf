package strategy

import (
	"strings"

	"longbtc-go/internal/errs"
)

// Build returns the evaluator for a preset name, or for custom params when
// mode is "custom" or empty.
func Build(mode string, params Params) (Evaluator, error) {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "", "custom":
		return NewRules("custom", params)
	default:
		p, ok := LookupPreset(m)
		if !ok {
			return nil, errs.Config("strategy.preset", "unknown preset %q (have %s)", mode, strings.Join(PresetNames(), ", "))
		}
		return NewRules(p.Name, p.Params)
	}
}
