package widget

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Grid expands query and target templates over every combination of its
// dimensions into display bindings.
type Grid struct {
	Query      string              `yaml:"query"`
	Target     string              `yaml:"target"`
	Decimals   *int                `yaml:"decimals"`
	Field      string              `yaml:"field"`
	Dimensions map[string][]string `yaml:"dimensions"`
}

// expand returns one display per combination, ordered by sorted dimension
// keys with the rightmost key varying fastest.
func (g Grid) expand() ([]Display, error) {
	if g.Query == "" {
		return nil, errors.New("query template required")
	}
	if g.Target == "" {
		return nil, errors.New("target template required")
	}
	if len(g.Dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}
	for k, vals := range g.Dimensions {
		if len(vals) == 0 {
			return nil, fmt.Errorf("dimension '%s' has no values", k)
		}
		for i, v := range vals {
			if v == "" {
				return nil, fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
			}
		}
	}

	queryTmpl, err := template.New("query").Option("missingkey=error").Parse(g.Query)
	if err != nil {
		return nil, fmt.Errorf("invalid query template: %w", err)
	}
	targetTmpl, err := template.New("target").Option("missingkey=error").Parse(g.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid target template: %w", err)
	}

	combos := cartesianProduct(g.Dimensions)
	displays := make([]Display, 0, len(combos))
	for _, combo := range combos {
		query, err := executeTemplate(queryTmpl, combo)
		if err != nil {
			return nil, fmt.Errorf("query template: %w", err)
		}
		target, err := executeTemplate(targetTmpl, combo)
		if err != nil {
			return nil, fmt.Errorf("target template: %w", err)
		}
		displays = append(displays, Display{
			Query:    query,
			Target:   target,
			Decimals: g.Decimals,
			Field:    g.Field,
		})
	}
	return displays, nil
}

// cartesianProduct generates all combinations of dimension values.
// Keys are sorted for deterministic output; values keep their order.
//
//	Input:  {"x": ["a","b"], "y": ["1","2"]}
//	Output: [{"x":"a","y":"1"}, {"x":"a","y":"2"}, {"x":"b","y":"1"}, {"x":"b","y":"2"}]
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 1
	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
		total *= len(dims[k])
	}

	result := make([]map[string]string, 0, total)
	indices := make([]int, len(keys))
	for {
		combo := make(map[string]string, len(keys))
		for i, k := range keys {
			combo[k] = dims[k][indices[i]]
		}
		result = append(result, combo)

		// rightmost index advances first
		for i := len(keys) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(dims[keys[i]]) {
				break
			}
			indices[i] = 0
			if i == 0 {
				return result
			}
		}
	}
}

func executeTemplate(tmpl *template.Template, data map[string]string) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
