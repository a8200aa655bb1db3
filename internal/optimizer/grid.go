// Package optimizer searches a strategy parameter space, scores evaluated
// combinations under a configurable objective and reduces the performance
// surface to one robust parameter choice.
package optimizer

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

const floatTolerance = 1e-9

// ParamSpec declares one strategy parameter: either a non-empty ordered list
// of candidate values (searched) or a single fixed value.
type ParamSpec struct {
	Values []interface{}
	Fixed  interface{}
}

// Searched reports whether the parameter participates in the search.
func (p ParamSpec) Searched() bool {
	return len(p.Values) > 0
}

// GridSpec is the immutable parameter grid for one optimization run.
type GridSpec struct {
	params   map[string]ParamSpec
	searched []string // sorted names of searched parameters
	fixed    []string // sorted names of fixed parameters
}

// NewGridSpec validates the grid eagerly and returns an immutable spec.
func NewGridSpec(params map[string]ParamSpec) (*GridSpec, error) {
	if len(params) == 0 {
		return nil, &ConfigurationError{Field: "grid", Value: params, Reason: "at least one parameter is required"}
	}
	g := &GridSpec{params: make(map[string]ParamSpec, len(params))}
	for name, spec := range params {
		if name == "" {
			return nil, &ConfigurationError{Field: "grid", Value: name, Reason: "parameter name must not be empty"}
		}
		if spec.Searched() {
			g.searched = append(g.searched, name)
		} else if spec.Fixed != nil {
			g.fixed = append(g.fixed, name)
		} else {
			return nil, &ConfigurationError{Field: "grid." + name, Value: nil, Reason: "parameter needs candidate values or a fixed value"}
		}
		copied := ParamSpec{Fixed: spec.Fixed}
		if spec.Searched() {
			copied.Values = append([]interface{}{}, spec.Values...)
		}
		g.params[name] = copied
	}
	sort.Strings(g.searched)
	sort.Strings(g.fixed)
	return g, nil
}

// SearchedNames returns the searched parameter names in canonical order.
func (g *GridSpec) SearchedNames() []string {
	return append([]string{}, g.searched...)
}

// ValuesOf returns the declared candidate values for a searched parameter.
func (g *GridSpec) ValuesOf(name string) []interface{} {
	return g.params[name].Values
}

// Size returns the Cartesian product size over searched parameters,
// capped at math.MaxInt to avoid overflow.
func (g *GridSpec) Size() int {
	size := 1
	for _, name := range g.searched {
		n := len(g.params[name].Values)
		if size > math.MaxInt/n {
			return math.MaxInt
		}
		size *= n
	}
	return size
}

// Enumerate expands the grid into concrete combinations. The full Cartesian
// product is returned in deterministic order (lexicographic over parameter
// names, then declared value order) when it fits within maxCombos; otherwise
// exactly maxCombos distinct combinations are drawn with the given seed.
func (g *GridSpec) Enumerate(maxCombos int, seed int64) ([]Combination, error) {
	if maxCombos < 1 {
		return nil, &ConfigurationError{Field: "max_combos", Value: maxCombos, Reason: "must be at least 1"}
	}

	size := g.Size()
	if size <= maxCombos {
		return g.fullProduct(), nil
	}
	return g.sample(maxCombos, seed), nil
}

func (g *GridSpec) fullProduct() []Combination {
	size := g.Size()
	combos := make([]Combination, 0, size)
	indices := make([]int, len(g.searched))
	for {
		combos = append(combos, g.combinationAt(indices))
		// advance odometer, last name varies fastest
		pos := len(indices) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(g.params[g.searched[pos]].Values) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return combos
}

func (g *GridSpec) sample(n int, seed int64) []Combination {
	rng := rand.New(rand.NewSource(seed))
	seen := make(map[string]struct{}, n)
	combos := make([]Combination, 0, n)
	indices := make([]int, len(g.searched))
	for len(combos) < n {
		for i, name := range g.searched {
			indices[i] = rng.Intn(len(g.params[name].Values))
		}
		c := g.combinationAt(indices)
		if _, ok := seen[c.Key()]; ok {
			continue
		}
		seen[c.Key()] = struct{}{}
		combos = append(combos, c)
	}
	return combos
}

func (g *GridSpec) combinationAt(indices []int) Combination {
	values := make(map[string]interface{}, len(g.params))
	for i, name := range g.searched {
		values[name] = g.params[name].Values[indices[i]]
	}
	for _, name := range g.fixed {
		values[name] = g.params[name].Fixed
	}
	return NewCombination(values)
}

// Contains reports whether the combination lies on the declared grid:
// every searched value appears in its candidate list and every fixed value matches.
func (g *GridSpec) Contains(c Combination) bool {
	for _, name := range g.searched {
		v, ok := c.Value(name)
		if !ok {
			return false
		}
		if g.valueIndexExact(name, v) < 0 {
			return false
		}
	}
	for _, name := range g.fixed {
		v, ok := c.Value(name)
		if !ok || !valuesEqual(v, g.params[name].Fixed) {
			return false
		}
	}
	return true
}

// Snap maps a synthesized numeric value onto the nearest declared grid value
// for the parameter. Equidistant candidates resolve toward prefer when it is
// one of them, otherwise toward the lower declared index.
func (g *GridSpec) Snap(name string, v float64, prefer interface{}) interface{} {
	values := g.params[name].Values
	if len(values) == 0 {
		return g.params[name].Fixed
	}
	bestIdx := -1
	bestDist := math.Inf(1)
	for i, candidate := range values {
		f, ok := asFloat(candidate)
		if !ok {
			continue
		}
		d := math.Abs(f - v)
		switch {
		case d < bestDist-floatTolerance:
			bestIdx, bestDist = i, d
		case math.Abs(d-bestDist) <= floatTolerance && prefer != nil && valuesEqual(candidate, prefer):
			bestIdx, bestDist = i, d
		}
	}
	if bestIdx < 0 {
		return values[0]
	}
	return values[bestIdx]
}

// ValueIndex returns the declared index of v for the parameter, falling back
// to the nearest numeric candidate when v is off-grid.
func (g *GridSpec) ValueIndex(name string, v interface{}) int {
	if idx := g.valueIndexExact(name, v); idx >= 0 {
		return idx
	}
	values := g.params[name].Values
	f, ok := asFloat(v)
	if !ok || len(values) == 0 {
		return 0
	}
	bestIdx := 0
	bestDist := math.Inf(1)
	for i, candidate := range values {
		cf, ok := asFloat(candidate)
		if !ok {
			continue
		}
		if d := math.Abs(cf - f); d < bestDist {
			bestIdx, bestDist = i, d
		}
	}
	return bestIdx
}

func (g *GridSpec) valueIndexExact(name string, v interface{}) int {
	for i, candidate := range g.params[name].Values {
		if valuesEqual(candidate, v) {
			return i
		}
	}
	return -1
}

// IndexDistance is the Manhattan distance in grid steps over searched parameters.
func (g *GridSpec) IndexDistance(a, b Combination) int {
	dist := 0
	for _, name := range g.searched {
		av, _ := a.Value(name)
		bv, _ := b.Value(name)
		dist += absInt(g.ValueIndex(name, av) - g.ValueIndex(name, bv))
	}
	return dist
}

// NormalizedDistance sums per-parameter distances, each divided by the
// parameter's grid value range. Categorical parameters contribute 0 or 1.
func (g *GridSpec) NormalizedDistance(a, b Combination) float64 {
	total := 0.0
	for _, name := range g.searched {
		av, _ := a.Value(name)
		bv, _ := b.Value(name)
		af, aok := asFloat(av)
		bf, bok := asFloat(bv)
		if !aok || !bok {
			if !valuesEqual(av, bv) {
				total += 1.0
			}
			continue
		}
		span := g.valueRange(name)
		if span <= floatTolerance {
			if math.Abs(af-bf) > floatTolerance {
				total += 1.0
			}
			continue
		}
		total += math.Abs(af-bf) / span
	}
	return total
}

func (g *GridSpec) valueRange(name string) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, candidate := range g.params[name].Values {
		f, ok := asFloat(candidate)
		if !ok {
			continue
		}
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	if math.IsInf(lo, 1) {
		return 0
	}
	return hi - lo
}

// NumericSearched reports whether all candidates of the parameter are numeric.
func (g *GridSpec) NumericSearched(name string) bool {
	values := g.params[name].Values
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if _, ok := asFloat(v); !ok {
			return false
		}
	}
	return true
}

// Combination is one fully-specified, immutable assignment of values to
// every parameter in the grid. Identity is the full value tuple.
type Combination struct {
	values map[string]interface{}
	key    string
}

// NewCombination copies the values and derives the canonical key.
func NewCombination(values map[string]interface{}) Combination {
	copied := make(map[string]interface{}, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Combination{values: copied, key: canonicalKey(copied)}
}

// Value returns the concrete value assigned to a parameter.
func (c Combination) Value(name string) (interface{}, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Float returns the parameter value as a float64 when it is numeric.
func (c Combination) Float(name string) (float64, bool) {
	v, ok := c.values[name]
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

// Int returns the parameter value as an int when it is numeric.
func (c Combination) Int(name string) (int, bool) {
	f, ok := c.Float(name)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

// Key is the canonical order-independent identity of the combination,
// stable for display and map keys.
func (c Combination) Key() string {
	return c.key
}

// Values returns a copy of the underlying assignment.
func (c Combination) Values() map[string]interface{} {
	copied := make(map[string]interface{}, len(c.values))
	for k, v := range c.values {
		copied[k] = v
	}
	return copied
}

// Equal compares two combinations by value with numeric tolerance.
func (c Combination) Equal(other Combination) bool {
	if len(c.values) != len(other.values) {
		return false
	}
	for k, v := range c.values {
		ov, ok := other.values[k]
		if !ok || !valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

func (c Combination) String() string {
	return c.key
}

func canonicalKey(values map[string]interface{}) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+formatValue(values[name]))
	}
	return strings.Join(parts, ",")
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	default:
		return 0, false
	}
}

func valuesEqual(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return math.Abs(af-bf) <= floatTolerance
	}
	return a == b
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
