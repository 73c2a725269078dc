package query

import (
	"strings"

	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/errs"
	"github.com/semcube/semcube/filter"
)

// fieldRole distinguishes which part of a cube a reference must
// resolve to.
type fieldRole int

const (
	roleMeasure fieldRole = iota
	roleDimension
	roleEither
)

// Validator checks a SemanticQuery against a cube.Registry (spec
// §4.2). It accumulates every error found rather than stopping at the
// first, per the teacher's parser.go style of reporting every
// malformed clause in one pass instead of bailing out early.
type Validator struct {
	registry *cube.Registry
}

// NewValidator creates a Validator bound to a registry.
func NewValidator(registry *cube.Registry) *Validator {
	return &Validator{registry: registry}
}

// Result is the outcome of Validate: isValid plus every error found.
type Result struct {
	Valid  bool
	Errors []string
}

// Validate enforces spec §4.2's rules and returns every violation
// found, not just the first.
func (v *Validator) Validate(q SemanticQuery) Result {
	verrs := &errs.ValidationError{}

	if len(q.Measures) == 0 && len(q.Dimensions) == 0 && len(q.TimeDimensions) == 0 {
		verrs.Add("query must reference at least one measure, dimension, or time dimension")
	}

	for _, ref := range q.Measures {
		v.checkRef(verrs, ref, roleMeasure)
	}
	for _, ref := range q.Dimensions {
		v.checkRef(verrs, ref, roleDimension)
	}
	for _, td := range q.TimeDimensions {
		v.checkRef(verrs, td.Dimension, roleDimension)
		if td.Granularity != "" && !validGranularity(td.Granularity) {
			verrs.Add("time dimension %q: unknown granularity %q", td.Dimension, td.Granularity)
		}
	}
	for _, f := range q.Filters {
		v.checkFilter(verrs, f)
	}

	return Result{Valid: verrs.Empty(), Errors: verrs.Errors}
}

// checkFilter recurses into logical filters, validating every leaf
// condition's member reference.
func (v *Validator) checkFilter(verrs *errs.ValidationError, f Filter) {
	switch tf := f.(type) {
	case filter.Condition:
		v.checkRef(verrs, tf.Member, roleEither)
	case filter.And:
		for _, sub := range tf.Filters {
			v.checkFilter(verrs, sub)
		}
	case filter.Or:
		for _, sub := range tf.Filters {
			v.checkFilter(verrs, sub)
		}
	default:
		verrs.Add("unrecognized filter type %T", f)
	}
}

// checkRef validates one "Cube.field" reference against the registry.
func (v *Validator) checkRef(verrs *errs.ValidationError, ref string, role fieldRole) {
	parts := strings.Split(ref, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		verrs.Add("member reference %q must have exactly two dot-separated parts", ref)
		return
	}
	cubeName, field := parts[0], parts[1]

	c, ok := v.registry.Get(cubeName)
	if !ok {
		verrs.Add("member reference %q: cube %q is not registered", ref, cubeName)
		return
	}

	_, isMeasure := c.Measure(field)
	_, isDimension := c.Dimension(field)

	switch role {
	case roleMeasure:
		if !isMeasure {
			verrs.Add("member reference %q: %q is not a measure of cube %q", ref, field, cubeName)
		}
	case roleDimension:
		if !isDimension {
			verrs.Add("member reference %q: %q is not a dimension of cube %q", ref, field, cubeName)
		}
	case roleEither:
		if !isMeasure && !isDimension {
			verrs.Add("member reference %q: %q is neither a measure nor a dimension of cube %q", ref, field, cubeName)
		}
	}
}

func validGranularity(g Granularity) bool {
	switch g {
	case Second, Minute, Hour, Day, Week, Month, Quarter, Year:
		return true
	default:
		return false
	}
}
