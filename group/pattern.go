package group

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/dewiweb/holophonix-animator-sub000/model"
)

// ErrInvalidPattern is returned for a pattern that cannot match anything
// meaningful or cannot be compiled.
var ErrInvalidPattern = errors.New("invalid group pattern")

// Pattern selects group members by track ID.
type Pattern interface {
	Match(id string) bool
	Spec() model.PatternSpec
}

type allPattern struct{}

// All matches every track.
func All() Pattern { return allPattern{} }

func (allPattern) Match(string) bool       { return true }
func (allPattern) Spec() model.PatternSpec { return model.PatternSpec{Type: model.PatternAll} }

type affixPattern struct {
	kind  model.PatternType
	value string
}

func newAffix(kind model.PatternType, value string) (Pattern, error) {
	if value == "" {
		return nil, fmt.Errorf("%s pattern needs a non-empty value: %w", kind, ErrInvalidPattern)
	}
	return affixPattern{kind: kind, value: value}, nil
}

// Prefix matches IDs starting with s.
func Prefix(s string) (Pattern, error) { return newAffix(model.PatternPrefix, s) }

// Suffix matches IDs ending with s.
func Suffix(s string) (Pattern, error) { return newAffix(model.PatternSuffix, s) }

// Contains matches IDs containing s.
func Contains(s string) (Pattern, error) { return newAffix(model.PatternContains, s) }

func (p affixPattern) Match(id string) bool {
	switch p.kind {
	case model.PatternPrefix:
		return strings.HasPrefix(id, p.value)
	case model.PatternSuffix:
		return strings.HasSuffix(id, p.value)
	default:
		return strings.Contains(id, p.value)
	}
}

func (p affixPattern) Spec() model.PatternSpec {
	return model.PatternSpec{Type: p.kind, Value: p.value}
}

type regexPattern struct {
	re *regexp.Regexp
}

// Regex matches IDs against an RE2 expression. The expression is compiled
// once; a malformed expression is rejected here rather than at match time.
func Regex(expr string) (Pattern, error) {
	if expr == "" {
		return nil, fmt.Errorf("regex pattern needs an expression: %w", ErrInvalidPattern)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("regex %q: %w: %v", expr, ErrInvalidPattern, err)
	}
	return regexPattern{re: re}, nil
}

func (p regexPattern) Match(id string) bool { return p.re.MatchString(id) }

func (p regexPattern) Spec() model.PatternSpec {
	return model.PatternSpec{Type: model.PatternRegex, Value: p.re.String()}
}

type listPattern struct {
	ids []string
}

// List matches exactly the given IDs.
func List(ids ...string) (Pattern, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("list pattern needs at least one id: %w", ErrInvalidPattern)
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return listPattern{ids: slices.Compact(sorted)}, nil
}

func (p listPattern) Match(id string) bool {
	_, found := slices.BinarySearch(p.ids, id)
	return found
}

func (p listPattern) Spec() model.PatternSpec {
	return model.PatternSpec{Type: model.PatternList, IDs: slices.Clone(p.ids)}
}

type rangePattern struct {
	lo, hi int
}

// Range matches IDs whose trailing decimal number lies in [lo, hi], so
// Range(1, 3) selects "track1" through "track3".
func Range(lo, hi int) (Pattern, error) {
	if lo < 0 || hi < 0 || lo > hi {
		return nil, fmt.Errorf("range [%d, %d]: %w", lo, hi, ErrInvalidPattern)
	}
	return rangePattern{lo: lo, hi: hi}, nil
}

func (p rangePattern) Match(id string) bool {
	n, ok := trailingNumber(id)
	return ok && n >= p.lo && n <= p.hi
}

func (p rangePattern) Spec() model.PatternSpec {
	return model.PatternSpec{Type: model.PatternRange, Lo: p.lo, Hi: p.hi}
}

func trailingNumber(id string) (int, bool) {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	if i == len(id) {
		return 0, false
	}
	n, err := strconv.Atoi(id[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}

type unionPattern struct {
	parts []Pattern
}

// Union matches IDs matched by any of its parts.
func Union(parts ...Pattern) (Pattern, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("union pattern needs at least one part: %w", ErrInvalidPattern)
	}
	for i, p := range parts {
		if p == nil {
			return nil, fmt.Errorf("union part %d is nil: %w", i, ErrInvalidPattern)
		}
	}
	return unionPattern{parts: slices.Clone(parts)}, nil
}

func (p unionPattern) Match(id string) bool {
	for _, part := range p.parts {
		if part.Match(id) {
			return true
		}
	}
	return false
}

func (p unionPattern) Spec() model.PatternSpec {
	spec := model.PatternSpec{Type: model.PatternUnion}
	for _, part := range p.parts {
		spec.Patterns = append(spec.Patterns, part.Spec())
	}
	return spec
}

// NewPattern builds a pattern from its serialized form.
func NewPattern(spec model.PatternSpec) (Pattern, error) {
	switch spec.Type {
	case model.PatternAll, "":
		return All(), nil
	case model.PatternPrefix:
		return Prefix(spec.Value)
	case model.PatternSuffix:
		return Suffix(spec.Value)
	case model.PatternContains:
		return Contains(spec.Value)
	case model.PatternRegex:
		return Regex(spec.Value)
	case model.PatternList:
		return List(spec.IDs...)
	case model.PatternRange:
		return Range(spec.Lo, spec.Hi)
	case model.PatternUnion:
		parts := make([]Pattern, 0, len(spec.Patterns))
		for i, ps := range spec.Patterns {
			p, err := NewPattern(ps)
			if err != nil {
				return nil, fmt.Errorf("union part %d: %w", i, err)
			}
			parts = append(parts, p)
		}
		return Union(parts...)
	default:
		return nil, fmt.Errorf("unknown pattern type %q: %w", spec.Type, ErrInvalidPattern)
	}
}
