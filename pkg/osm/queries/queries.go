// Package queries provides utilities for building Overpass QL programs.
package queries

import (
	"fmt"
	"strings"

	"github.com/yuiseki/NEREID/pkg/osm"
)

// DefaultTimeout is the default Overpass server-side timeout in seconds.
const DefaultTimeout = 25

// TagFilter is a single key=value tag filter.
type TagFilter struct {
	Key   string
	Value string
}

// String returns the filter in its key=value form.
func (f TagFilter) String() string {
	return f.Key + "=" + f.Value
}

// ParseTagFilter parses a "key=value" argument, splitting on the first "=" only.
func ParseTagFilter(s string) (TagFilter, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return TagFilter{}, osm.NewError(osm.ErrInvalidInput,
			fmt.Sprintf("malformed tag filter %q", s)).
			WithGuidance("Tag filters must have the form key=value, e.g. leisure=park.")
	}
	return TagFilter{Key: key, Value: value}, nil
}

// AreaQueryBuilder provides a fluent interface for building area-scoped
// Overpass queries. The resulting program selects all elements (nwr) carrying
// the given tags inside the named area and requests full geometry output.
type AreaQueryBuilder struct {
	timeout int
	area    string
	tags    []TagFilter
}

// NewAreaQueryBuilder creates a new builder with default settings.
// All queries request JSON output.
func NewAreaQueryBuilder() *AreaQueryBuilder {
	return &AreaQueryBuilder{
		timeout: DefaultTimeout,
	}
}

// WithTimeout sets the Overpass server-side timeout in seconds.
func (b *AreaQueryBuilder) WithTimeout(seconds int) *AreaQueryBuilder {
	b.timeout = seconds
	return b
}

// WithArea sets the name of the area the query is scoped to.
func (b *AreaQueryBuilder) WithArea(name string) *AreaQueryBuilder {
	b.area = name
	return b
}

// WithTag adds a tag filter.
func (b *AreaQueryBuilder) WithTag(filter TagFilter) *AreaQueryBuilder {
	b.tags = append(b.tags, filter)
	return b
}

// Build returns the complete Overpass QL program.
func (b *AreaQueryBuilder) Build() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "[out:json][timeout:%d];", b.timeout)
	fmt.Fprintf(&buf, "area[name=%q]->.searchArea;", b.area)
	buf.WriteString("(")
	for _, tag := range b.tags {
		fmt.Fprintf(&buf, "nwr[%q=%q](area.searchArea);", tag.Key, tag.Value)
	}
	buf.WriteString(");out geom;")
	return buf.String()
}
