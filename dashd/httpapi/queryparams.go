package httpapi

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/xerrors"

	"github.com/livedash/livedash/dashsdk"
)

// QueryParamParser is a helper for parsing all query params and gathering all
// errors in 1 sweep. This means all invalid fields are returned at once,
// rather than only returning the first error
type QueryParamParser struct {
	// Errors is the set of errors to return via the API. If the length
	// of this set is 0, there are no errors!.
	Errors []dashsdk.ValidationError
}

func NewQueryParamParser() *QueryParamParser {
	return &QueryParamParser{
		Errors: []dashsdk.ValidationError{},
	}
}

func (p *QueryParamParser) Int(vals url.Values, def int, queryParam string) int {
	v, err := parseQueryParam(vals, strconv.Atoi, def, queryParam)
	if err != nil {
		p.Errors = append(p.Errors, dashsdk.ValidationError{
			Field:  queryParam,
			Detail: fmt.Sprintf("Query param %q must be a valid integer (%s)", queryParam, err.Error()),
		})
	}
	return v
}

// Float64 rejects NaN and infinities.
func (p *QueryParamParser) Float64(vals url.Values, def float64, queryParam string) float64 {
	v, err := parseQueryParam(vals, func(v string) (float64, error) {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
			err = xerrors.New("must be finite")
		}
		return f, err
	}, def, queryParam)
	if err != nil {
		p.Errors = append(p.Errors, dashsdk.ValidationError{
			Field:  queryParam,
			Detail: fmt.Sprintf("Query param %q must be a valid number (%s)", queryParam, err.Error()),
		})
		return def
	}
	return v
}

// Duration accepts Go duration strings ("90s", "5m").
func (p *QueryParamParser) Duration(vals url.Values, def time.Duration, queryParam string) time.Duration {
	v, err := parseQueryParam(vals, time.ParseDuration, def, queryParam)
	if err == nil && v <= 0 {
		err = xerrors.New("must be positive")
	}
	if err != nil {
		p.Errors = append(p.Errors, dashsdk.ValidationError{
			Field:  queryParam,
			Detail: fmt.Sprintf("Query param %q must be a positive duration (%s)", queryParam, err.Error()),
		})
		return def
	}
	return v
}

func (*QueryParamParser) String(vals url.Values, def string, queryParam string) string {
	v, _ := parseQueryParam(vals, func(v string) (string, error) {
		return v, nil
	}, def, queryParam)
	return v
}

// ParseCustom has to be a function, not a method on QueryParamParser because generics
// cannot be used on struct methods.
func ParseCustom[T any](parser *QueryParamParser, vals url.Values, def T, queryParam string, parseFunc func(v string) (T, error)) T {
	v, err := parseQueryParam(vals, parseFunc, def, queryParam)
	if err != nil {
		parser.Errors = append(parser.Errors, dashsdk.ValidationError{
			Field:  queryParam,
			Detail: fmt.Sprintf("Query param %q has invalid value: %s", queryParam, err.Error()),
		})
	}
	return v
}

func parseQueryParam[T any](vals url.Values, parse func(v string) (T, error), def T, queryParam string) (T, error) {
	if !vals.Has(queryParam) || vals.Get(queryParam) == "" {
		return def, nil
	}
	str := vals.Get(queryParam)
	return parse(str)
}
