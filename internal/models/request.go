// Package models - API request types and input validation.
//
// Validation Philosophy:
// - Fail fast with field-level messages for invalid input
// - Apply defaults before validating so omitted parameters are legal
// - Keep struct tags as the single source of truth for constraints
package models

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultPageLimit is the page size used when the client sends none.
const DefaultPageLimit = 20

// ListProductsRequest carries the query parameters of GET /api/v1/products.
type ListProductsRequest struct {
	Limit  int `json:"limit" validate:"min=1,max=100"`
	Offset int `json:"offset" validate:"min=0"`
}

// ParseListProductsRequest reads limit and offset from query, applying
// defaults for missing values. Non-numeric values are reported per field.
func ParseListProductsRequest(query url.Values) (*ListProductsRequest, map[string]string) {
	req := &ListProductsRequest{Limit: DefaultPageLimit}
	problems := make(map[string]string)

	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			problems["limit"] = "must be an integer"
		} else {
			req.Limit = n
		}
	}
	if raw := query.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			problems["offset"] = "must be an integer"
		} else {
			req.Offset = n
		}
	}

	if len(problems) > 0 {
		return nil, problems
	}
	return req, nil
}

// Validate checks the request against its struct tags.
func (r *ListProductsRequest) Validate() map[string]string {
	return ValidateStruct(r)
}

// ValidateStruct validates v with the shared validator and returns a map of
// field name to message, or nil when v is valid.
func ValidateStruct(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	problems := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		problems[fe.Field()] = describe(fe)
	}
	return problems
}

// ErrInvalidProduct is returned by repositories for products that fail
// validation on save.
var ErrInvalidProduct = errors.New("invalid product")

// ValidateProduct normalizes p and checks it. The returned error wraps
// ErrInvalidProduct and lists every field problem.
func ValidateProduct(p *Product) error {
	p.Normalize()
	problems := ValidateStruct(p)
	if problems == nil {
		return nil
	}

	fields := make([]string, 0, len(problems))
	for field := range problems {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+problems[field])
	}
	return fmt.Errorf("%w: %s", ErrInvalidProduct, strings.Join(parts, "; "))
}
