package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields by their wire name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})

	v.RegisterStructValidation(searchQueryStructValidation, SearchQuery{})
	v.RegisterStructValidation(cartMergeStructValidation, CartMergeRequest{})

	return v
}

// searchQueryStructValidation rejects an inverted price range.
func searchQueryStructValidation(sl validatorv10.StructLevel) {
	q := sl.Current().Interface().(SearchQuery)
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		sl.ReportError(q.MaxPrice, "max_price", "MaxPrice", "gtefield_min_price", "")
	}
}

// cartMergeStructValidation rejects duplicate product lines.
func cartMergeStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CartMergeRequest)
	seen := make(map[string]bool, len(req.Items))
	for _, it := range req.Items {
		if seen[it.ProductID] {
			sl.ReportError(req.Items, "items", "Items", "unique_product", it.ProductID)
			return
		}
		seen[it.ProductID] = true
	}
}
