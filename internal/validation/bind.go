package validation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// BindAndValidate binds JSON body into `out` and runs validation.
// If validation fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		abort(c, "invalid_request_body", err.Error(), nil)
		return err
	}
	return validate(c, out, v)
}

// BindQueryAndValidate is BindAndValidate for the URL query string.
func BindQueryAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindQuery(out); err != nil {
		abort(c, "invalid_query", err.Error(), nil)
		return err
	}
	return validate(c, out, v)
}

func validate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := v.Struct(out); err != nil {
		// return structured validation errors
		abort(c, "validation_failed", "invalid input", validationErrorsToMap(err))
		return err
	}
	return nil
}

func abort(c *gin.Context, code, msg string, fields map[string]string) {
	body := gin.H{
		"success": false,
		"error":   code,
		"message": msg,
	}
	if fields != nil {
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fieldPath(fe)] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}

// fieldPath drops the root struct name from the namespace:
// "CreateOrderRequest.items[0].product_id" becomes "items[0].product_id".
func fieldPath(fe validatorv10.FieldError) string {
	ns := fe.Namespace()
	for i := 0; i < len(ns); i++ {
		if ns[i] == '.' {
			return ns[i+1:]
		}
	}
	return ns
}
