package handlers

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/weddingdesk/pkg/errors"
	"github.com/charlesng35/weddingdesk/pkg/response"
	appValidator "github.com/charlesng35/weddingdesk/pkg/validator"
)

// bindJSON decodes the body into dest. Field rules are enforced by the
// service so the error details stay identical for every caller.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	return true
}

// bindAndValidateQuery binds query parameters into dest and runs struct
// validation rules. On failure an error response is written and false is returned.
func bindAndValidateQuery[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid query parameters"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.ErrValidation.WithDetails(validationDetails(err)))
		return false
	}
	return true
}

func validationDetails(err error) map[string]any {
	ve, ok := err.(appValidator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return map[string]any{"payload": "invalid request payload"}
	}
	details := make(map[string]any, len(ve))
	for _, failure := range ve {
		details[failure.Field] = failure.Message()
	}
	return details
}
