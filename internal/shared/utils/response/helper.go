package response

import (
	"roomly/internal/shared/apperrors"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError maps an engine error onto the standard envelope. Conflicts carry
// their detail and resolution in the errors field.
func RespondError(c *gin.Context, err error) {
	code, kind := apperrors.HTTPStatus(err)
	details := ErrorDetail{Code: kind}
	if conflict, ok := apperrors.AsConflict(err); ok {
		details.Conflict = conflict.Conflict
		details.Resolution = conflict.Resolution
	}

	message := err.Error()
	if code >= 500 && code != 504 {
		// internal failures are logged by the request middleware, not echoed
		message = "internal server error"
	}
	RespondJSON(c, "error", code, message, nil, details)
}
