package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"

	appErrors "github.com/classboard/conduct-api/pkg/errors"
)

// Envelope is the wire contract shared with the frontend: every body carries
// a `success` flag, query endpoints add `data` and `count`.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OK sends a success response with an arbitrary data payload.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// List sends a success response for list queries including the record count.
// `data` is always rendered, and a nil slice renders as an empty JSON array,
// so consumers can iterate it unconditionally.
func List(c *gin.Context, data interface{}, count int) {
	if v := reflect.ValueOf(data); !v.IsValid() || (v.Kind() == reflect.Slice && v.IsNil()) {
		data = []struct{}{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "count": count})
}

// Raw sends a success response merging extra fields into the envelope, used
// by the submission endpoint whose contract carries top-level fields.
func Raw(c *gin.Context, status int, body gin.H) {
	body["success"] = true
	c.JSON(status, body)
}

// Error sends an error response converting the error to the common structure.
// Internal details stay out of production responses; the wrapped cause is for
// logs only.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.JSON(appErr.Status, Envelope{Success: false, Message: appErr.Message, Code: appErr.Code})
}
