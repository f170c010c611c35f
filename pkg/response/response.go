package response

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/baedrik/skulls2/pkg/apierror"
)

// BlockSize is the padding block for every response body. It is set once at
// startup, before the server accepts requests.
var BlockSize = 256

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Pad extends b with trailing spaces up to the next multiple of blockSize.
// Trailing whitespace keeps a JSON document valid.
func Pad(b []byte, blockSize int) []byte {
	if blockSize <= 0 {
		return b
	}
	rem := len(b) % blockSize
	if rem == 0 {
		return b
	}
	return append(b, bytes.Repeat([]byte{' '}, blockSize-rem)...)
}

func write(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(Pad(body, BlockSize))
}

// JSON sends a padded JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	body, err := json.Marshal(Response{
		Success: true,
		Data:    data,
	})
	if err != nil {
		Error(w, apierror.InternalError("failed to encode response"))
		return
	}
	write(w, statusCode, body)
}

// JSONWithMeta sends a padded JSON response with pagination metadata.
func JSONWithMeta(w http.ResponseWriter, statusCode int, data interface{}, page, limit int, total int64) {
	body, err := json.Marshal(Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Page:  page,
			Limit: limit,
			Total: total,
		},
	})
	if err != nil {
		Error(w, apierror.InternalError("failed to encode response"))
		return
	}
	write(w, statusCode, body)
}

// Error sends a padded error response.
func Error(w http.ResponseWriter, err error) {
	if apiErr, ok := apierror.As(err); ok {
		write(w, apiErr.StatusCode, apiErr.ToJSON())
		return
	}

	internalErr := apierror.InternalError("an unexpected error occurred")
	write(w, internalErr.StatusCode, internalErr.ToJSON())
}

// OK sends a 200 OK response.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}
