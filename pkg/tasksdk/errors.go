package tasksdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the service.
const (
	ErrorCodeInvalidRequest           = "invalid_request"
	ErrorCodeInvalidToken             = "invalid_token"
	ErrorCodeInvalidCredentials       = "invalid_credentials"
	ErrorCodeUsernameTaken            = "username_taken"
	ErrorCodeInvalidRefreshToken      = "invalid_refresh_token"
	ErrorCodeReauthenticationRequired = "reauthentication_required"
	ErrorCodeUnauthorized             = "unauthorized"
	ErrorCodeNotFound                 = "not_found"
	ErrorCodeRateLimitExceeded        = "rate_limit_exceeded"
	ErrorCodeServerError              = "server_error"
)

// ErrNotAuthenticated is returned by calls that need a session before Login,
// Register or SetTokens has provided one.
var ErrNotAuthenticated = errors.New("tasksdk: not authenticated")

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Description)
}

// IsErrorCode reports whether err is an APIError carrying code.
func IsErrorCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse builds an APIError from a response body, falling back
// to the status text when the body is not the usual JSON shape.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		apiErr.Code = er.Error
		apiErr.Description = er.ErrorDescription
		return apiErr
	}

	apiErr.Code = http.StatusText(resp.StatusCode)
	return apiErr
}
