package error

import "net/http"

type ConflictError string

func (err ConflictError) Error() string {
	return string(err)
}

func (err ConflictError) ErrCode() string {
	return "CONFLICT_ERROR"
}

func (err ConflictError) StatusCode() int {
	return http.StatusConflict
}

// NoAvailableAgentError is returned by auto-assignment when every queue member is at capacity.
type NoAvailableAgentError string

func (err NoAvailableAgentError) Error() string {
	return string(err)
}

func (err NoAvailableAgentError) ErrCode() string {
	return "NO_AVAILABLE_AGENT"
}

func (err NoAvailableAgentError) StatusCode() int {
	return http.StatusConflict
}
