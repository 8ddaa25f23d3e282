package pipeline

import "fmt"

// StatusError pairs a failure with the status code an outer surface should
// report.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

func statusErrorf(status int, format string, args ...interface{}) *StatusError {
	return &StatusError{Status: status, Message: fmt.Sprintf(format, args...)}
}
