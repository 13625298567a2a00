package domain

// Result is the response envelope shared by every API endpoint.
type Result[T any] struct {
	IsSuccess bool   `json:"isSuccess"`
	Value     *T     `json:"value,omitempty"`
	Error     *Error `json:"error,omitempty"`
}

func Ok[T any](v T) Result[T] {
	return Result[T]{IsSuccess: true, Value: &v}
}

// Fail wraps err as a failed Result. Non-domain errors are masked as internal.
func Fail[T any](err error) Result[T] {
	return Result[T]{Error: AsError(err)}
}
