package httpapi

// Result is the envelope every JSON endpoint returns.
// - code: 2000 success, -1 error, 60401 session missing or expired
// - type: "success" | "error"
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// ResultTokenExpired goes with HTTP 401; clients drop the session and sign in again.
	ResultTokenExpired = 60401
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

func Expired(message string) Result[any] {
	return Result[any]{Code: ResultTokenExpired, Type: "error", Message: message, Result: nil}
}
