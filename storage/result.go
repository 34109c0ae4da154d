package storage

// Status is the outcome kind of migrate, import and reset
type Status string

const (
	StatusOK       Status = "ok"
	StatusNoop     Status = "noop"
	StatusConflict Status = "conflict"
	StatusError    Status = "error"
)

// Result is returned instead of an error for every expected outcome.
// Message is meant to be shown to the user as is.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
	// InvalidInput marks errors caused by the supplied file rather than a store
	InvalidInput bool `json:"-"`
}

func ok(msg string) Result       { return Result{Status: StatusOK, Message: msg} }
func noop(msg string) Result     { return Result{Status: StatusNoop, Message: msg} }
func conflict(msg string) Result { return Result{Status: StatusConflict, Message: msg} }

func failed(msg string, cause error) Result {
	return Result{Status: StatusError, Message: msg, Cause: cause}
}

func rejected(msg string, cause error) Result {
	return Result{Status: StatusError, Message: msg, Cause: cause, InvalidInput: true}
}
