package resilience

// ErrorInfo is the wire form of a taxonomy error inside an Envelope.
type ErrorInfo struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Envelope is the uniform result wrapper returned to orchestrator callers.
// Mocked and DryRun flag the operating mode the result was produced under.
type Envelope[T any] struct {
	OK     bool       `json:"ok"`
	Mocked bool       `json:"mocked,omitempty"`
	DryRun bool       `json:"dryRun,omitempty"`
	Data   T          `json:"data,omitempty"`
	Error  *ErrorInfo `json:"error,omitempty"`
}

// Success wraps data in a successful envelope.
func Success[T any](data T) Envelope[T] {
	return Envelope[T]{OK: true, Data: data}
}

// MockedSuccess wraps data produced without contacting any dependency.
func MockedSuccess[T any](data T) Envelope[T] {
	return Envelope[T]{OK: true, Mocked: true, Data: data}
}

// DryRunSuccess wraps data from a delivery whose confirm phase was
// intentionally skipped.
func DryRunSuccess[T any](data T) Envelope[T] {
	return Envelope[T]{OK: true, DryRun: true, Data: data}
}

// Failure wraps err in a failed envelope, preserving its taxonomy kind so
// callers can branch on Error.Kind.
func Failure[T any](err error) Envelope[T] {
	envelope := Envelope[T]{OK: false}

	if err != nil {
		envelope.Error = &ErrorInfo{Kind: KindOf(err), Message: err.Error()}
	}

	return envelope
}
