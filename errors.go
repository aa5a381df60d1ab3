// Package gokusto is a Go client for the Azure Data Explorer (Kusto) REST API.
package gokusto

import (
	"fmt"
)

// KustoError is an error type including Kusto specific information.
type KustoError struct {
	Number      int
	QueryID     string
	Message     string
	MessageArgs []interface{}
}

func (ke *KustoError) Error() string {
	message := ke.Message
	if len(ke.MessageArgs) > 0 {
		message = fmt.Sprintf(ke.Message, ke.MessageArgs...)
	}
	if ke.QueryID != "" {
		return fmt.Sprintf("%06d: %s: %s", ke.Number, ke.QueryID, message)
	}
	return fmt.Sprintf("%06d: %s", ke.Number, message)
}

// Is reports whether ke matches target by error number, so preformatted
// errors compare equal to formatted instances of the same code.
func (ke *KustoError) Is(target error) bool {
	t, ok := target.(*KustoError)
	return ok && t.Number == ke.Number
}

const (
	// connection string

	// ErrCodeMalformedConnectionString is an error code for a connection string segment that is not Key=Value.
	ErrCodeMalformedConnectionString = 260000
	// ErrCodeUnrecognizedKey is an error code for a connection string key outside the recognized set.
	ErrCodeUnrecognizedKey = 260001
	// ErrCodeDuplicateKey is an error code for a connection string key given more than once.
	ErrCodeDuplicateKey = 260002
	// ErrCodeInvalidServiceURI is an error code for a Data Source that is not an absolute http(s) URI.
	ErrCodeInvalidServiceURI = 260003
	// ErrCodeInvalidIdentityConfiguration is an error code for missing or conflicting identity fields.
	ErrCodeInvalidIdentityConfiguration = 260004

	// frame decode

	// ErrCodeUnknownFrameKind is an error code for a frame with an unrecognized FrameType.
	ErrCodeUnknownFrameKind = 270000
	// ErrCodeMalformedFrame is an error code for a frame element whose JSON shape is invalid.
	ErrCodeMalformedFrame = 270001
	// ErrCodeMalformedResponse is an error code for a response body that is neither a v1 object nor a v2 frame array.
	ErrCodeMalformedResponse = 270002

	// materialization

	// ErrCodeDuplicateTableHeader is an error code for a second TableHeader before the table was completed.
	ErrCodeDuplicateTableHeader = 280000
	// ErrCodeFragmentBeforeHeader is an error code for a TableFragment whose table was never opened.
	ErrCodeFragmentBeforeHeader = 280001
	// ErrCodeFragmentAfterCompletion is an error code for a TableFragment arriving after TableCompletion.
	ErrCodeFragmentAfterCompletion = 280002
	// ErrCodeCompletionBeforeHeader is an error code for a TableCompletion whose table was never opened.
	ErrCodeCompletionBeforeHeader = 280003
	// ErrCodeIncompleteDataset is an error code for a dataset that ended with tables still open.
	ErrCodeIncompleteDataset = 280004
	// ErrCodeRowArityMismatch is an error code for a row whose cell count differs from the table schema.
	ErrCodeRowArityMismatch = 280005

	// transport and auth

	// ErrCodeServiceError is an error code for a non-2xx response from the service.
	ErrCodeServiceError = 290000
	// ErrCodeTokenAcquisition is an error code for a failure to obtain a bearer token.
	ErrCodeTokenAcquisition = 290001
	// ErrCodeInvalidConn is an error code for operations on a closed or misconfigured client.
	ErrCodeInvalidConn = 290002
)

var (
	// preformatted errors

	// ErrIncompleteDataset is returned when the stream ends while one or more tables are still open.
	ErrIncompleteDataset = &KustoError{
		Number:  ErrCodeIncompleteDataset,
		Message: "dataset ended with one or more tables still open",
	}
	// ErrInvalidConn is returned if the client is closed or was not built by New.
	ErrInvalidConn = &KustoError{
		Number:  ErrCodeInvalidConn,
		Message: "invalid connection",
	}
)
