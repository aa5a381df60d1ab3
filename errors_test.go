package gokusto

import (
	"errors"
	"fmt"
	"testing"
)

func TestKustoErrorFormatting(t *testing.T) {
	err := &KustoError{
		Number:      ErrCodeUnrecognizedKey,
		Message:     "unrecognized connection string key %q",
		MessageArgs: []interface{}{"Bogus"},
	}
	assertEqualE(t, err.Error(), `260001: unrecognized connection string key "Bogus"`)

	err = &KustoError{
		Number:  ErrCodeServiceError,
		QueryID: "KGC.execute;abc",
		Message: "boom",
	}
	assertEqualE(t, err.Error(), "290000: KGC.execute;abc: boom")
}

func TestKustoErrorIsMatchesByNumber(t *testing.T) {
	formatted := &KustoError{
		Number:      ErrCodeIncompleteDataset,
		Message:     "dataset ended while table %d was still open",
		MessageArgs: []interface{}{3},
	}
	assertErrIsE(t, formatted, ErrIncompleteDataset)
	assertErrIsE(t, fmt.Errorf("query failed: %w", formatted), ErrIncompleteDataset)
	assertFalseE(t, errors.Is(formatted, ErrInvalidConn))
}

func TestQueryErrorMessage(t *testing.T) {
	qe := &QueryError{ErrorCode: "LimitsExceeded", Message: "too much"}
	assertStringContainsE(t, qe.Error(), "LimitsExceeded")
	qe = &QueryError{Message: "plain"}
	assertEqualE(t, qe.Error(), "query error: plain")
}
