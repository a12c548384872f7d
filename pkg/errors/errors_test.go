package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestEveryCodeHasMetadata(t *testing.T) {
	codes := []Code{
		CodeValidation, CodeUnauthorized, CodeForbidden, CodeNotFound,
		CodeInsufficientStock, CodeInsufficientPoints, CodeInvalidTransition,
		CodeConcurrency, CodeProductInactive, CodeZoneInactive, CodeAlreadyAssigned,
		CodeIdempotency, CodeRateLimit, CodePersistence, CodeInternal, CodeDependency,
	}
	for _, code := range codes {
		if _, ok := metadataByCode[code]; !ok {
			t.Errorf("%s has no metadata", code)
		}
	}
}

func TestMetadataStatusAndRetry(t *testing.T) {
	checks := map[Code]struct {
		status    int
		retryable bool
	}{
		CodeValidation:        {http.StatusBadRequest, false},
		CodeInsufficientStock: {http.StatusConflict, false},
		CodeInvalidTransition: {http.StatusUnprocessableEntity, false},
		CodeConcurrency:       {http.StatusConflict, true},
		CodeRateLimit:         {http.StatusTooManyRequests, true},
		CodeDependency:        {http.StatusServiceUnavailable, true},
		"NOT_A_CODE":          {http.StatusInternalServerError, true},
	}
	for code, want := range checks {
		got := MetadataFor(code)
		if got.HTTPStatus != want.status || got.Retryable != want.retryable {
			t.Errorf("%s: got status=%d retryable=%v", code, got.HTTPStatus, got.Retryable)
		}
	}
	if !MetadataFor(CodeInsufficientStock).DetailsAllowed {
		t.Errorf("shortfall details must reach the client")
	}
	if MetadataFor(CodePersistence).DetailsAllowed {
		t.Errorf("persistence details must stay server side")
	}
}

func TestWrapKeepsCauseInChain(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodePersistence, cause, "insert order").WithDetails(map[string]any{"table": "orders"})

	if !stdErrors.Is(err, cause) {
		t.Fatalf("cause lost")
	}
	if err.Message() != "insert order" || err.Details() == nil {
		t.Fatalf("unexpected message %q details %v", err.Message(), err.Details())
	}
	if got := err.Error(); got != "PERSISTENCE_ERROR: insert order: connection reset" {
		t.Fatalf("unexpected error string %q", got)
	}
	if Wrap(CodeNotFound, nil, "order").Unwrap() != nil {
		t.Fatalf("wrapping nil should not invent a cause")
	}
}

func TestIsCodeAndAs(t *testing.T) {
	err := fmt.Errorf("reserve: %w", New(CodeInsufficientStock, "short"))
	if !IsCode(err, CodeInsufficientStock) || IsCode(err, CodeNotFound) {
		t.Fatalf("IsCode mismatch through fmt wrap")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("untyped errors carry no code")
	}
	if As(nil) != nil || As(stdErrors.New("plain")) != nil {
		t.Fatalf("As should be nil for untyped input")
	}

	var nilErr *Error
	if nilErr.Code() != CodeInternal || nilErr.Error() != "" || nilErr.WithDetails("x") != nil {
		t.Fatalf("nil receiver must be safe")
	}
}
