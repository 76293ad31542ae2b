package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodePaymentRequired, status: http.StatusPaymentRequired},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "query webhooks")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if err.Error() != "DEPENDENCY_ERROR: query webhooks: connection reset" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestAsFindsCodedErrorThroughFmtWrap(t *testing.T) {
	inner := New(CodeNotFound, "charge missing")
	outer := fmt.Errorf("failed to load charge: %w", inner)

	typed := As(outer)
	if typed == nil || typed.Code() != CodeNotFound {
		t.Fatalf("expected not found code, got %v", typed)
	}
	if !Is(outer, CodeNotFound) {
		t.Fatalf("expected Is to match not found")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("plain errors should map to internal")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(CodeDependency, "shopify down")) {
		t.Fatalf("dependency errors must be retryable")
	}
	if IsRetryable(New(CodeUnauthorized, "bad hmac")) {
		t.Fatalf("signature errors must not be retryable")
	}
}

func TestNilErrorAccessors(t *testing.T) {
	var e *Error
	if e.Code() != CodeInternal || e.Message() != "" || e.Unwrap() != nil {
		t.Fatalf("nil error accessors should be safe")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should be nil")
	}
}
