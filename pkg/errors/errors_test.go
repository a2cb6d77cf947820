package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeForbidden, status: http.StatusForbidden},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
		{code: CodeBagUnavailable, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeInsufficientQuantity, status: http.StatusBadRequest, detailsOK: true},
		{code: CodePastPickupTime, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeAdvanceNoticeViolation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeBusinessClosed, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeInvalidTransition, status: http.StatusConflict, detailsOK: true},
		{code: CodePickupWindowExpired, status: http.StatusBadRequest, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s missing public message", tt.code)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestDomainCodesAreDistinct(t *testing.T) {
	codes := []Code{
		CodeBagUnavailable,
		CodeInsufficientQuantity,
		CodePastPickupTime,
		CodeAdvanceNoticeViolation,
		CodeBusinessClosed,
		CodeInvalidTransition,
		CodePickupWindowExpired,
		CodeNotFound,
		CodeForbidden,
	}
	seen := map[Code]struct{}{}
	for _, c := range codes {
		if _, dup := seen[c]; dup {
			t.Fatalf("duplicate code %s", c)
		}
		seen[c] = struct{}{}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing quantity")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing quantity" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "quantity"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "reserve bag")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestErrorString(t *testing.T) {
	if got := Newf(CodeNotFound, "bag %d missing", 7).Error(); got != "NOT_FOUND: bag 7 missing" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := Wrap(CodeDependency, stdErrors.New("timeout"), "load bag").Error(); got != "DEPENDENCY_ERROR: load bag: timeout" {
		t.Fatalf("unexpected message %q", got)
	}
	var nilErr *Error
	if nilErr.Error() != "" || nilErr.Code() != CodeInternal || nilErr.WithDetails("x") != nil {
		t.Fatal("nil *Error accessors should be safe")
	}
}

func TestAsAndHasCode(t *testing.T) {
	err := fmt.Errorf("create: %w", New(CodeInsufficientQuantity, "only 1 left"))
	if got := As(err); got == nil || got.Code() != CodeInsufficientQuantity {
		t.Fatalf("As failed to return typed error")
	}
	if !HasCode(err, CodeInsufficientQuantity) {
		t.Fatalf("expected HasCode to match")
	}
	if HasCode(err, CodeBagUnavailable) {
		t.Fatalf("expected HasCode mismatch")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDiagnoseCollectsChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("connection reset"), "load bag")
	d := Diagnose(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected code in diagnosis, got %s", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(d.Chain))
	}
	if d.SQLState != "" || d.Transient {
		t.Fatalf("plain errors carry no postgres detail: %+v", d)
	}
	if Diagnose(nil).Message != "" {
		t.Fatalf("expected empty diagnosis for nil")
	}
}

func TestDiagnosePgxCheckViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23514",
		ConstraintName: "rescue_bags_reserved_qty_check",
		TableName:      "rescue_bags",
	}
	d := Diagnose(Wrap(CodeDependency, fmt.Errorf("reserve: %w", pgErr), "reserve bag"))
	if d.Class != "check_violation" || d.Constraint != "rescue_bags_reserved_qty_check" {
		t.Fatalf("unexpected diagnosis %+v", d)
	}
	if d.Transient {
		t.Fatal("check violations are not transient")
	}
	fields := d.Fields()
	if fields["pg_table"] != "rescue_bags" || fields["pg_class"] != "check_violation" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestDiagnosePqSerializationFailureIsTransient(t *testing.T) {
	d := Diagnose(fmt.Errorf("credit: %w", &pq.Error{Code: "40001", Table: "users"}))
	if d.Class != "serialization_failure" || !d.Transient {
		t.Fatalf("unexpected diagnosis %+v", d)
	}
	if _, ok := d.Fields()["pg_detail"]; ok {
		t.Fatal("empty detail should be omitted")
	}
}

func TestDiagnoseConnectionExceptionClass(t *testing.T) {
	d := Diagnose(&pgconn.PgError{Code: "08006"})
	if d.Class != "connection_exception" || !d.Transient {
		t.Fatalf("unexpected diagnosis %+v", d)
	}
}
