package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	err := New(CodeNotFound, "module missing")
	if !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("expected code in message, got %q", err.Error())
	}
}

func TestWrap_Unwrap(t *testing.T) {
	inner := fmt.Errorf("io failure")
	err := Wrap(inner, CodeInternal, "scan failed")
	if !stderrors.Is(err, inner) {
		t.Error("wrapped error should unwrap to inner")
	}
	if !IsCode(err, CodeInternal) {
		t.Error("expected CodeInternal")
	}
}

func TestNotBuilt(t *testing.T) {
	err := NotBuilt("ResolveSymbol")
	if !IsCode(err, CodeNotBuilt) {
		t.Fatal("expected NOT_BUILT code")
	}
	if !strings.Contains(err.Error(), "ResolveSymbol") {
		t.Errorf("expected operation in context, got %q", err.Error())
	}
}

func TestAddContext(t *testing.T) {
	err := AddContext(fmt.Errorf("plain"), CtxPath, "/tmp/a.py")
	var de *DomainError
	if !stderrors.As(err, &de) {
		t.Fatal("expected DomainError")
	}
	if de.Context[CtxPath] != "/tmp/a.py" {
		t.Errorf("context not attached: %v", de.Context)
	}
}
