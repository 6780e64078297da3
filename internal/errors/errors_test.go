// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindBadRequest, "invalid input")
	if err.Error() != "invalid input" {
		t.Errorf("expected 'invalid input', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindDBError, "failed to validate")
	if wrapped.Error() != "failed to validate: invalid input" {
		t.Errorf("expected 'failed to validate: invalid input', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindBadRequest, "invalid input")
	if GetKind(err) != KindBadRequest {
		t.Errorf("expected KindBadRequest, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindDBError, "failed")
	if GetKind(wrapped) != KindDBError {
		t.Errorf("expected KindDBError, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindOther {
		t.Errorf("expected KindOther, got %v", GetKind(errors.New("std error")))
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindBadRequest, "invalid input")
	err = Attr(err, "field", "port")
	err = Attr(err, "value", 80)

	attrs := GetAttributes(err)
	if attrs["field"] != "port" {
		t.Errorf("expected port, got %v", attrs["field"])
	}
	if attrs["value"] != 80 {
		t.Errorf("expected 80, got %v", attrs["value"])
	}

	wrapped := Wrap(err, KindDBError, "failed")
	wrapped = Attr(wrapped, "operation", "start")

	allAttrs := GetAttributes(wrapped)
	if allAttrs["field"] != "port" || allAttrs["operation"] != "start" {
		t.Errorf("missing attributes: %v", allAttrs)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindMissingTarget: 400,
		KindMissingTTL:    400,
		KindBadIP:         400,
		KindBadRequest:    400,
		KindWrongFilter:   400,
		KindWrongLogLevel: 400,
		KindOverflow:      413,
		KindUpstream:      500,
		KindClientError:   500,
		KindPoolError:     500,
		KindDBError:       500,
		KindOther:         500,
	}
	for kind, want := range cases {
		if got := kind.HTTPStatus(); got != want {
			t.Errorf("%s: expected %d, got %d", kind, want, got)
		}
	}
}
