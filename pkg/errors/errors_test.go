package errors

import "testing"

func TestErrors_ErrorMethod(t *testing.T) {
	errs := []error{
		&InvalidKeyError{Key: ""},
		&UnknownValueKindError{Kind: "Weird"},
		&InvariantViolationError{Reason: "pending id mismatch"},
		&UsageError{Reason: "rollback metadata mismatch"},
		&PoisonedError{Cause: &InvariantViolationError{Reason: "x"}},
	}

	for _, e := range errs {
		if e.Error() == "" {
			t.Errorf("Error() returned empty string for %T", e)
		}
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		err   error
		fatal bool
	}{
		{&InvariantViolationError{Reason: "x"}, true},
		{&UsageError{Reason: "x"}, true},
		{&InvalidKeyError{Key: ""}, false},
		{&UnknownValueKindError{Kind: "x"}, false},
	}

	for _, c := range cases {
		if got := IsFatal(c.err); got != c.fatal {
			t.Errorf("IsFatal(%T) = %v, want %v", c.err, got, c.fatal)
		}
	}
}

func TestPoisonedErrorUnwrap(t *testing.T) {
	cause := &InvariantViolationError{Reason: "boom"}
	p := &PoisonedError{Cause: cause}
	if p.Unwrap() != error(cause) {
		t.Errorf("Unwrap() did not return the original cause")
	}
}
