package types

import "testing"

func TestComparableStrings(t *testing.T) {
	if s := IntKey(10).String(); s != "10" {
		t.Errorf("Expected %q, got %q", "10", s)
	}
}

func TestIntKey_Compare_LessThan(t *testing.T) {
	k := IntKey(5)
	result := k.Compare(IntKey(10))
	if result != -1 {
		t.Errorf("Expected -1 for 5 < 10, got %d", result)
	}
}

func TestIntKey_Compare_GreaterThan(t *testing.T) {
	k := IntKey(10)
	result := k.Compare(IntKey(5))
	if result != 1 {
		t.Errorf("Expected 1 for 10 > 5, got %d", result)
	}
}

func TestIntKey_Compare_Equal(t *testing.T) {
	k := IntKey(10)
	result := k.Compare(IntKey(10))
	if result != 0 {
		t.Errorf("Expected 0 for 10 == 10, got %d", result)
	}
}

func TestIntKey_Compare_Negative(t *testing.T) {
	k := IntKey(-5)
	result := k.Compare(IntKey(5))
	if result != -1 {
		t.Errorf("Expected -1 for -5 < 5, got %d", result)
	}
}
