package ast

import "testing"

func TestTypeEqual(t *testing.T) {
	tests := []struct {
		a, b     Type
		expected bool
	}{
		{Int32, Int32, true},
		{Int32, UnsignedInt32, false},
		{Long, LongLong, false}, // distinct canonical names despite identical size
		{Char, Char, true},
	}
	for i, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.expected {
			t.Errorf("tests[%d] - %q.Equal(%q) = %t, expected %t", i, tt.a.Name, tt.b.Name, got, tt.expected)
		}
	}
}

func TestIsIntegerIsNumeric(t *testing.T) {
	if !Int32.IsInteger() {
		t.Errorf("expected int to be an integer type")
	}
	if DoubleType.IsInteger() {
		t.Errorf("expected double not to be an integer type")
	}
	if !DoubleType.IsNumeric() {
		t.Errorf("expected double to be numeric")
	}
}

func TestConvertCarriesTargetType(t *testing.T) {
	inner := NewConstantInt(1, 5)
	inner.SetAttachedType(Int32)
	conv := NewConvert(Long, inner)
	if conv.AttachedType() == nil || !conv.AttachedType().Equal(Long) {
		t.Fatalf("expected Convert's attached type to be long, got %v", conv.AttachedType())
	}
	if conv.Line() != inner.Line() {
		t.Errorf("expected Convert's line to match its inner expression")
	}
}

func TestBlockItemDiscriminatesStmtAndDecl(t *testing.T) {
	decl := &Declaration{Name: "x", Type: Int32}
	item := BlockItem{Decl: decl}
	if item.Stmt != nil || item.Decl != decl {
		t.Fatalf("expected a declaration block item to carry only Decl")
	}
}
