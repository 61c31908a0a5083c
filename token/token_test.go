package token

import "testing"

func TestLookupIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected Type
	}{
		{"if", IF},
		{"else", ELSE},
		{"return", RETURN},
		{"int", INT},
		{"unsigned", UNSIGNED},
		{"for", FOR},
		{"while", WHILE},
		{"struct", STRUCT},
		{"double", DOUBLE},
		{"foo", IDENT},
		{"main", IDENT},
	}

	for i, tt := range tests {
		got := LookupIdentifier(tt.input)
		if got != tt.expected {
			t.Errorf("tests[%d] - wrong type. expected=%q, got=%q", i, tt.expected, got)
		}
	}
}

func TestIsTypeKeyword(t *testing.T) {
	tests := []struct {
		typ      Type
		expected bool
	}{
		{CHAR, true},
		{INT, true},
		{LONG, true},
		{UNSIGNED, true},
		{CONST, true},
		{DOUBLE, true},
		{IF, false},
		{IDENT, false},
		{STRUCT, false},
	}

	for i, tt := range tests {
		got := IsTypeKeyword(tt.typ)
		if got != tt.expected {
			t.Errorf("tests[%d] - wrong result for %q. expected=%t, got=%t", i, tt.typ, tt.expected, got)
		}
	}
}

func TestIsUnsupportedKeyword(t *testing.T) {
	tests := []struct {
		typ      Type
		expected bool
	}{
		{STRUCT, true},
		{UNION, true},
		{TYPEDEF, true},
		{FOR, true},
		{WHILE, true},
		{DO, true},
		{SWITCH, true},
		{GOTO, true},
		{DOUBLE, true},
		{FLOAT, true},
		{INT, false},
		{IF, false},
		{CONST, false},
	}

	for i, tt := range tests {
		got := IsUnsupportedKeyword(tt.typ)
		if got != tt.expected {
			t.Errorf("tests[%d] - wrong result for %q. expected=%t, got=%t", i, tt.typ, tt.expected, got)
		}
	}
}
