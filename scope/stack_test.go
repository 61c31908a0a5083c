package scope

import "testing"

func TestDeclareAndLookup(t *testing.T) {
	s := New[int]()
	s.Push()
	if !s.DeclareInCurrent("x", 1) {
		t.Fatalf("expected first declaration of x to succeed")
	}
	if v, ok := s.Lookup("x"); !ok || v != 1 {
		t.Fatalf("expected to find x=1, got %v %t", v, ok)
	}
	if _, ok := s.Lookup("y"); ok {
		t.Errorf("expected y to be unbound")
	}
}

func TestDeclareInCurrentRejectsSameScopeRedeclaration(t *testing.T) {
	s := New[int]()
	s.Push()
	s.DeclareInCurrent("x", 1)
	if s.DeclareInCurrent("x", 2) {
		t.Fatalf("expected redeclaring x in the same scope to fail")
	}
}

func TestShadowingInNestedScope(t *testing.T) {
	s := New[int]()
	s.Push()
	s.DeclareInCurrent("x", 1)
	s.Push()
	if !s.DeclareInCurrent("x", 2) {
		t.Fatalf("expected shadowing x in a nested scope to succeed")
	}
	if v, _ := s.Lookup("x"); v != 2 {
		t.Errorf("expected innermost x=2 to win, got %d", v)
	}
	s.Pop()
	if v, _ := s.Lookup("x"); v != 1 {
		t.Errorf("expected outer x=1 after popping the inner scope, got %d", v)
	}
}

func TestScopeBalance(t *testing.T) {
	s := New[int]()
	s.Push()
	entry := s.Depth()
	s.Push()
	s.DeclareInCurrent("tmp", 1)
	s.Pop()
	if s.Depth() != entry {
		t.Fatalf("expected depth to return to %d after push/pop, got %d", entry, s.Depth())
	}
}

func TestPopOfEmptyStackPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Pop of an empty stack to panic")
		}
	}()
	New[int]().Pop()
}

func TestContainsInCurrent(t *testing.T) {
	s := New[string]()
	s.Push()
	s.DeclareInCurrent("a", "A")
	s.Push()
	if s.ContainsInCurrent("a") {
		t.Errorf("expected ContainsInCurrent not to see an outer scope's binding")
	}
	if _, ok := s.Lookup("a"); !ok {
		t.Errorf("expected Lookup to still find the outer binding")
	}
}
