package condeval

import "testing"

func TestParseOperator(t *testing.T) {
	cases := map[string]bool{
		"<": true, "<=": true, "==": true, "!=": true, ">=": true, ">": true,
		"<>": false, "": false, "eq": false,
	}
	for token, wantOK := range cases {
		_, ok := ParseOperator(token)
		if ok != wantOK {
			t.Errorf("ParseOperator(%q) ok = %v, want %v", token, ok, wantOK)
		}
	}
}

func TestEvaluateNumeric(t *testing.T) {
	tests := []struct {
		op         Operator
		lhs, rhs   string
		wantResult bool
		wantOK     bool
	}{
		{OpGT, "42", "10", true, true},
		{OpGT, "3.2", "10", false, true},
		{OpLT, "3.2", "10", true, true},
		{OpEQ, "10", "10.0", true, true},
		{OpNE, "10", "11", true, true},
		{OpGE, "10", "10", true, true},
		{OpLE, "9", "10", true, true},
		{OpGT, "alpha", "10", false, false},
		{OpGT, "10", "alpha", false, false},
	}
	for _, tt := range tests {
		result, ok := tt.op.EvaluateNumeric(tt.lhs, tt.rhs)
		if ok != tt.wantOK || (ok && result != tt.wantResult) {
			t.Errorf("%q.EvaluateNumeric(%q, %q) = (%v, %v), want (%v, %v)", tt.op, tt.lhs, tt.rhs, result, ok, tt.wantResult, tt.wantOK)
		}
	}
}

func TestEvaluateString(t *testing.T) {
	tests := []struct {
		op       Operator
		lhs, rhs string
		want     bool
	}{
		{OpEQ, "alpha", "alpha", true},
		{OpNE, "alpha", "beta", true},
		{OpLT, "alpha", "beta", true},
		{OpGT, "beta", "alpha", true},
	}
	for _, tt := range tests {
		got := tt.op.EvaluateString(tt.lhs, tt.rhs)
		if got != tt.want {
			t.Errorf("%q.EvaluateString(%q, %q) = %v, want %v", tt.op, tt.lhs, tt.rhs, got, tt.want)
		}
	}
}
