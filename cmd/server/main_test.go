package main

import "testing"

func TestPoolConfig(t *testing.T) {
	tests := []struct {
		in   string
		want int32
	}{
		{"8", 8},
		{"", 0},
		{"abc", 0},
		{"0", 0},
		{"-1", 0},
		{"4294967297", 0},
		{"2147483647", 2147483647},
	}

	for _, tt := range tests {
		if got := poolConfig(tt.in).MaxConns; got != tt.want {
			t.Errorf("poolConfig(%q).MaxConns = %d, want %d", tt.in, got, tt.want)
		}
	}
}
