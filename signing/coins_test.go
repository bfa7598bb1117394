package signing

import "testing"

func TestEstimateSizeKB(t *testing.T) {
	tests := []struct {
		inputs, outputs uint32
		want            uint64
	}{
		{1, 1, 1},   // 148+34+10 = 192 bytes -> 1 KB
		{5, 2, 1},   // 740+68+10 = 818 bytes -> 1 KB
		{10, 2, 2},  // 1480+68+10 = 1558 bytes -> 2 KB
		{0, 0, 1},   // 10 bytes -> rounds up to 1 KB minimum
	}

	for _, tt := range tests {
		got := EstimateSizeKB(tt.inputs, tt.outputs)
		if got != tt.want {
			t.Errorf("EstimateSizeKB(%d, %d): got %d, want %d", tt.inputs, tt.outputs, got, tt.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount uint64
		want   string
	}{
		{100000000, "1.00000000 Bitcoin"},
		{1, "0.00000001 Bitcoin"},
		{0, "0.00000000 Bitcoin"},
		{123456789, "1.23456789 Bitcoin"},
	}

	for _, tt := range tests {
		got := BitcoinMainNet.FormatAmount(tt.amount)
		if got != tt.want {
			t.Errorf("FormatAmount(%d): got %q, want %q", tt.amount, got, tt.want)
		}
	}
}
