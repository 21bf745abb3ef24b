package utils

import "testing"

func TestConvertStrToInt(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    uint64
		wantErr bool
	}{
		{
			name: "hex with prefix",
			in:   "0x80004000",
			want: 0x80004000,
		},
		{
			name: "hex without prefix",
			in:   "8076a748",
			want: 0x8076a748,
		},
		{
			name: "decimal",
			in:   "1024",
			want: 1024,
		},
		{
			name:    "garbage",
			in:      "not-a-number",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertStrToInt(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ConvertStrToInt(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ConvertStrToInt(%q) = %#x, want %#x", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAddressRange(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantStart uint64
		wantEnd   uint64
		wantErr   bool
	}{
		{
			name:      "valid range",
			in:        "8076a748-8076bd44",
			wantStart: 0x8076a748,
			wantEnd:   0x8076bd44,
		},
		{
			name:    "missing separator",
			in:      "8076a748",
			wantErr: true,
		},
		{
			name:    "too many separators",
			in:      "80000000-80001000-80002000",
			wantErr: true,
		},
		{
			name:    "non hex",
			in:      "start-end",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := ParseAddressRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddressRange(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("ParseAddressRange(%q) = %#x, %#x, want %#x, %#x", tt.in, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
