package phone

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		cc   string
		want string
	}{
		{name: "already e164", raw: "+447700900123", want: "+447700900123"},
		{name: "uk national", raw: "07700 900123", want: "+447700900123"},
		{name: "double zero", raw: "00447700900123", want: "+447700900123"},
		{name: "trunk after cc", raw: "+44 (0)7700 900123", want: "+447700900123"},
		{name: "cc without plus", raw: "447700900123", want: "+447700900123"},
		{name: "bare nsn", raw: "7700900123", want: "+447700900123"},
		{name: "other country", raw: "+1 (415) 555-0100", want: "+14155550100"},
		{name: "custom cc", raw: "0612345678", cc: "+33", want: "+33612345678"},
		{name: "too short", raw: "12345", want: ""},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw, tt.cc); got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.raw, tt.cc, got, tt.want)
			}
		})
	}
}
