package encoding

import "testing"

func TestDecodeString(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"ascii", []byte("data/model/tree.rsm"), "data/model/tree.rsm"},
		{"hangul", []byte{0xc7, 0xd1, 0xb1, 0xdb}, "한글"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeString(tt.in); got != tt.want {
				t.Errorf("DecodeString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeName(t *testing.T) {
	field := make([]byte, 40)
	copy(field, []byte{'n', '_', 0xc7, 0xd1})
	if got := DecodeName(field); got != "n_한" {
		t.Errorf("DecodeName() = %q", got)
	}
}

func TestEncodeNameRoundTrip(t *testing.T) {
	for _, s := range []string{"texture\\유저인터페이스\\a.bmp", "plain"} {
		if got := DecodeString(EncodeName(s)); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	if got := NormalizePath(`\Data\Model\Tree.RSM`); got != "data/model/tree.rsm" {
		t.Errorf("NormalizePath() = %q", got)
	}
}
