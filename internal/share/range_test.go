package share

import "testing"

func TestParseRange(t *testing.T) {
	const size = 1000

	tests := []struct {
		name      string
		header    string
		wantNil   bool
		wantErr   error
		wantStart int64
		wantEnd   int64
	}{
		{"no header", "", true, nil, 0, 0},
		{"full range", "bytes=0-999", false, nil, 0, 999},
		{"open ended", "bytes=500-", false, nil, 500, 999},
		{"suffix", "bytes=-200", false, nil, 800, 999},
		{"suffix larger than file", "bytes=-5000", false, nil, 0, 999},
		{"end clamped", "bytes=0-99999", false, nil, 0, 999},
		{"multi collapses to first", "bytes=0-99,200-299", false, nil, 0, 99},
		{"start past size", "bytes=1000-", false, ErrUnsatisfiable, 0, 0},
		{"inverted", "bytes=500-100", false, ErrUnsatisfiable, 0, 0},
		{"no unit", "0-100", false, ErrInvalidRange, 0, 0},
		{"garbage", "bytes=abc-def", false, ErrInvalidRange, 0, 0},
		{"negative start", "bytes=-0", false, ErrInvalidRange, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header, size)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("ParseRange() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange() error = %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ParseRange() = %+v, want nil", got)
				}
				return
			}
			if got.Start != tt.wantStart || got.End != tt.wantEnd {
				t.Errorf("ParseRange() = [%d, %d], want [%d, %d]", got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestByteRangeHelpers(t *testing.T) {
	r := ByteRange{Start: 100, End: 199}
	if r.Length() != 100 {
		t.Errorf("Length() = %d, want 100", r.Length())
	}
	if got := r.ContentRange(1000); got != "bytes 100-199/1000" {
		t.Errorf("ContentRange() = %q", got)
	}
}
