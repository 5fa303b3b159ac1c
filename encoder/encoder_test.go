package encoder

import "testing"

func TestFrameFloorSemantics(t *testing.T) {
	for _, tt := range []struct {
		in   float32
		want int16
	}{
		{1.0, 32767},
		{-1.0, -32767},
		{0.0, 0},
		{0.5, 16383},  // floor(16383.5)
		{-0.5, -16384}, // floor(-16383.5)
	} {
		got := Frame([]float32{tt.in})
		if got[0] != tt.want {
			t.Errorf("Frame(%v) = %d, want %d", tt.in, got[0], tt.want)
		}
	}
}

func TestFrameDeterministic(t *testing.T) {
	window := []float32{0.1, -0.2, 0.3, -0.99, 0.999}
	a := Frame(window)
	b := Frame(window)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs across calls: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestBytesRoundTrip(t *testing.T) {
	frame := []int16{0, 1, -1, 32767, -32768, 12345, -12345}
	got := Samples(Bytes(frame))
	if len(got) != len(frame) {
		t.Fatalf("got %d samples, want %d", len(got), len(frame))
	}
	for i := range frame {
		if got[i] != frame[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], frame[i])
		}
	}
}

func TestBytesLittleEndian(t *testing.T) {
	b := Bytes([]int16{0x0102})
	if b[0] != 0x02 || b[1] != 0x01 {
		t.Errorf("got % x, want 02 01", b)
	}
}
