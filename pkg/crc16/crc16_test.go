package crc16

import "testing"

func TestCrc16(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "empty buffer",
			data: nil,
			want: 0,
		},
		{
			name: "all zeros",
			data: []byte{0x00, 0x00, 0x00, 0x00},
			want: 0,
		},
		{
			name: "single byte is a table lookup",
			data: []byte{0x05},
			want: 0x50A5,
		},
		{
			name: "single byte 0xFF",
			data: []byte{0xFF},
			want: 0x1EF0,
		},
		{
			name: "two bytes",
			data: []byte{0x05, 0x00},
			want: 0xFFF5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Crc16(tt.data); got != tt.want {
				t.Errorf("Crc16(% X) = 0x%04X, want 0x%04X", tt.data, got, tt.want)
			}
		})
	}
}

// A buffer with its own big-endian CRC appended must checksum to zero;
// every CRC-framed response in the protocol relies on this.
func TestCrc16SelfChecking(t *testing.T) {
	payloads := [][]byte{
		{0x2D, 0x1E, 0x0C, 0x01, 0x06, 0x7C},
		{0xDE, 0xAD, 0xBE, 0xEF},
		{0x00},
		{0x4C, 0x4F, 0x4F, 0x00, 0x00},
	}

	for _, payload := range payloads {
		crc := Crc16(payload)
		framed := append(append([]byte{}, payload...), byte(crc>>8), byte(crc))
		if got := Crc16(framed); got != 0 {
			t.Errorf("Crc16(% X with CRC appended) = 0x%04X, want 0", payload, got)
		}
	}
}
