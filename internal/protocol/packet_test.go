package protocol_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/loramesh/lorax/internal/protocol"
)

var (
	addrOnes = protocol.Address{1, 1, 1, 1, 1, 1}
	addrTwos = protocol.Address{2, 2, 2, 2, 2, 2}
)

func TestChecksumKnownValue(t *testing.T) {
	p := &protocol.Packet{
		Type:            protocol.TypeData,
		Source:          addrOnes,
		Destination:     addrTwos,
		SourcePort:      100,
		DestinationPort: 200,
	}

	// 1 + 6*1 + 6*2 + 100 + 200 + 17 = 336
	if got := protocol.Checksum(p); got != 336%256 {
		t.Fatalf("checksum = %d, want %d", got, 336%256)
	}
	if p.TotalLength != protocol.HeaderSize {
		t.Errorf("TotalLength = %d, want %d", p.TotalLength, protocol.HeaderSize)
	}
}

// TestBuildDecodeAllPayloadSizes builds a packet for every legal payload size
// and checks that it validates and decodes back to the same fields.
func TestBuildDecodeAllPayloadSizes(t *testing.T) {
	for n := 0; n <= protocol.MaxPayloadSize; n++ {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i * 7)
		}

		p, err := protocol.BuildPacket(protocol.TypeData, addrOnes, addrTwos, 3, 4, payload)
		if err != nil {
			t.Fatalf("size %d: BuildPacket: %v", n, err)
		}

		data := protocol.Encode(p)
		if len(data) != protocol.HeaderSize+n {
			t.Fatalf("size %d: encoded %d bytes", n, len(data))
		}

		got, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("size %d: Decode: %v", n, err)
		}
		if got.Source != addrOnes || got.Destination != addrTwos || got.SourcePort != 3 || got.DestinationPort != 4 {
			t.Fatalf("size %d: header mismatch: %+v", n, got)
		}
		if !bytes.Equal(got.Payload, payload) {
			t.Fatalf("size %d: payload mismatch", n)
		}
	}
}

func TestValidateDetectsSingleByteCorruption(t *testing.T) {
	p, err := protocol.BuildPacket(protocol.TypeData, addrOnes, addrTwos, 100, 200, []byte("hello radio"))
	if err != nil {
		t.Fatalf("BuildPacket: %v", err)
	}
	good := protocol.Encode(p)

	for i := range good {
		bad := append([]byte(nil), good...)
		bad[i] ^= 0xFF

		err := protocol.Validate(bad)
		if err == nil {
			t.Fatalf("byte %d flipped: Validate accepted corrupt packet", i)
		}
		if !errors.Is(err, protocol.ErrChecksumMismatch) &&
			!errors.Is(err, protocol.ErrLengthMismatch) &&
			!errors.Is(err, protocol.ErrUnknownType) {
			t.Errorf("byte %d flipped: unexpected error %v", i, err)
		}
	}
}

func TestValidateReasons(t *testing.T) {
	valid := func() []byte {
		p, _ := protocol.BuildPacket(protocol.TypeBroadcast, addrOnes, protocol.BroadcastAddress, 0, 0, []byte{3})
		return protocol.Encode(p)
	}

	testCases := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{
			name:   "valid",
			mutate: func(b []byte) []byte { return b },
			want:   nil,
		},
		{
			name:   "shorter than header",
			mutate: func(b []byte) []byte { return b[:protocol.HeaderSize-1] },
			want:   protocol.ErrTooShort,
		},
		{
			name:   "type 0x07",
			mutate: func(b []byte) []byte { b[0] = 0x07; return b },
			want:   protocol.ErrUnknownType,
		},
		{
			name:   "type unknown (0)",
			mutate: func(b []byte) []byte { b[0] = protocol.TypeUnknown; return b },
			want:   protocol.ErrUnknownType,
		},
		{
			name:   "trailing byte",
			mutate: func(b []byte) []byte { return append(b, 0) },
			want:   protocol.ErrLengthMismatch,
		},
		{
			name:   "checksum off by one",
			mutate: func(b []byte) []byte { b[16]++; return b },
			want:   protocol.ErrChecksumMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := protocol.Validate(tc.mutate(valid()))
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	if _, err := protocol.Decode([]byte{0x07}); !errors.Is(err, protocol.ErrTooShort) {
		t.Fatalf("got %v, want ErrTooShort", err)
	}
}

func TestBuildPacketPayloadTooLarge(t *testing.T) {
	_, err := protocol.BuildPacket(protocol.TypeData, addrOnes, addrTwos, 1, 1, make([]byte, protocol.MaxPayloadSize+1))
	if !errors.Is(err, protocol.ErrPayloadTooLarge) {
		t.Fatalf("got %v, want ErrPayloadTooLarge", err)
	}
}

func TestPacketFlipKeepsChecksumValid(t *testing.T) {
	p, _ := protocol.BuildPacket(protocol.TypeData, addrOnes, addrTwos, 10, 20, []byte("x"))
	p.Flip()
	p.Type = protocol.TypeErrorServer
	protocol.Checksum(p)

	if p.Source != addrTwos || p.Destination != addrOnes || p.SourcePort != 20 || p.DestinationPort != 10 {
		t.Fatalf("flip mismatch: %+v", p)
	}
	if err := protocol.Validate(protocol.Encode(p)); err != nil {
		t.Fatalf("Validate after flip: %v", err)
	}
}

func TestParseAddress(t *testing.T) {
	testCases := []struct {
		in      string
		want    protocol.Address
		wantErr bool
	}{
		{in: "aabbccddeeff", want: protocol.Address{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}},
		{in: "AA:BB:CC:DD:EE:01", want: protocol.Address{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}},
		{in: "01-02-03-04-05-06", want: protocol.Address{1, 2, 3, 4, 5, 6}},
		{in: "aabbccddee", wantErr: true},
		{in: "zzbbccddeeff", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := protocol.ParseAddress(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			if back, _ := protocol.ParseAddress(got.String()); back != got {
				t.Fatalf("String() did not parse back: %s", got)
			}
		})
	}
}
