// Package control answers one-byte status queries about the relay on a unix
// datagram socket.
package control

import (
	"errors"
	"fmt"

	"github.com/loramesh/lorax/internal/neighbor"
	"github.com/loramesh/lorax/internal/protocol"
)

// Request codes.
const (
	RequestGetNeighbors byte = 1
	RequestGetMyAddress byte = 2
)

// Response status codes.
const (
	ResponseOK    byte = 0
	ResponseError byte = 255
)

// Response parsing failures.
var (
	ErrRejected  = errors.New("relay rejected request")
	ErrMalformed = errors.New("malformed response")
)

// Answer builds the response to req from snap.
func Answer(req []byte, snap *neighbor.Snapshot) []byte {
	if len(req) != 1 || snap == nil {
		return []byte{ResponseError}
	}

	switch req[0] {
	case RequestGetNeighbors:
		addrs := snap.Addresses()
		if len(addrs) > 255 {
			addrs = addrs[:255]
		}
		resp := make([]byte, 0, 3+len(addrs)*protocol.AddressSize)
		resp = append(resp, ResponseOK, RequestGetNeighbors, byte(len(addrs)))
		for _, a := range addrs {
			resp = append(resp, a[:]...)
		}
		return resp

	case RequestGetMyAddress:
		resp := []byte{ResponseOK, RequestGetMyAddress}
		return append(resp, snap.Self[:]...)
	}
	return []byte{ResponseError}
}

// checkHeader validates the status and echoed request code.
func checkHeader(resp []byte, req byte) error {
	if len(resp) >= 1 && resp[0] == ResponseError {
		return ErrRejected
	}
	if len(resp) < 2 || resp[0] != ResponseOK || resp[1] != req {
		return fmt.Errorf("%w: % x", ErrMalformed, resp)
	}
	return nil
}

// ParseNeighbors decodes a GET_NEIGHBORS response.
func ParseNeighbors(resp []byte) ([]protocol.Address, error) {
	if err := checkHeader(resp, RequestGetNeighbors); err != nil {
		return nil, err
	}
	if len(resp) < 3 {
		return nil, fmt.Errorf("%w: missing count", ErrMalformed)
	}
	n := int(resp[2])
	body := resp[3:]
	if len(body) != n*protocol.AddressSize {
		return nil, fmt.Errorf("%w: %d neighbors in %d bytes", ErrMalformed, n, len(body))
	}
	out := make([]protocol.Address, n)
	for i := range out {
		copy(out[i][:], body[i*protocol.AddressSize:])
	}
	return out, nil
}

// ParseMyAddress decodes a GET_MY_ADDRESS response.
func ParseMyAddress(resp []byte) (protocol.Address, error) {
	var a protocol.Address
	if err := checkHeader(resp, RequestGetMyAddress); err != nil {
		return a, err
	}
	if len(resp) != 2+protocol.AddressSize {
		return a, fmt.Errorf("%w: %d bytes", ErrMalformed, len(resp))
	}
	copy(a[:], resp[2:])
	return a, nil
}
