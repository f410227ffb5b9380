package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// conn wraps a TCP connection to groved, speaking the same 4-byte
// length-prefixed framing internal/dispatch.Server implements, and
// unwrapping the 1-byte status envelope (0 = ok, 1 = error) that
// internal/dispatch.Router.Handle produces.
type conn struct {
	nc net.Conn
}

func dial(addr string) (*conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &conn{nc: nc}, nil
}

func (c *conn) Close() error { return c.nc.Close() }

// call sends action || body as one request frame and returns the response
// payload with its status envelope stripped, or an error if the server
// reported a failure.
func (c *conn) call(action byte, body []byte) ([]byte, error) {
	req := make([]byte, 0, 1+len(body))
	req = append(req, action)
	req = append(req, body...)

	if err := writeFrame(c.nc, req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	resp, err := readFrame(c.nc)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(resp) < 1 {
		return nil, errors.New("empty response envelope")
	}
	status, payload := resp[0], resp[1:]
	if status != 0 {
		return nil, errors.New("server reported an error")
	}
	return payload, nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func writeFrame(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
