package storage

import (
	"encoding/json"
	"errors"
	"net"
	"time"
)

// Client implements Area over a Unix socket served by Serve.
type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 500 * time.Millisecond}
}

func (c *Client) withConn(fn func(conn net.Conn) error) error {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

func (c *Client) roundTrip(req Request) (Response, error) {
	var resp Response
	err := c.withConn(func(conn net.Conn) error {
		if err := json.NewEncoder(conn).Encode(&req); err != nil {
			return err
		}
		if err := json.NewDecoder(conn).Decode(&resp); err != nil {
			return err
		}
		if !resp.OK {
			return remoteError(resp.Error)
		}
		return nil
	})
	return resp, err
}

// Available reports whether the daemon answers a ping.
func (c *Client) Available() bool {
	_, err := c.roundTrip(Request{Op: "ping"})
	return err == nil
}

func (c *Client) GetItem(key string) (string, bool, error) {
	resp, err := c.roundTrip(Request{Op: "get", Key: key})
	if err != nil {
		return "", false, err
	}
	return resp.Value, resp.Found, nil
}

func (c *Client) SetItem(key, value string) error {
	_, err := c.roundTrip(Request{Op: "set", Key: key, Value: value})
	return err
}

func (c *Client) RemoveItem(key string) error {
	_, err := c.roundTrip(Request{Op: "remove", Key: key})
	return err
}

// remoteError maps daemon error strings back onto the package sentinels.
func remoteError(msg string) error {
	switch msg {
	case ErrQuotaExceeded.Error():
		return ErrQuotaExceeded
	case ErrClosed.Error():
		return ErrClosed
	}
	return errors.New(msg)
}
