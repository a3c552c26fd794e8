// Package snapgene talks to the local sequence-map server and orchestrates
// map processing: feature detection, preview rendering, and format
// conversion, with bounded retries and operator alerts on exhaustion.
package snapgene

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// ErrNoServer means no candidate port accepted a connection. This is a
// configuration failure and is never retried.
var ErrNoServer = errors.New("no reachable sequence-map server port")

// Request is the JSON payload of one RPC. The "request" key names the
// operation; remaining keys are its arguments.
type Request map[string]any

// NewRequest starts a request for the named server operation.
func NewRequest(command string) Request {
	return Request{"request": command}
}

// Command returns the operation name of the request.
func (r Request) Command() string {
	cmd, _ := r["request"].(string)
	return cmd
}

// Feature is one detected sequence feature.
type Feature struct {
	Name string `json:"name"`
}

// Response is the server's answer. A code greater than zero is a failure.
type Response struct {
	Code         int       `json:"code"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Features     []Feature `json:"features,omitempty"`
}

// Err converts a failure response into an error.
func (r Response) Err() error {
	if r.Code > 0 {
		msg := r.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("server error code %d", r.Code)
		}
		return fmt.Errorf("sequence-map server: %s", msg)
	}
	return nil
}

// Caller issues one RPC against the sequence-map server.
type Caller interface {
	Call(ctx context.Context, req Request, timeout time.Duration) (Response, error)
}

// Client reaches the server over TCP with a fresh connection per call. The
// first candidate port that accepts a connection wins.
type Client struct {
	Host        string
	Ports       []string
	DialTimeout time.Duration
}

// NewClientFromEnv builds a client from environment variables:
//
//	COLLECTIONCORE_SNAPGENE_HOST: server host (default 127.0.0.1)
//	COLLECTIONCORE_SNAPGENE_PORTS: comma-separated candidate ports
//	                               (default 50001,50002)
func NewClientFromEnv() *Client {
	host := os.Getenv("COLLECTIONCORE_SNAPGENE_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	portList := os.Getenv("COLLECTIONCORE_SNAPGENE_PORTS")
	if portList == "" {
		portList = "50001,50002"
	}
	var ports []string
	for _, p := range strings.Split(portList, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ports = append(ports, p)
		}
	}
	return &Client{Host: host, Ports: ports, DialTimeout: 2 * time.Second}
}

func (c *Client) dial() (net.Conn, error) {
	for _, port := range c.Ports {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(c.Host, port), c.DialTimeout)
		if err == nil {
			return conn, nil
		}
	}
	return nil, ErrNoServer
}

// Call connects, sends the request, and reads one response. The connection
// is closed on every path.
func (c *Client) Call(ctx context.Context, req Request, timeout time.Duration) (Response, error) {
	conn, err := c.dial()
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send %s: %w", req.Command(), err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read %s response: %w", req.Command(), err)
	}
	return resp, nil
}
