package snapgene

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"
)

func startStubServer(t *testing.T, resp Response) (port string, received chan Request) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	received = make(chan Request, 8)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer func() { _ = c.Close() }()
				var req Request
				if err := json.NewDecoder(c).Decode(&req); err != nil {
					return
				}
				received <- req
				_ = json.NewEncoder(c).Encode(resp)
			}(conn)
		}
	}()

	_, port, err = net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	return port, received
}

func TestClientUsesFirstReachablePort(t *testing.T) {
	port, received := startStubServer(t, Response{Code: 0})
	client := &Client{
		Host:        "127.0.0.1",
		Ports:       []string{"1", port}, // first port never accepts
		DialTimeout: 200 * time.Millisecond,
	}

	req := NewRequest("reportFeatures")
	req["inputFile"] = "p1.dna"
	resp, err := client.Call(context.Background(), req, time.Second)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if resp.Code != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	got := <-received
	if got.Command() != "reportFeatures" || got["inputFile"] != "p1.dna" {
		t.Fatalf("server saw %+v", got)
	}
}

func TestClientReportsNoServer(t *testing.T) {
	client := &Client{Host: "127.0.0.1", Ports: []string{"1"}, DialTimeout: 100 * time.Millisecond}
	_, err := client.Call(context.Background(), NewRequest("reportFeatures"), time.Second)
	if !errors.Is(err, ErrNoServer) {
		t.Fatalf("expected ErrNoServer, got %v", err)
	}
}

func TestClientSurfacesFailureCodes(t *testing.T) {
	port, _ := startStubServer(t, Response{Code: 9, ErrorMessage: "corrupt file"})
	client := &Client{Host: "127.0.0.1", Ports: []string{port}, DialTimeout: 200 * time.Millisecond}

	resp, err := client.Call(context.Background(), NewRequest("generatePNGMap"), time.Second)
	if err != nil {
		t.Fatalf("transport error: %v", err)
	}
	if resp.Err() == nil {
		t.Fatalf("failure code not surfaced")
	}
}
