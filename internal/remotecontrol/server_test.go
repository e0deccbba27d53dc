package remotecontrol_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/oonf-go/godlep/internal/remotecontrol"
)

func TestServerRunsRegisteredCommandOverTCP(t *testing.T) {
	t.Parallel()

	r := remotecontrol.NewRegistry()
	r.Add(remotecontrol.Command{
		Name: "ping",
		Run: func(_ string, out io.Writer) (remotecontrol.Result, remotecontrol.StopFunc, error) {
			io.WriteString(out, "pong\n")
			return remotecontrol.ResultActive, nil, nil
		},
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	srv := remotecontrol.NewServer(addr, r, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, "ping\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply != "pong\n" {
		t.Errorf("reply = %q, want %q", reply, "pong\n")
	}
}
