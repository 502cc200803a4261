// Package ipc is the local control channel: a unix socket speaking one JSON
// message per connection, used by aura-ctl to poke the daemon.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"
)

// DefaultSocketPath is where the daemon listens unless configured otherwise.
const DefaultSocketPath = "/tmp/aura.sock"

// ControlMessage is one control request.
type ControlMessage struct {
	Cmd string `json:"cmd"`
	Arg string `json:"arg,omitempty"`
}

// Response is the daemon's answer.
type Response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Handler turns a control message into a response.
type Handler func(ControlMessage) Response

// StartServer listens on path and dispatches each connection's message to
// handler. A stale socket file from a crashed daemon is removed first.
func StartServer(path string, handler Handler) (net.Listener, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handleConn(conn, handler)
		}
	}()

	return ln, nil
}

func handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}
	resp := handler(msg)
	json.NewEncoder(conn).Encode(resp)
}

// Send delivers one control message to a running daemon and returns its
// response.
func Send(path string, msg ControlMessage) (Response, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	conn, err := net.Dial("unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
