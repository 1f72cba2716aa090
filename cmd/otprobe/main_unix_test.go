//go:build unix

package main

import (
	"bytes"
	"syscall"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInterrupt(t *testing.T) {
	loggedIn := make(chan struct{})
	url := newGateway(t, func(conn *gws.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		close(loggedIn)
		drain(conn) // the default close handler echoes our close frame
	})
	setEnv(t, url)

	go func() {
		select {
		case <-loggedIn:
			_ = syscall.Kill(syscall.Getpid(), syscall.SIGINT)
		case <-time.After(5 * time.Second):
		}
	}()

	var stdout, stderr bytes.Buffer

	require.Equal(t, 0, run(&stdout, &stderr), stderr.String())
	assert.Equal(t, "Opened up\nClosed down 1000 \n", stdout.String())
	assert.Contains(t, stderr.String(), "Interrupted")
}
