package mailer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/permitflow-api/pkg/config"
)

type relayTranscript struct {
	envelope []string
	data     string
}

// startRelay runs a minimal SMTP relay on loopback and reports each accepted message.
func startRelay(t *testing.T) (int, <-chan relayTranscript) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	got := make(chan relayTranscript, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveRelay(conn, got)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, got
}

func serveRelay(conn net.Conn, got chan<- relayTranscript) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(line string) { fmt.Fprintf(conn, "%s\r\n", line) }

	reply("220 relay.test ESMTP")
	var tr relayTranscript
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimSpace(line)
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250-relay.test")
			reply("250 HELP")
		case strings.HasPrefix(upper, "MAIL FROM"), strings.HasPrefix(upper, "RCPT TO"):
			tr.envelope = append(tr.envelope, cmd)
			reply("250 OK")
		case upper == "RSET", upper == "NOOP":
			reply("250 OK")
		case upper == "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var data strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				data.WriteString(l)
			}
			tr.data = data.String()
			got <- tr
			tr = relayTranscript{}
			reply("250 queued")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 command not implemented")
		}
	}
}

// startSilentRelay accepts connections and never sends a greeting.
func startSilentRelay(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestNewSelectsTransport(t *testing.T) {
	_, isLog := New(config.SMTPConfig{}, nil).(*LogSender)
	assert.True(t, isLog)

	sender, isSMTP := New(config.SMTPConfig{Enabled: true, Host: "mail", Port: 25, From: "a@b.c"}, zap.NewNop()).(*SMTPSender)
	require.True(t, isSMTP)
	assert.Equal(t, defaultSendTimeout, sender.timeout)
}

func TestSMTPSenderDeliversMessage(t *testing.T) {
	port, got := startRelay(t)
	sender := NewSMTPSender(config.SMTPConfig{
		Enabled: true, Host: "127.0.0.1", Port: port,
		From: "PermitFlow <no-reply@example.com>", Timeout: 5 * time.Second,
	}, nil)
	sender.now = func() time.Time { return time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC) }

	err := sender.Send(context.Background(), Message{To: "approver@example.com", Subject: "PTW Approval Request: PTW/RV/S1/2024-25/ABC123", HTML: "<p>hi</p>"})
	require.NoError(t, err)

	var tr relayTranscript
	select {
	case tr = <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("relay received no message")
	}
	require.Len(t, tr.envelope, 2)
	assert.True(t, strings.HasPrefix(tr.envelope[0], "MAIL FROM:<no-reply@example.com>"))
	assert.True(t, strings.HasPrefix(tr.envelope[1], "RCPT TO:<approver@example.com>"))
	assert.Contains(t, tr.data, "Subject: PTW Approval Request: PTW/RV/S1/2024-25/ABC123")
	assert.Contains(t, tr.data, "text/html")
	assert.Contains(t, tr.data, "<p>hi</p>")
}

func TestSMTPSenderGivesUpOnSilentRelay(t *testing.T) {
	port := startSilentRelay(t)

	sender := NewSMTPSender(config.SMTPConfig{Host: "127.0.0.1", Port: port, From: "no-reply@example.com", Timeout: 30 * time.Second}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sender.Send(ctx, Message{To: "x@example.com", Subject: "s", HTML: "<p>x</p>"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)

	sender = NewSMTPSender(config.SMTPConfig{Host: "127.0.0.1", Port: port, From: "no-reply@example.com", Timeout: 200 * time.Millisecond}, nil)
	start = time.Now()
	err = sender.Send(context.Background(), Message{To: "x@example.com", Subject: "s", HTML: "<p>x</p>"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSMTPSenderErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	sender := NewSMTPSender(config.SMTPConfig{Host: "127.0.0.1", Port: port, From: "no-reply@example.com", Timeout: time.Second}, nil)
	err = sender.Send(context.Background(), Message{To: "x@example.com", Subject: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp send to x@example.com")

	require.Error(t, sender.Send(context.Background(), Message{To: "not an address"}))

	bad := NewSMTPSender(config.SMTPConfig{Host: "127.0.0.1", Port: port, From: "nobody"}, nil)
	require.Error(t, bad.Send(context.Background(), Message{To: "x@example.com"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.True(t, errors.Is(sender.Send(ctx, Message{To: "x@example.com"}), context.Canceled))
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(nil)
	require.NoError(t, s.Send(context.Background(), Message{To: "a@b.c", Subject: "x"}))
	require.Error(t, s.Send(context.Background(), Message{}))
}
