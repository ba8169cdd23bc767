package relay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The relay exists to sit between a Redis-style client and its server in
// integration suites, so these tests drive a real go-redis client through it
// at a minimal RESP-speaking stub.

func startRESPBackend(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go serveRESP(c)
		}
	}()
	return ln.Addr().String()
}

func serveRESP(c net.Conn) {
	defer c.Close()
	rd := bufio.NewReader(c)
	for {
		args, err := readRESPCommand(rd)
		if err != nil {
			return
		}
		if len(args) == 0 {
			continue
		}
		switch strings.ToUpper(args[0]) {
		case "PING":
			_, _ = c.Write([]byte("+PONG\r\n"))
		case "HELLO":
			// pre-RESP3 server; go-redis falls back when protocol is 2
			_, _ = c.Write([]byte("-ERR unknown command 'HELLO'\r\n"))
		default:
			_, _ = c.Write([]byte("+OK\r\n"))
		}
	}
}

func readRESPCommand(rd *bufio.Reader) ([]string, error) {
	line, err := rd.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "*") {
		return strings.Fields(line), nil
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, fmt.Errorf("bad array header %q: %w", line, err)
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		hdr, err := rd.ReadString('\n')
		if err != nil {
			return nil, err
		}
		hdr = strings.TrimRight(hdr, "\r\n")
		if !strings.HasPrefix(hdr, "$") {
			return nil, fmt.Errorf("bad bulk header %q", hdr)
		}
		l, err := strconv.Atoi(hdr[1:])
		if err != nil {
			return nil, fmt.Errorf("bad bulk length %q: %w", hdr, err)
		}
		buf := make([]byte, l+2) // payload plus CRLF
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:l]))
	}
	return args, nil
}

func newRedisClient(t *testing.T, addr string, readTimeout time.Duration) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:             addr,
		Protocol:         2,
		DisableIndentity: true,
		PoolSize:         1,
		MaxRetries:       -1,
		DialTimeout:      2 * time.Second,
		ReadTimeout:      readTimeout,
		WriteTimeout:     2 * time.Second,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisClientThroughRelay(t *testing.T) {
	backendAddr := startRESPBackend(t)
	r, engine := startRelay(t, Config{ListenAddr: "127.0.0.1:0", BackendAddr: backendAddr, AdminAddr: "127.0.0.1:0"}, 0)
	ctx := context.Background()

	rdb := newRedisClient(t, r.Addr(), 2*time.Second)
	got, err := rdb.Ping(ctx).Result()
	require.NoError(t, err)
	require.Equal(t, "PONG", got)

	// slow the backend path down past the next client's read timeout
	adm := dial(t, r.AdminAddr())
	_, err = adm.Write([]byte("SETDELAY 400\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return engine.Get() == 400*time.Millisecond }, 2*time.Second, 5*time.Millisecond)

	impatient := newRedisClient(t, r.Addr(), 150*time.Millisecond)
	require.Error(t, impatient.Ping(ctx).Err())

	// a patient client still gets through, paying the delay on every reply
	patient := newRedisClient(t, r.Addr(), 5*time.Second)
	start := time.Now()
	got, err = patient.Ping(ctx).Result()
	require.NoError(t, err)
	require.Equal(t, "PONG", got)
	require.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)

	// back to full speed
	_, err = adm.Write([]byte("SETDELAY 0\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return engine.Get() == 0 }, 2*time.Second, 5*time.Millisecond)
	start = time.Now()
	require.NoError(t, patient.Ping(ctx).Err())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
