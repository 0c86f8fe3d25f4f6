package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// tcpapiclient sends one message per stdin line and prints whatever the
// server writes back. Lines that are not JSON are treated as a url.
func main() {
	addr := flag.String("addr", "localhost:3005", "server address")
	chunk := flag.Int("chunk", 0, "split each message into writes of this many bytes (0 = whole)")
	wait := flag.Duration("wait", time.Second, "how long to keep reading replies after stdin ends")
	flag.Parse()

	if err := run(*addr, *chunk, *wait, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "tcpapiclient: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, chunk int, wait time.Duration, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	replies := make(chan error, 1)
	go func() {
		_, err := io.Copy(out, conn)
		replies <- err
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		msg, ok := buildMessage(scanner.Text())
		if !ok {
			continue
		}
		for _, part := range split(msg, chunk) {
			if _, err := conn.Write(part); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	_ = conn.SetReadDeadline(time.Now().Add(wait))
	err = <-replies
	var netErr net.Error
	if err == nil || errors.As(err, &netErr) && netErr.Timeout() {
		return nil
	}
	return err
}

// buildMessage turns one input line into a wire message. JSON lines are sent
// as-is; anything else is wrapped as {"url": line}.
func buildMessage(line string) ([]byte, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, false
	}
	if gjson.Valid(line) {
		return []byte(line), true
	}
	msg, err := json.Marshal(map[string]string{"url": line})
	if err != nil {
		return nil, false
	}
	return msg, true
}

func split(msg []byte, n int) [][]byte {
	if n <= 0 || n >= len(msg) {
		return [][]byte{msg}
	}
	parts := make([][]byte, 0, len(msg)/n+1)
	for len(msg) > n {
		parts = append(parts, msg[:n])
		msg = msg[n:]
	}
	return append(parts, msg)
}
