package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	// maxRequestBytes bounds one request line; real requests are a few dozen bytes.
	maxRequestBytes = 4 << 10
	readTimeout     = 2 * time.Second
	writeTimeout    = 2 * time.Second
)

// Handler executes one owner command.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers owner commands on listener until ctx is cancelled or the
// listener closes. Each connection carries exactly one request and one reply.
// In-flight connections finish before Serve returns.
func Serve(ctx context.Context, listener net.Listener, handler Handler, logger *slog.Logger) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept owner connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			serveConn(ctx, conn, handler, logger)
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler, logger *slog.Logger) {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	req, err := readRequest(conn)

	var resp Response
	switch {
	case err != nil:
		resp = Response{Error: err.Error()}
	case !Known(req.Command):
		resp = Response{Error: fmt.Sprintf("unknown command %q", req.Command)}
	default:
		resp = dispatch(ctx, handler, req, logger)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := json.NewEncoder(conn).Encode(resp); err != nil && logger != nil {
		logger.Debug("write owner reply failed", "command", req.Command, "error", err.Error())
	}
}

func readRequest(conn net.Conn) (Request, error) {
	reader := bufio.NewReader(io.LimitReader(conn, maxRequestBytes))
	line, err := reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) == maxRequestBytes {
			return Request{}, fmt.Errorf("read request: exceeds %d bytes", maxRequestBytes)
		}
		return Request{}, fmt.Errorf("read request: %w", err)
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// dispatch runs the handler under the command's deadline. A panicking handler
// yields an error reply instead of taking the owner down.
func dispatch(ctx context.Context, handler Handler, req Request, logger *slog.Logger) (resp Response) {
	ctx, cancel := context.WithTimeout(ctx, Timeout(req.Command))
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("owner command panicked", "command", req.Command, "panic", fmt.Sprint(r))
			}
			resp = Response{Error: fmt.Sprintf("%s: internal error", req.Command)}
		}
	}()
	return handler.Handle(ctx, req)
}
