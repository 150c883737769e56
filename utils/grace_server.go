package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	DEFAULT_READ_HEADER_TIMEOUT = 10 * time.Second
	DEFAULT_IDLE_TIMEOUT        = 120 * time.Second
	DEFAULT_SHUTDOWN_TIMEOUT    = 30 * time.Second
	GRACEFUL_ENVIRON_KEY        = "IS_GRACEFUL"
	GRACEFUL_ENVIRON_VALUE      = GRACEFUL_ENVIRON_KEY + "=1"
	GRACEFUL_LISTENER_FD        = 3
)

// Server wraps http.Server with signal driven graceful shutdown and
// SIGUSR2 restarts that hand the listening socket to a new process.
type Server struct {
	*http.Server

	log          *zap.Logger
	listener     net.Listener
	isGraceful   bool
	signalChan   chan os.Signal
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// NewServer creates a Server for handler. Only the request headers are bounded
// by readHeaderTimeout; bodies and responses have no deadline so large uploads
// and downloads on slow links are not cut off.
func NewServer(addr string, handler http.Handler, log *zap.Logger, readHeaderTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       DEFAULT_IDLE_TIMEOUT,
		},
		log:          log,
		isGraceful:   os.Getenv(GRACEFUL_ENVIRON_KEY) != "",
		signalChan:   make(chan os.Signal, 1),
		shutdownChan: make(chan struct{}),
	}
}

// ListenAndServe binds the configured address (or inherits the parent's
// socket after a graceful restart) and serves until shut down.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := srv.getNetListener(addr)
	if err != nil {
		return err
	}
	return srv.Serve(ln)
}

// Serve serves on ln and handles signals. It returns nil after a graceful shutdown.
func (srv *Server) Serve(ln net.Listener) error {
	srv.listener = ln
	go srv.handleSignals()
	defer signal.Stop(srv.signalChan)

	err := srv.Server.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// Wait until Shutdown finished
	<-srv.shutdownChan
	return nil
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (srv *Server) Stop() {
	srv.shutdownOnce.Do(srv.shutdownHTTPServer)
}

func (srv *Server) getNetListener(addr string) (net.Listener, error) {
	if srv.isGraceful {
		file := os.NewFile(GRACEFUL_LISTENER_FD, "")
		ln, err := net.FileListener(file)
		if err != nil {
			return nil, fmt.Errorf("net.FileListener error: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.Listen error: %w", err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	signal.Notify(srv.signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)

	for {
		select {
		case <-srv.shutdownChan:
			return
		case sig := <-srv.signalChan:
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				srv.log.Info("graceful shutting down HTTP server", zap.String("signal", sig.String()))
				srv.Stop()
				return
			case syscall.SIGUSR2:
				srv.log.Info("received SIGUSR2, graceful restarting HTTP server")
				pid, err := srv.startNewProcess()
				if err != nil {
					srv.log.Error("start new process failed, continue serving", zap.Error(err))
					continue
				}
				srv.log.Info("new process started, closing old HTTP server", zap.Uintptr("pid", pid))
				srv.Stop()
				return
			}
		}
	}
}

func (srv *Server) shutdownHTTPServer() {
	ctx, cancel := context.WithTimeout(context.Background(), DEFAULT_SHUTDOWN_TIMEOUT)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		srv.log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		srv.log.Info("HTTP server shutdown success")
	}
	close(srv.shutdownChan)
}

// startNewProcess re-executes the binary, passing the listener as fd 3.
func (srv *Server) startNewProcess() (uintptr, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener is not *net.TCPListener")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("get listener file: %w", err)
	}
	defer file.Close()

	envs := []string{}
	for _, e := range os.Environ() {
		if e != GRACEFUL_ENVIRON_VALUE {
			envs = append(envs, e)
		}
	}
	envs = append(envs, GRACEFUL_ENVIRON_VALUE)

	attr := &syscall.ProcAttr{
		Env:   envs,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	}
	pid, err := syscall.ForkExec(os.Args[0], os.Args, attr)
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return uintptr(pid), nil
}

// GraceServer starts an HTTP server with graceful capabilities.
func GraceServer(addr string, handler http.Handler, log *zap.Logger) error {
	return NewServer(addr, handler, log, DEFAULT_READ_HEADER_TIMEOUT).ListenAndServe()
}
