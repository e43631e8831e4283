// Package debug provides run reports and profiling hooks for foldstack itself.
package debug

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultPprofAddr = "localhost:6060"
	shutdownTimeout  = 5 * time.Second
)

// PprofServer exposes the runtime profiles of a running collapse.
type PprofServer struct {
	server *http.Server
	addr   string
	logger *logrus.Logger
	done   chan struct{}
}

// StartPprofServer listens on addr and serves the pprof handlers on a private
// mux. The listener is bound before it returns, so a taken port is reported
// as an error.
func StartPprofServer(addr string, logger *logrus.Logger) (*PprofServer, error) {
	if addr == "" {
		addr = defaultPprofAddr
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen for pprof on %s", addr)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	p := &PprofServer{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		addr:   ln.Addr().String(),
		logger: logger,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("pprof server stopped")
		}
	}()

	logger.WithField("addr", p.addr).Info("Serving pprof")
	return p, nil
}

// Addr returns the address the server is bound to.
func (p *PprofServer) Addr() string {
	return p.addr
}

// Stop shuts the server down and waits for it to exit.
func (p *PprofServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.server.Shutdown(ctx); err != nil {
		p.logger.WithError(err).Warn("pprof server shutdown failed")
	}
	<-p.done
}
