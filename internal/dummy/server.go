package dummy

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type ServerConfig struct {
	Port   int
	Logger logrus.FieldLogger
}

// NewHandler returns the target endpoints. Every endpoint also answers on its
// subtree so randomized paths (/ok/abcde?q=...) hit the same behaviour.
//
//	/              200
//	/ok            200
//	/status/{code} the given status
//	/flaky         200 and 500 alternating, starting with 200
//	/drop          closes the connection without a response
//	/slow?d=1s     200 after the given delay
func NewHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handleTree(mux, "/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		raw := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/status/"), "/", 2)[0]
		code, err := strconv.Atoi(raw)
		if err != nil || code < 100 || code > 599 {
			http.Error(w, "invalid status code", http.StatusBadRequest)
			return
		}
		w.WriteHeader(code)
		w.Write([]byte(http.StatusText(code)))
	})

	var flaky atomic.Int64
	handleTree(mux, "/flaky", func(w http.ResponseWriter, r *http.Request) {
		if flaky.Add(1)%2 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 Internal Server Error"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handleTree(mux, "/drop", func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "hijacking not supported", http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		conn.Close()
	})

	handleTree(mux, "/slow", func(w http.ResponseWriter, r *http.Request) {
		delay := time.Second
		if d, err := time.ParseDuration(r.URL.Query().Get("d")); err == nil {
			delay = d
		}
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Slow response"))
	})

	return mux
}

func handleTree(mux *http.ServeMux, path string, h http.HandlerFunc) {
	mux.HandleFunc(path, h)
	mux.HandleFunc(path+"/", h)
}

// Start binds cfg.Port and serves NewHandler on it in the background.
// A port that cannot be bound is returned as an error.
func Start(cfg ServerConfig) (*http.Server, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("target server: %w", err)
	}

	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           NewHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.WithField("addr", server.Addr).Info("target server listening, endpoints: /ok /status/{code} /flaky /drop /slow")

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("target server failed")
		}
	}()

	return server, nil
}
