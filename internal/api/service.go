package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/tcpmond/internal/netmon"
	"github.com/dmdmdm-nz/tcpmond/internal/tcpmon"
)

// Service is the diagnostic HTTP surface: it lists the stack's devices,
// connections and sockets, and streams socket state transitions over a
// websocket.
type Service struct {
	address string
	port    int

	stack   *tcpmon.Stack
	devices *netmon.Service
}

func NewService(host string, port int, stack *tcpmon.Stack, devices *netmon.Service) *Service {
	return &Service{
		address: host,
		port:    port,
		stack:   stack,
		devices: devices,
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Infof("Starting tcpmond API service at %s:%d", s.address, s.port)
	defer log.Info("Stopping tcpmond API service")

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.address, s.port),
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed || ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Service) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/devices", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.deviceInfos())
	})
	mux.HandleFunc("/conns", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.connInfos())
	})
	mux.HandleFunc("/sockets", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.socketInfos())
	})
	mux.HandleFunc("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		StreamStateEvents(s, w, r)
	})
	return mux
}

func (s *Service) Close() error { return nil }

func (s *Service) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Service) deviceInfos() []DeviceInfo {
	devs := s.devices.Devices()
	out := make([]DeviceInfo, 0, len(devs))
	for _, dev := range devs {
		out = append(out, DeviceInfo{Name: dev.Name, Index: dev.Index})
	}
	return out
}

func (s *Service) connInfos() []ConnInfo {
	conns := s.stack.Conns()
	out := make([]ConnInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, ConnInfo{
			Device:    c.Device().Name,
			State:     c.State().String(),
			Observers: c.ObserverCount(),
		})
	}
	return out
}

func (s *Service) socketInfos() []SocketInfo {
	socks := s.stack.Sockets()
	out := make([]SocketInfo, 0, len(socks))
	for _, sock := range socks {
		flags := sock.Flags()
		info := SocketInfo{
			ID:        sock.ID.String(),
			Device:    sock.Conn().Device().Name,
			State:     sock.Conn().State().String(),
			Flags:     flags.String(),
			Connected: flags.Has(tcpmon.SockConnected),
			Closed:    flags.Has(tcpmon.SockClosed),
		}
		if err := sock.Err(); err != nil {
			info.LastError = err.Error()
		}
		out = append(out, info)
	}
	return out
}
