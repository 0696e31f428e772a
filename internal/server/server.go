// Package server implements the onnx2c serve daemon (SPEC_FULL.md §4.3):
// a thin HTTP+gRPC front end over the same internal/pipeline the CLI's
// compile subcommand calls directly. It is an ambient deployment
// convenience; internal/ir/internal/emit have no dependency on it.
package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/onnx2c/onnx2c/internal/config"
	"github.com/onnx2c/onnx2c/internal/ir"
	"github.com/onnx2c/onnx2c/internal/pipeline"
)

// Server holds the state shared by every request handler.
type Server struct {
	log         zerolog.Logger
	broadcaster *DiagnosticsBroadcaster
	health      *health.Server
}

// New constructs a Server ready to have its HTTP/gRPC surfaces registered.
func New(log zerolog.Logger) *Server {
	return &Server{
		log:         log,
		broadcaster: NewDiagnosticsBroadcaster(log),
		health:      health.NewServer(),
	}
}

// RegisterGRPC registers the standard grpc.health.v1.Health service, the
// same health surface the teacher's Router/Worker poll between each other
// over, here reporting the daemon's own readiness.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, s.health)
}

// RegisterHTTP wires /compile, /healthz, and /ws onto mux.
func (s *Server) RegisterHTTP(mux *http.ServeMux) {
	mux.HandleFunc("/compile", s.handleCompile)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/ws", s.broadcaster.HandleWS)
}

// handleCompile runs the pipeline over the request body and writes either
// the generated C translation unit or a structured JSON error.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	log := s.log.With().Str("request_id", reqID).Logger()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, reqID, "reading request body", err)
		return
	}

	cfg := config.Defaults()
	cfg.Quantize = r.URL.Query().Get("quantize") == "true"
	cfg.TargetAVR = r.URL.Query().Get("avr") == "true"

	s.broadcaster.Broadcast(CompileEvent{RequestID: reqID, Stage: "start", Message: "compile requested"})
	log.Info().Msg("compile requested")

	out, err := pipeline.Compile(data, cfg, func(format string, args ...interface{}) {
		s.broadcaster.Broadcast(CompileEvent{RequestID: reqID, Stage: "warn", Message: format})
	})
	if err != nil {
		kind, _ := ir.KindOf(err)
		s.broadcaster.Broadcast(CompileEvent{RequestID: reqID, Stage: "error", Message: err.Error()})
		log.Error().Err(err).Str("kind", kind.String()).Msg("compile failed")
		writeJSONError(w, http.StatusUnprocessableEntity, reqID, kind.String(), err)
		return
	}

	s.broadcaster.Broadcast(CompileEvent{RequestID: reqID, Stage: "done", Message: "compile succeeded"})
	log.Info().Int("bytes", len(out)).Msg("compile succeeded")

	w.Header().Set("Content-Type", "text/x-csrc")
	w.Write(out)
}

func writeJSONError(w http.ResponseWriter, status int, reqID, kind string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"request_id":"` + reqID + `","kind":"` + kind + `","error":"` + jsonEscape(err.Error()) + `"}`))
}

func jsonEscape(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch r {
		case '"', '\\':
			out = append(out, '\\', byte(r))
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, string(r)...)
		}
	}
	return string(out)
}

// Watch polls path's mtime every interval; on change it recompiles with
// cfg and broadcasts the result. It runs until ctx is cancelled — the
// daemon's only consumer of "is this still the same compile," so no
// caching layer beyond the mtime check is introduced.
func (s *Server) Watch(ctx context.Context, path string, cfg config.Config, interval time.Duration) {
	var lastMod time.Time
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				s.log.Warn().Err(err).Str("path", path).Msg("watch: stat failed")
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()

			data, err := os.ReadFile(path)
			if err != nil {
				s.log.Warn().Err(err).Str("path", path).Msg("watch: read failed")
				continue
			}
			reqID := uuid.NewString()
			out, err := pipeline.Compile(data, cfg, nil)
			if err != nil {
				s.broadcaster.Broadcast(CompileEvent{RequestID: reqID, Stage: "error", Message: err.Error()})
				continue
			}
			s.broadcaster.Broadcast(CompileEvent{RequestID: reqID, Stage: "done", Message: "watch recompile produced " + strconv.Itoa(len(out)) + " bytes"})
		}
	}
}
