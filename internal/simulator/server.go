package simulator

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sellsync/sellsync/internal/observability"
)

type Server struct {
	store  *Store
	logger *slog.Logger
	mux    http.Handler
}

func NewServer(store *Store, logger *slog.Logger) *Server {
	server := &Server{
		store:  store,
		logger: logger,
	}

	server.registerRoutes()

	return server
}

func (s *Server) Handler() http.Handler {
	return s.requestContext(s.mux)
}

// requestContext attaches a request id and a request-scoped logger so
// handlers can use observability.LoggerFromContext.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()

		ctx := observability.ContextWithRequestID(r.Context(), requestID)
		ctx = observability.ContextWithLogger(ctx, s.logger.With("request_id", requestID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
