package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/lodgekit/reserve/internal/engine"
	"github.com/lodgekit/reserve/internal/logger"
)

type Server struct {
	srv      *http.Server
	router   *mux.Router
	l        *logger.Logger
	conf     Conf
	manager  *engine.Manager
	validate *validator.Validate
}

type Conf struct {
	L                 *logger.Logger
	ServerLogger      *log.Logger
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	LivenessEndpoint  string
}

func New(ctx context.Context, conf Conf, manager *engine.Manager) (*Server, error) {
	router := mux.NewRouter()

	server := &Server{
		router:   router,
		l:        conf.L,
		conf:     conf,
		manager:  manager,
		validate: validator.New(),
	}

	server.addRoutes(router)

	//nolint:exhaustruct
	server.srv = &http.Server{
		Addr:              net.JoinHostPort(conf.Host, conf.Port),
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		ErrorLog:          conf.ServerLogger,
		Handler: handlers.CORS(
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(handlers.CompressHandler(router)),
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
	}

	return server, nil
}

func (s *Server) Srv() *http.Server {
	return s.srv
}
