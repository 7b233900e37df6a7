package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pepuns/pepuns-api/pkg/backend"
	"github.com/pepuns/pepuns-api/pkg/version"
	"github.com/sirupsen/logrus"
)

type apiServer struct {
	ctx            context.Context
	log            *logrus.Entry
	port           int
	adminTokenHash string
}

func NewAPIServer(ctx context.Context, log *logrus.Entry, port int, adminTokenHash string) *apiServer {
	return &apiServer{
		ctx:            ctx,
		log:            log,
		port:           port,
		adminTokenHash: adminTokenHash,
	}
}

func (a *apiServer) Start(backend backend.Backend) error {
	logrus.Infof("Version: %s", version.Get())

	router := a.buildRouter(backend)

	// Below this point is where the server is started and graceful shutdown occurs.
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: ghandlers.CORS()(router),
	}

	go func() {
		a.log.WithField("port", a.port).Info("starting api server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Fatalf("listen: %s\n", err)
		}
	}()

	go backend.StartSweeper(a.ctx.Done())

	<-a.ctx.Done()

	a.log.Info("shutting down the api server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		cancel()
	}()

	if err := srv.Shutdown(ctx); err != nil {
		a.log.WithError(err).Error("unable to shutdown the api server gracefully")
		return err
	}

	return nil
}

func (a *apiServer) buildRouter(b backend.Backend) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(loggingMiddleware(a.log))
	h := newHandler(b)

	// When functioning properly, these routes will return the version of the app that is running
	router.Path("/").HandlerFunc(h.root)
	router.Path("/healthz").HandlerFunc(h.root)

	api := router.PathPrefix("/api").Subrouter()

	// The registration flow consumed by the storefront UI
	api.Path("/domains/check/{domain}").Methods("GET").HandlerFunc(h.checkDomain)
	api.Path("/domains/reserve").Methods("POST").HandlerFunc(h.reserveDomain)
	api.Path("/domains/confirm").Methods("POST").HandlerFunc(h.confirmDomain)
	api.Path("/transactions/log").Methods("POST").HandlerFunc(h.logTransaction)
	api.Path("/domains/{domain}").Methods("GET").HandlerFunc(h.getDomain)

	// Admin listing routes only exist when a token hash is configured
	if a.adminTokenHash != "" {
		adminRoutes := api.PathPrefix("/admin").Subrouter()
		adminRoutes.Use(adminAuthMiddleware(a.adminTokenHash))
		adminRoutes.Path("/domains").Methods("GET").HandlerFunc(h.listDomains)
		adminRoutes.Path("/transactions").Methods("GET").HandlerFunc(h.listTransactions)
	}

	// Note: this allows not found urls to be logged via the middleware
	// It **HAS** to be defined after all other paths are defined.
	router.NotFoundHandler = router.NewRoute().HandlerFunc(http.NotFound).GetHandler()

	return router
}
