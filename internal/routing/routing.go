package routing

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"micecheckin/internal/config"
	"micecheckin/pkg/attendance"
	"micecheckin/pkg/audit"
	"micecheckin/pkg/cache"
	"micecheckin/pkg/checkin"
	"micecheckin/pkg/entry"
	"micecheckin/pkg/handlers"
	"micecheckin/pkg/login"
	"micecheckin/pkg/middleware"
	"micecheckin/pkg/session"
	"micecheckin/pkg/user"
)

const shutdownTimeout = 10 * time.Second

type Deps struct {
	Config  *config.Config
	DB      *sql.DB
	Tokens  checkin.TokenStore
	Audit   audit.Sink
	Reader  handlers.AuditReader
	Logger  *slog.Logger
	Session login.Repository
}

// InitRoutes mounts the API on api. The returned func releases the
// background sweepers the services own.
func InitRoutes(api *mux.Router, d Deps) func() {
	cfg := d.Config

	lockout := user.NewLockout(cache.WithSweepInterval(cfg.CacheSweepInterval))
	userRepo := user.NewMySQLRepo(d.DB, cfg.DBTimeout)

	userService := user.NewService(userRepo, d.Session, lockout, cfg.LoginTokenTTL)
	userHandler := handlers.NewUserHandler(userService, cfg.JWTSecret, cfg.LoginTokenTTL, d.Logger)

	checkinService := checkin.NewService(
		session.NewMySQLRepo(d.DB, cfg.DBTimeout),
		d.Tokens,
		attendance.NewMySQLRepo(d.DB, cfg.DBTimeout),
		cfg.QRTokenTTL,
		d.Logger,
	)
	checkinHandler := handlers.NewCheckInHandler(checkinService, d.Logger)

	entryService := entry.NewService(entry.NewMySQLRepo(d.DB, cfg.DBTimeout), userRepo, d.Audit, cfg.EntryMinDuration, d.Logger)
	entryHandler := handlers.NewEntryHandler(entryService, d.Reader, d.Logger)

	/* -+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ */

	adminOnly := middleware.RequireRole(user.RoleAdmin)
	attendeeOnly := middleware.RequireRole(user.RoleAttendee)

	authRouter := api.PathPrefix("/auth").Subrouter()
	usersRouter := api.PathPrefix("/users").Subrouter()
	sessionsRouter := api.PathPrefix("/sessions").Subrouter()
	adminRouter := api.PathPrefix("/admin").Subrouter()
	adminRouter.Use(adminOnly)

	api.HandleFunc("/health", handlers.Health(d.Logger)).Methods("GET")

	/* auth routers */
	authRouter.HandleFunc("/login", userHandler.Login).Methods("POST").Name("login")

	/* user routers */
	usersRouter.HandleFunc("/me", userHandler.Me).Methods("GET")
	usersRouter.HandleFunc("/me/pass", userHandler.Pass).Methods("GET")

	/* session routers */
	sessionsRouter.Handle("/check-in", attendeeOnly(http.HandlerFunc(checkinHandler.CheckIn))).Methods("POST")
	sessionsRouter.Handle("/{id}/dynamic-qr", adminOnly(http.HandlerFunc(checkinHandler.DynamicQR))).Methods("GET")

	/* admin routers */
	adminRouter.HandleFunc("/sessions/{id}/dynamic-qr", checkinHandler.DynamicQR).Methods("GET")
	adminRouter.HandleFunc("/sessions/{id}/attendance", checkinHandler.Attendance).Methods("GET")
	adminRouter.HandleFunc("/event-entry", entryHandler.EventEntry).Methods("POST")
	adminRouter.HandleFunc("/event-entry/stats", entryHandler.Stats).Methods("GET")
	adminRouter.HandleFunc("/event-entry/audit", entryHandler.AuditTrail).Methods("GET")

	return lockout.Close
}

func ServeFallback(r *mux.Router, logger *slog.Logger) {
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("route not found", slog.String("method", r.Method), slog.String("path", r.URL.Path))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		if _, err := w.Write([]byte(`{"error":{"message":"Not found"}}`)); err != nil {
			logger.Error("failed to write fallback JSON", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
	})
}

// StartServer serves h on port until ctx is cancelled, then drains
// in-flight requests.
func StartServer(ctx context.Context, h http.Handler, port string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("the server is running", "addr", "http://localhost:"+port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
