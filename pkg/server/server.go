// Package server is the HTTP API: authentication, uploads, chat, admin,
// analytics, and operational endpoints, routed with chi.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/documind/documind/pkg/analytics"
	"github.com/documind/documind/pkg/auth"
	"github.com/documind/documind/pkg/authstore"
	"github.com/documind/documind/pkg/categories"
	"github.com/documind/documind/pkg/chats"
	"github.com/documind/documind/pkg/classifier"
	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/duplicates"
	"github.com/documind/documind/pkg/query"
	"github.com/documind/documind/pkg/rbac"
	"github.com/documind/documind/pkg/uploads"
	"github.com/documind/documind/pkg/vectordb"
)

// Answerer runs the retrieval pipeline, implemented by query.Engine.
type Answerer interface {
	Answer(ctx context.Context, query, role string) (*query.Response, error)
}

// Deindexer drops a sorted file's chunks, implemented by ingest.Pipeline.
type Deindexer interface {
	DeleteByPath(ctx context.Context, path string) error
}

// AvailabilityProber reports whether the language model backend is up.
type AvailabilityProber interface {
	Available(ctx context.Context) bool
}

// Options carries the server's dependencies.
type Options struct {
	Config     *config.Config
	Auth       *auth.Service
	Users      *authstore.Store
	Uploads    *uploads.Tracker
	Engine     Answerer
	Classifier *classifier.Classifier
	Chats      *chats.Store
	Analytics  *analytics.Service
	Duplicates *duplicates.Detector
	Categories *categories.Manager
	Deindexer  Deindexer
	Store      vectordb.Provider
	Collection string
	LLM        AvailabilityProber
}

// Server is the HTTP API server.
type Server struct {
	cfg        *config.Config
	auth       *auth.Service
	users      *authstore.Store
	uploads    *uploads.Tracker
	engine     Answerer
	classifier *classifier.Classifier
	chats      *chats.Store
	analytics  *analytics.Service
	duplicates *duplicates.Detector
	categories *categories.Manager
	deindexer  Deindexer
	store      vectordb.Provider
	collection string
	llm        AvailabilityProber
	policy     *rbac.Policy
	logger     *slog.Logger

	httpServer *http.Server
}

// New builds the server; Options.Config and Options.Auth are required.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}

	s := &Server{
		cfg:        opts.Config,
		auth:       opts.Auth,
		users:      opts.Users,
		uploads:    opts.Uploads,
		engine:     opts.Engine,
		classifier: opts.Classifier,
		chats:      opts.Chats,
		analytics:  opts.Analytics,
		duplicates: opts.Duplicates,
		categories: opts.Categories,
		deindexer:  opts.Deindexer,
		store:      opts.Store,
		collection: opts.Collection,
		llm:        opts.LLM,
		logger:     slog.Default().With("component", "server"),
	}
	if opts.Users != nil {
		s.policy = rbac.NewPolicy(opts.Users)
	} else {
		s.policy = rbac.NewPolicy(nil)
	}
	s.httpServer = &http.Server{
		Addr:    opts.Config.Server.Address(),
		Handler: s.Router(),
	}
	return s, nil
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Post("/login", s.handleLogin)
	r.HandleFunc("/test", s.handleTest)
	r.Get("/status", s.handleStatus)
	r.Post("/classify", s.handleClassify)
	r.Post("/export-chat", s.handleExportChat)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.auth.HTTPMiddleware)

		r.Post("/chat", s.handleChat)
		r.With(auth.RequirePermission("files.download")).
			Get("/download/{filename}", s.handleDownload)

		r.Route("/api", func(r chi.Router) {
			r.Post("/upload", s.handleUpload)
			r.Get("/upload/quota", s.handleQuota)
			r.Get("/files", s.handleListFiles)
			r.Delete("/files/*", s.handleDeleteFile)

			r.Post("/users/change-password", s.handleChangeOwnPassword)

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequirePermission("admin.dashboard"))
				r.Get("/users", s.handleListUsers)
				r.Post("/users", s.handleCreateUser)
				r.Put("/users/{id}", s.handleUpdateUser)
				r.Delete("/users/{id}", s.handleDeleteUser)
				r.Put("/users/{id}/password", s.handleAdminChangePassword)
				r.Get("/roles", s.handleListRoles)
				r.Post("/roles", s.handleCreateRole)
				r.Put("/roles/{id}", s.handleUpdateRole)
				r.Delete("/roles/{id}", s.handleDeleteRole)
				r.Get("/chats/all", s.handleAllChats)
			})

			r.With(auth.RequirePermission("analytics.view")).
				Get("/analytics", s.handleAnalytics)
			r.With(auth.RequirePermission("analytics.view")).
				Get("/analytics/recent", s.handleRecentUploads)
			r.With(auth.RequirePermission("analytics.clear_cache")).
				Post("/analytics/clear-cache", s.handleClearAnalyticsCache)

			r.With(auth.RequirePermission("files.view_duplicates")).
				Get("/duplicates", s.handleDuplicates)
			r.With(auth.RequirePermission("files.delete_duplicates")).
				Delete("/duplicates/{hash}", s.handleDeleteDuplicate)

			r.Get("/categories", s.handleCategories)
			r.With(auth.RequirePermission("categories.create")).
				Post("/categories", s.handleCreateCategory)
			r.With(auth.RequirePermission("categories.delete")).
				Delete("/categories/{domain}/{category}", s.handleDeleteCategory)

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", s.handleListChats)
				r.Post("/", s.handleCreateChat)
				r.Delete("/{id}", s.handleDeleteChat)
				r.Get("/{id}/messages", s.handleChatMessages)
				r.Put("/{id}/title", s.handleUpdateChatTitle)
			})
		})
	})

	return r
}

// Start serves until the context is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	cors := s.cfg.Server.CORS
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cors != nil {
			w.Header().Set("Access-Control-Allow-Origin", strings.Join(cors.AllowedOrigins, ", "))
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(cors.AllowedMethods, ", "))
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(cors.AllowedHeaders, ", "))
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) policyAllows(role, domain, category string) bool {
	return s.policy.Access(role, domain, category)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeSuccess(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}
