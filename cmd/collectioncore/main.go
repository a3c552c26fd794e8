// Command collectioncore runs the collection management service: it wires
// the persistent store, blob storage, the sequence-map pipeline, and serves
// a small read API plus health and metrics endpoints.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"collectioncore/internal/blob"
	"collectioncore/internal/core"
	"collectioncore/internal/export"
	"collectioncore/internal/infra/persistence"
	"collectioncore/internal/notify"
	"collectioncore/internal/snapgene"
	"collectioncore/pkg/domain"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := core.DefaultRegistry()
	if err != nil {
		return err
	}

	engine := core.NewRulesEngine()
	for _, rule := range core.DefaultRules() {
		engine.Register(rule)
	}
	store, err := persistence.Open(engine)
	if err != nil {
		return err
	}

	blobs, err := blob.Open(ctx)
	if err != nil {
		return err
	}
	logger.Info("blob store ready", zap.String("driver", string(blobs.Driver())))

	var notifier notify.Notifier = notify.Nop{}
	if mailer := notify.NewAdminMailerFromEnv(); mailer != nil {
		notifier = mailer
	}

	lab := os.Getenv("COLLECTIONCORE_LAB_ABBREVIATION")
	pipeline := snapgene.NewPipeline(snapgene.NewClientFromEnv(), notifier, registry, lab, logger)
	service := core.NewService(store, registry, core.NewJitter(), logger, pipeline)

	addr := os.Getenv("COLLECTIONCORE_LISTEN_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	api := &apiServer{store: store, registry: registry, service: service, blobs: blobs, logger: logger}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /collections/{kind}", api.listEntities)
	mux.HandleFunc("GET /collections/{kind}/export", api.exportEntities)
	mux.HandleFunc("GET /collections/{kind}/{id}/history", api.entityHistory)
	mux.HandleFunc("GET /collections/{kind}/{id}/changes", api.entityChanges)
	mux.HandleFunc("GET /collections/{kind}/files", api.listArtifacts)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type apiServer struct {
	store    domain.PersistentStore
	registry *domain.Registry
	service  *core.Service
	blobs    blob.Store
	logger   *zap.Logger
}

func (a *apiServer) kindOf(w http.ResponseWriter, r *http.Request) (domain.KindConfig, bool) {
	kind := domain.EntityKind(r.PathValue("kind"))
	cfg, ok := a.registry.Config(kind)
	if !ok {
		http.Error(w, "unknown collection", http.StatusNotFound)
		return domain.KindConfig{}, false
	}
	return cfg, true
}

func (a *apiServer) listEntities(w http.ResponseWriter, r *http.Request) {
	cfg, ok := a.kindOf(w, r)
	if !ok {
		return
	}
	writeJSON(w, a.store.ListEntities(cfg.Kind))
}

func (a *apiServer) exportEntities(w http.ResponseWriter, r *http.Request) {
	cfg, ok := a.kindOf(w, r)
	if !ok {
		return
	}
	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatTSV
	}
	switch format {
	case export.FormatTSV:
		w.Header().Set("Content-Type", "text/tab-separated-values")
	case export.FormatXLSX:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	err := a.store.View(r.Context(), func(view domain.TransactionView) error {
		return export.Write(w, format, view, cfg, view.ListEntities(cfg.Kind))
	})
	if err != nil {
		a.logger.Error("export failed", zap.String("kind", string(cfg.Kind)), zap.Error(err))
	}
}

func (a *apiServer) entityRef(w http.ResponseWriter, r *http.Request) (domain.EntityRef, bool) {
	cfg, ok := a.kindOf(w, r)
	if !ok {
		return domain.EntityRef{}, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return domain.EntityRef{}, false
	}
	return domain.EntityRef{Kind: cfg.Kind, ID: id}, true
}

func (a *apiServer) entityHistory(w http.ResponseWriter, r *http.Request) {
	ref, ok := a.entityRef(w, r)
	if !ok {
		return
	}
	writeJSON(w, a.store.History(ref))
}

func (a *apiServer) entityChanges(w http.ResponseWriter, r *http.Request) {
	ref, ok := a.entityRef(w, r)
	if !ok {
		return
	}
	var changes []domain.HistoryChange
	for hc := range a.service.Changes(r.Context(), ref) {
		changes = append(changes, hc)
	}
	writeJSON(w, changes)
}

func (a *apiServer) listArtifacts(w http.ResponseWriter, r *http.Request) {
	cfg, ok := a.kindOf(w, r)
	if !ok {
		return
	}
	artifact := r.URL.Query().Get("artifact")
	if artifact == "" {
		artifact = blob.ArtifactMap
	}
	infos, err := a.blobs.List(r.Context(), blob.ArtifactPrefix(cfg.Kind, artifact))
	if err != nil {
		a.logger.Error("artifact listing failed", zap.String("kind", string(cfg.Kind)), zap.Error(err))
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, infos)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
