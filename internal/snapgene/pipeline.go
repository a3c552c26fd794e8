package snapgene

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"collectioncore/internal/core"
	"collectioncore/internal/notify"
	"collectioncore/pkg/domain"
)

// Per-operation response ceilings. The server is a stateful local process;
// long renders get more room than quick metadata calls.
const (
	detectTimeout  = 60 * time.Second
	renderTimeout  = 30 * time.Second
	exportTimeout  = 10 * time.Second
	reportTimeout  = 10 * time.Second
	importTimeout  = 10 * time.Second
	primersTimeout = 60 * time.Second
)

const defaultMaxAttempts = 3

// exportFilter value the server expects for GenBank output.
const genBankExportFilter = "biosequence.gb"

const defaultFeatureDatabase = "snapgene/standardCommonFeatures.ftrs"

// FatalProcessingError reports an operation that failed every attempt. A
// half-written preview must never be presented as current, so callers treat
// this as a hard failure.
type FatalProcessingError struct {
	Path   string
	Errors []string
}

func (e *FatalProcessingError) Error() string {
	return fmt.Sprintf("map processing failed for %s: %s", e.Path, strings.Join(e.Errors, "; "))
}

// Pipeline orchestrates map processing against the sequence-map server.
type Pipeline struct {
	caller      Caller
	notifier    notify.Notifier
	registry    *domain.Registry
	lab         string
	featureDB   string
	logger      *zap.Logger
	maxAttempts int
}

var _ core.MapProcessor = (*Pipeline)(nil)

// NewPipeline wires a pipeline. The lab abbreviation goes into rendered map
// titles and primer names. The common-feature database path handed to
// detectFeatures comes from COLLECTIONCORE_SNAPGENE_FEATURE_DB.
func NewPipeline(caller Caller, notifier notify.Notifier, registry *domain.Registry, lab string, logger *zap.Logger) *Pipeline {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	featureDB := os.Getenv("COLLECTIONCORE_SNAPGENE_FEATURE_DB")
	if featureDB == "" {
		featureDB = defaultFeatureDatabase
	}
	return &Pipeline{
		caller:      caller,
		notifier:    notifier,
		registry:    registry,
		lab:         lab,
		featureDB:   featureDB,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
	}
}

// SetMaxAttempts overrides the retry budget; intended for tests.
func (p *Pipeline) SetMaxAttempts(n int) { p.maxAttempts = n }

func (p *Pipeline) call(ctx context.Context, req Request, timeout time.Duration) (Response, error) {
	cmd := req.Command()
	rpcCalls.WithLabelValues(cmd).Inc()
	resp, err := p.caller.Call(ctx, req, timeout)
	if err != nil {
		rpcFailures.WithLabelValues(cmd).Inc()
		return resp, err
	}
	if err := resp.Err(); err != nil {
		rpcFailures.WithLabelValues(cmd).Inc()
		return resp, err
	}
	return resp, nil
}

// withRetry runs one whole attempt of an operation up to the attempt budget.
// Attempts restart from the top; error strings accumulate deduplicated. An
// unreachable server aborts immediately since no attempt could begin. On
// exhaustion the operators are notified once and a fatal error is returned.
func (p *Pipeline) withRetry(ctx context.Context, operation, path string, fn func(context.Context) error) error {
	timer := prometheus.NewTimer(operationDuration.WithLabelValues(operation))
	defer timer.ObserveDuration()

	seen := make(map[string]struct{})
	var distinct []string
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNoServer) {
			return fmt.Errorf("%s: %w", operation, err)
		}
		if _, dup := seen[err.Error()]; !dup {
			seen[err.Error()] = struct{}{}
			distinct = append(distinct, err.Error())
		}
		p.logger.Warn("map processing attempt failed",
			zap.String("operation", operation),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	attemptExhaustions.Inc()
	subject := fmt.Sprintf("[collectioncore] %s failed for %s", operation, path)
	body := fmt.Sprintf("Operation %s gave up after %d attempts on %s.\n\nErrors:\n%s\n",
		operation, p.maxAttempts, path, strings.Join(distinct, "\n"))
	if err := p.notifier.NotifyAdmins(subject, body); err != nil {
		p.logger.Error("admin notification failed", zap.Error(err))
	}
	return &FatalProcessingError{Path: path, Errors: distinct}
}

// derivedPath places a derived artifact next to the primary map: the
// artifact directory replaces the map's parent directory and the extension
// is swapped, e.g. collection/plasmid/dna/pLAB1.dna ->
// collection/plasmid/png/pLAB1.png.
func derivedPath(mapPath, artifact, ext string) string {
	base := strings.TrimSuffix(filepath.Base(mapPath), filepath.Ext(mapPath))
	return filepath.Join(filepath.Dir(filepath.Dir(mapPath)), artifact, base+ext)
}

func (p *Pipeline) title(e *domain.TrackedEntity) string {
	cfg, ok := p.registry.Config(e.Kind)
	if !ok {
		return e.Name
	}
	return core.LabIdentifier(cfg, p.lab, e.ID) + " - " + e.Name
}

// CreateMapPreview regenerates the derived artifacts of an entity's primary
// map: optional common-feature detection written back into the map file, a
// PNG preview titled with the lab identifier, and a GenBank export.
func (p *Pipeline) CreateMapPreview(ctx context.Context, e domain.TrackedEntity, detectCommonFeatures bool) error {
	if !e.HasMap() {
		return fmt.Errorf("%s %d has no map", e.Kind, e.ID)
	}
	pngPath := e.MapPNGPath
	if pngPath == "" {
		pngPath = derivedPath(e.MapPath, "png", ".png")
	}
	gbkPath := e.MapGBKPath
	if gbkPath == "" {
		gbkPath = derivedPath(e.MapPath, "gbk", ".gbk")
	}

	return p.withRetry(ctx, "create_map_preview", e.MapPath, func(ctx context.Context) error {
		if detectCommonFeatures {
			req := NewRequest("detectFeatures")
			req["inputFile"] = e.MapPath
			req["outputFile"] = e.MapPath
			req["featureDatabase"] = p.featureDB
			if _, err := p.call(ctx, req, detectTimeout); err != nil {
				return err
			}
		}
		req := NewRequest("generatePNGMap")
		req["inputFile"] = e.MapPath
		req["outputPng"] = pngPath
		req["title"] = p.title(&e)
		req["showEnzymes"] = true
		req["showFeatures"] = true
		req["showPrimers"] = true
		req["showORFs"] = false
		if _, err := p.call(ctx, req, renderTimeout); err != nil {
			return err
		}
		req = NewRequest("exportDNAFile")
		req["inputFile"] = e.MapPath
		req["outputFile"] = gbkPath
		req["exportFilter"] = genBankExportFilter
		_, err := p.call(ctx, req, exportTimeout)
		return err
	})
}

// ProcessMap is the asynchronous save hook: it regenerates every derived
// artifact after the primary map changed.
func (p *Pipeline) ProcessMap(ctx context.Context, e domain.TrackedEntity, detectCommonFeatures bool) error {
	return p.CreateMapPreview(ctx, e, detectCommonFeatures)
}

// MapFeatures reports the trimmed, deduplicated feature names annotated on
// an entity's primary map.
func (p *Pipeline) MapFeatures(ctx context.Context, e domain.TrackedEntity) ([]string, error) {
	if !e.HasMap() {
		return nil, fmt.Errorf("%s %d has no map", e.Kind, e.ID)
	}
	var names []string
	err := p.withRetry(ctx, "get_map_features", e.MapPath, func(ctx context.Context) error {
		req := NewRequest("reportFeatures")
		req["inputFile"] = e.MapPath
		resp, err := p.call(ctx, req, reportTimeout)
		if err != nil {
			return err
		}
		seen := make(map[string]struct{})
		names = names[:0]
		for _, f := range resp.Features {
			name := strings.TrimSpace(f.Name)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ConvertGBKToDNA back-converts a GenBank file into the server's native map
// format.
func (p *Pipeline) ConvertGBKToDNA(ctx context.Context, gbkPath, dnaPath string) error {
	return p.withRetry(ctx, "convert_map_gbk_to_dna", gbkPath, func(ctx context.Context) error {
		req := NewRequest("importDNAFile")
		req["inputFile"] = gbkPath
		req["outputFile"] = dnaPath
		_, err := p.call(ctx, req, importTimeout)
		return err
	})
}

type primerEntry struct {
	Name     string `json:"Name"`
	Sequence string `json:"Sequence"`
	Notes    string `json:"Notes"`
}

// ImportOligos annotates an entity's map with the given oligos as primers
// and returns the processed map bytes, in GenBank format when asked.
func (p *Pipeline) ImportOligos(ctx context.Context, e domain.TrackedEntity, oligos []domain.Oligo, genbank bool) ([]byte, error) {
	if !e.HasMap() {
		return nil, fmt.Errorf("%s %d has no map", e.Kind, e.ID)
	}
	cfg, ok := p.registry.Config(domain.KindOligo)
	if !ok {
		return nil, fmt.Errorf("oligo collection not configured")
	}

	primers := make([]primerEntry, 0, len(oligos))
	for _, o := range oligos {
		// The "! " prefix marks imported primers in the rendered map.
		primers = append(primers, primerEntry{
			Name:     "! " + core.LabIdentifier(cfg, p.lab, o.ID),
			Sequence: o.Sequence,
		})
	}
	listPath := filepath.Join(os.TempDir(), uuid.NewString()+".json")
	data, err := json.Marshal(primers)
	if err != nil {
		return nil, fmt.Errorf("encode primers: %w", err)
	}
	if err := os.WriteFile(listPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write primer list: %w", err)
	}
	defer func() { _ = os.Remove(listPath) }()

	outPath := filepath.Join(os.TempDir(), uuid.NewString()+".dna")
	defer func() { _ = os.Remove(outPath) }()

	err = p.withRetry(ctx, "import_oligos", e.MapPath, func(ctx context.Context) error {
		req := NewRequest("importPrimersFromList")
		req["inputFile"] = e.MapPath
		req["inputPrimersFile"] = listPath
		req["outputFile"] = outPath
		if _, err := p.call(ctx, req, primersTimeout); err != nil {
			return err
		}
		if !genbank {
			return nil
		}
		req = NewRequest("exportDNAFile")
		req["inputFile"] = outPath
		req["outputFile"] = outPath + ".gbk"
		req["exportFilter"] = genBankExportFilter
		_, err := p.call(ctx, req, exportTimeout)
		return err
	})
	if err != nil {
		return nil, err
	}

	resultPath := outPath
	if genbank {
		resultPath = outPath + ".gbk"
		defer func() { _ = os.Remove(resultPath) }()
	}
	out, err := os.ReadFile(resultPath)
	if err != nil {
		return nil, fmt.Errorf("read processed map: %w", err)
	}
	return out, nil
}
