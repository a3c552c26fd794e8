package snapgene

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"collectioncore/internal/core"
	"collectioncore/pkg/domain"
)

type stubCaller struct {
	failures  int
	calls     []string
	err       error
	resp      Response
	onRequest func(req Request)
}

func (s *stubCaller) Call(ctx context.Context, req Request, timeout time.Duration) (Response, error) {
	s.calls = append(s.calls, req.Command())
	if s.onRequest != nil {
		s.onRequest(req)
	}
	if s.failures > 0 {
		s.failures--
		if s.err != nil {
			return Response{}, s.err
		}
		return Response{Code: 5, ErrorMessage: "file is locked"}, nil
	}
	return s.resp, nil
}

type recordingNotifier struct {
	subjects []string
	bodies   []string
}

func (r *recordingNotifier) NotifyAdmins(subject, body string) error {
	r.subjects = append(r.subjects, subject)
	r.bodies = append(r.bodies, body)
	return nil
}

func testRegistry(t *testing.T) *domain.Registry {
	t.Helper()
	registry, err := core.DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

func mappedPlasmid() domain.TrackedEntity {
	return domain.TrackedEntity{
		ID:   7,
		Kind: domain.KindPlasmid,
		Name: "pTest",
		MapInfo: domain.MapInfo{
			MapPath: "collection/plasmid/dna/pLAB7_20240101_120000.dna",
		},
	}
}

func TestCreateMapPreviewSucceedsAfterTransientFailures(t *testing.T) {
	caller := &stubCaller{failures: 2}
	notifier := &recordingNotifier{}
	p := NewPipeline(caller, notifier, testRegistry(t), "LAB", nil)

	if err := p.CreateMapPreview(context.Background(), mappedPlasmid(), true); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if len(notifier.subjects) != 0 {
		t.Fatalf("success must not notify operators")
	}
	// Two failed detectFeatures calls, then a full clean attempt.
	want := []string{"detectFeatures", "detectFeatures", "detectFeatures", "generatePNGMap", "exportDNAFile"}
	if strings.Join(caller.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", caller.calls, want)
	}
}

func TestCreateMapPreviewRequestPayloads(t *testing.T) {
	t.Setenv("COLLECTIONCORE_SNAPGENE_FEATURE_DB", "snapgene/common.ftrs")
	byCommand := map[string]Request{}
	caller := &stubCaller{}
	caller.onRequest = func(req Request) { byCommand[req.Command()] = req }
	p := NewPipeline(caller, nil, testRegistry(t), "LAB", nil)

	if err := p.CreateMapPreview(context.Background(), mappedPlasmid(), true); err != nil {
		t.Fatalf("preview: %v", err)
	}

	detect := byCommand["detectFeatures"]
	if detect["featureDatabase"] != "snapgene/common.ftrs" {
		t.Fatalf("detectFeatures featureDatabase = %v", detect["featureDatabase"])
	}
	if detect["inputFile"] != detect["outputFile"] {
		t.Fatalf("detectFeatures must write back into the map: %v", detect)
	}

	png := byCommand["generatePNGMap"]
	if png["outputPng"] != "collection/plasmid/png/pLAB7_20240101_120000.png" {
		t.Fatalf("generatePNGMap outputPng = %v", png["outputPng"])
	}
	if png["showEnzymes"] != true || png["showFeatures"] != true || png["showPrimers"] != true {
		t.Fatalf("display flags wrong: %v", png)
	}
	if png["showORFs"] != false {
		t.Fatalf("ORFs must stay hidden: %v", png)
	}
	if png["title"] != "pLAB7 - pTest" {
		t.Fatalf("title = %v", png["title"])
	}

	export := byCommand["exportDNAFile"]
	if export["exportFilter"] != "biosequence.gb" {
		t.Fatalf("exportFilter = %v", export["exportFilter"])
	}
}

func TestCreateMapPreviewExhaustsAttempts(t *testing.T) {
	caller := &stubCaller{failures: 100}
	notifier := &recordingNotifier{}
	p := NewPipeline(caller, notifier, testRegistry(t), "LAB", nil)

	err := p.CreateMapPreview(context.Background(), mappedPlasmid(), false)
	var fatal *FatalProcessingError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalProcessingError, got %v", err)
	}
	if len(caller.calls) != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d calls", len(caller.calls))
	}
	if len(notifier.subjects) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notifier.subjects))
	}
	// The same error string three times must appear once.
	if len(fatal.Errors) != 1 {
		t.Fatalf("errors not deduplicated: %v", fatal.Errors)
	}
	if !strings.Contains(fatal.Error(), fatal.Path) {
		t.Fatalf("fatal error must name the file path")
	}
}

func TestCreateMapPreviewAccumulatesDistinctErrors(t *testing.T) {
	notifier := &recordingNotifier{}
	p := NewPipeline(&varyingCaller{}, notifier, testRegistry(t), "LAB", nil)

	err := p.CreateMapPreview(context.Background(), mappedPlasmid(), false)
	var fatal *FatalProcessingError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalProcessingError, got %v", err)
	}
	if len(fatal.Errors) != 3 {
		t.Fatalf("expected 3 distinct errors, got %v", fatal.Errors)
	}
}

// varyingCaller fails every call with a fresh error message.
type varyingCaller struct {
	n int
}

func (v *varyingCaller) Call(ctx context.Context, req Request, timeout time.Duration) (Response, error) {
	v.n++
	return Response{Code: 1, ErrorMessage: fmt.Sprintf("failure %d", v.n)}, nil
}

func TestUnreachableServerFailsWithoutRetry(t *testing.T) {
	caller := &errCaller{err: ErrNoServer}
	notifier := &recordingNotifier{}
	p := NewPipeline(caller, notifier, testRegistry(t), "LAB", nil)

	err := p.CreateMapPreview(context.Background(), mappedPlasmid(), false)
	if !errors.Is(err, ErrNoServer) {
		t.Fatalf("expected ErrNoServer, got %v", err)
	}
	if caller.calls != 1 {
		t.Fatalf("configuration failure must not retry, got %d calls", caller.calls)
	}
	if len(notifier.subjects) != 0 {
		t.Fatalf("configuration failure must not notify")
	}
}

type errCaller struct {
	err   error
	calls int
}

func (e *errCaller) Call(ctx context.Context, req Request, timeout time.Duration) (Response, error) {
	e.calls++
	return Response{}, e.err
}

func TestMapFeaturesTrimsAndDeduplicates(t *testing.T) {
	caller := &stubCaller{resp: Response{Features: []Feature{
		{Name: " lacZ "},
		{Name: "AmpR"},
		{Name: "lacZ"},
		{Name: "  "},
	}}}
	p := NewPipeline(caller, nil, testRegistry(t), "LAB", nil)

	names, err := p.MapFeatures(context.Background(), mappedPlasmid())
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	want := []string{"lacZ", "AmpR"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("features = %v, want %v", names, want)
	}
}

func TestEntityWithoutMapIsRejected(t *testing.T) {
	p := NewPipeline(&stubCaller{}, nil, testRegistry(t), "LAB", nil)
	e := mappedPlasmid()
	e.MapPath = ""
	if err := p.CreateMapPreview(context.Background(), e, false); err == nil {
		t.Fatalf("expected error for entity without map")
	}
	if _, err := p.MapFeatures(context.Background(), e); err == nil {
		t.Fatalf("expected error for entity without map")
	}
}

func TestImportOligosWritesPrimerListAndReturnsMap(t *testing.T) {
	caller := &stubCaller{}
	var primerList []byte
	caller.onRequest = func(req Request) {
		// The server writes the processed map; emulate that.
		if req.Command() == "importPrimersFromList" {
			out, _ := req["outputFile"].(string)
			_ = os.WriteFile(out, []byte("processed-map"), 0o600)
			list, _ := req["inputPrimersFile"].(string)
			var err error
			if primerList, err = os.ReadFile(list); err != nil {
				panic("primer list missing at call time")
			}
		}
	}
	p := NewPipeline(caller, nil, testRegistry(t), "LAB", nil)

	oligos := []domain.Oligo{{ID: 3, Sequence: "ATGC"}, {ID: 4, Sequence: "GGCC"}}
	data, err := p.ImportOligos(context.Background(), mappedPlasmid(), oligos, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if string(data) != "processed-map" {
		t.Fatalf("unexpected map bytes %q", data)
	}

	var entries []primerEntry
	if err := json.Unmarshal(primerList, &entries); err != nil {
		t.Fatalf("decode primer list: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "! oLAB3" || entries[0].Sequence != "ATGC" {
		t.Fatalf("unexpected primer list %+v", entries)
	}
}

func TestDerivedPathSwapsArtifactDirAndExtension(t *testing.T) {
	got := derivedPath("collection/plasmid/dna/pLAB7_20240101_120000.dna", "png", ".png")
	want := "collection/plasmid/png/pLAB7_20240101_120000.png"
	if got != want {
		t.Fatalf("derivedPath = %q, want %q", got, want)
	}
}
