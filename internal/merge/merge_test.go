package merge

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/markup"
	"github.com/starford/gebo/internal/parser"
	"github.com/starford/gebo/internal/session"
	"github.com/starford/gebo/internal/storage"
)

const (
	alphaNote = "20240101T100000--alpha.org"
	betaNote  = "20240102T110000--beta.org"
	gammaNote = "20240103T120000--gamma.org"
	omegaNote = "20240104T130000--omega.org"

	alphaID = "20240101T100000"
	omegaID = "20240104T130000"
)

type vaultEnv struct {
	t        *testing.T
	dir      string
	store    *storage.FS
	sessions *session.Manager
}

func newVaultEnv(t *testing.T, files map[string]string) *vaultEnv {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS() error = %v", err)
	}
	return &vaultEnv{t: t, dir: dir, store: store, sessions: session.NewManager(store)}
}

func (e *vaultEnv) merger(opts Options) *Merger {
	return e.mergerWith(opts, &scanCorpus{store: e.store})
}

func (e *vaultEnv) mergerWith(opts Options, corpus BacklinkSource) *Merger {
	e.t.Helper()
	return NewMerger(e.store, e.sessions, corpus, opts, quietLogger())
}

func (e *vaultEnv) read(path string) string {
	e.t.Helper()
	data, err := e.store.Read(path)
	if err != nil {
		e.t.Fatalf("Read(%q) error = %v", path, err)
	}
	return string(data)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scanCorpus resolves backlinks by re-parsing every vault file, standing in
// for the persistent index.
type scanCorpus struct {
	store storage.Provider
}

func (c *scanCorpus) Backlinks(id string) ([]string, error) {
	notes, err := c.store.List("")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range notes {
		data, err := c.store.Read(n.Path)
		if err != nil {
			return nil, err
		}
		res, err := parser.Parse(n.Path, data)
		if err != nil {
			continue
		}
		for _, link := range res.Links {
			if link == id {
				out = append(out, n.Path)
				break
			}
		}
	}
	return out, nil
}

// corpusFunc adapts a function to BacklinkSource for failure injection.
type corpusFunc func(string) ([]string, error)

func (f corpusFunc) Backlinks(id string) ([]string, error) { return f(id) }

func TestFileMerge_AppendsBodyAndHeading(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha Ideas\n\nfirst line\nsecond line\n",
		omegaNote: "#+title: Omega\n\nexisting\n",
	})
	m := env.merger(Options{FileAnnotation: "MERGED FILE"})

	res, err := m.FileMerge(alphaNote, omegaNote)
	if err != nil {
		t.Fatalf("FileMerge() error = %v", err)
	}

	want := "#+title: Omega\n\nexisting\n\n* MERGED FILE: Alpha Ideas\n\nfirst line\nsecond line\n"
	if got := env.read(omegaNote); got != want {
		t.Errorf("destination = %q, want %q", got, want)
	}
	// The appended tail reproduces the source body byte for byte.
	if !strings.HasSuffix(env.read(omegaNote), "first line\nsecond line\n") {
		t.Error("destination does not end with the source body")
	}
	if _, err := env.store.Read(alphaNote); err == nil {
		t.Error("source still exists after merge")
	}
	if res.SourceID != alphaID || res.DestID != omegaID {
		t.Errorf("result ids = %q -> %q, want %q -> %q", res.SourceID, res.DestID, alphaID, omegaID)
	}
	if !reflect.DeepEqual(res.Persisted, []string{omegaNote}) {
		t.Errorf("Persisted = %v, want [%s]", res.Persisted, omegaNote)
	}
	if res.Trashed {
		t.Error("Trashed = true, want false")
	}
}

func TestFileMerge_HeadingFallsBackToIdentifier(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		"20240101T100000.org": "just a body\n",
		omegaNote:             "omega",
	})
	m := env.merger(Options{FileAnnotation: "MERGED FILE", AutoSave: true})

	if _, err := m.FileMerge("20240101T100000.org", omegaNote); err != nil {
		t.Fatalf("FileMerge() error = %v", err)
	}

	want := "omega\n\n* MERGED FILE: 20240101T100000\n\njust a body\n"
	if got := env.read(omegaNote); got != want {
		t.Errorf("destination = %q, want %q", got, want)
	}
}

func TestFileMerge_RewritesBacklinks(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nalpha content\n",
		betaNote:  "#+title: Beta\n\nsee [[note:20240101T100000][Alpha]] for more\n",
		gammaNote: "#+title: Gamma\n\nbare [[note:20240101T100000]] link\nand [[note:20240102T110000]] other\n",
		omegaNote: "#+title: Omega\n\n",
	})
	m := env.merger(Options{FileAnnotation: "MERGED FILE", AutoSave: true})

	res, err := m.FileMerge(alphaNote, omegaNote)
	if err != nil {
		t.Fatalf("FileMerge() error = %v", err)
	}

	if want := []string{betaNote, gammaNote}; !reflect.DeepEqual(res.Rewritten, want) {
		t.Errorf("Rewritten = %v, want %v", res.Rewritten, want)
	}
	if len(res.Failed) != 0 {
		t.Errorf("Failed = %v, want none", res.Failed)
	}
	wantBeta := "#+title: Beta\n\nsee [[note:20240104T130000][Alpha]] for more\n"
	if got := env.read(betaNote); got != wantBeta {
		t.Errorf("beta = %q, want %q", got, wantBeta)
	}
	wantGamma := "#+title: Gamma\n\nbare [[note:20240104T130000]] link\nand [[note:20240102T110000]] other\n"
	if got := env.read(gammaNote); got != wantGamma {
		t.Errorf("gamma = %q, want %q", got, wantGamma)
	}

	// No surviving file references the merged-away identifier anywhere.
	notes, err := env.store.List("")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, n := range notes {
		if strings.Contains(env.read(n.Path), alphaID) {
			t.Errorf("%s still references %s", n.Path, alphaID)
		}
	}
	if unsaved := env.sessions.Unsaved(); len(unsaved) != 0 {
		t.Errorf("Unsaved() = %v, want none", unsaved)
	}
}

func TestFileMerge_RetargetsSelfReferences(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nloop [[note:20240101T100000]] here\n",
		omegaNote: "#+title: Omega\n\nstart\n",
	})
	m := env.merger(Options{FileAnnotation: "MERGED FILE", AutoSave: true})

	res, err := m.FileMerge(alphaNote, omegaNote)
	if err != nil {
		t.Fatalf("FileMerge() error = %v", err)
	}

	want := "#+title: Omega\n\nstart\n\n* MERGED FILE: Alpha\n\nloop [[note:20240104T130000]] here\n"
	if got := env.read(omegaNote); got != want {
		t.Errorf("destination = %q, want %q", got, want)
	}
	if want := []string{omegaNote}; !reflect.DeepEqual(res.Rewritten, want) {
		t.Errorf("Rewritten = %v, want %v", res.Rewritten, want)
	}
	if want := []string{omegaNote}; !reflect.DeepEqual(res.Persisted, want) {
		t.Errorf("Persisted = %v, want %v", res.Persisted, want)
	}
}

func TestFileMerge_MixedFlavorBacklinks(t *testing.T) {
	betaMD := "20240102T110000--beta.md"
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\ncontent\n",
		betaMD:    "---\ntitle: Beta\n---\n\nref [Alpha](note:20240101T100000)\n",
		omegaNote: "#+title: Omega\n\n",
	})
	m := env.merger(Options{AutoSave: true})

	res, err := m.FileMerge(alphaNote, omegaNote)
	if err != nil {
		t.Fatalf("FileMerge() error = %v", err)
	}

	if want := []string{betaMD}; !reflect.DeepEqual(res.Rewritten, want) {
		t.Errorf("Rewritten = %v, want %v", res.Rewritten, want)
	}
	want := "---\ntitle: Beta\n---\n\nref [Alpha](note:20240104T130000)\n"
	if got := env.read(betaMD); got != want {
		t.Errorf("beta = %q, want %q", got, want)
	}
}

func TestFileMerge_EmptyAnnotationKeepsBareHeading(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nbody\n",
		omegaNote: "#+title: Omega\n\n",
	})
	m := env.merger(Options{AutoSave: true})

	if _, err := m.FileMerge(alphaNote, omegaNote); err != nil {
		t.Fatalf("FileMerge() error = %v", err)
	}

	want := "#+title: Omega\n\n* Alpha\n\nbody\n"
	if got := env.read(omegaNote); got != want {
		t.Errorf("destination = %q, want %q", got, want)
	}
}

func TestFileMerge_Trash(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nbody\n",
		omegaNote: "#+title: Omega\n\n",
	})
	m := env.merger(Options{UseTrash: true})

	res, err := m.FileMerge(alphaNote, omegaNote)
	if err != nil {
		t.Fatalf("FileMerge() error = %v", err)
	}

	if !res.Trashed {
		t.Error("Trashed = false, want true")
	}
	if _, err := os.Stat(filepath.Join(env.dir, storage.DefaultTrashDir, alphaNote)); err != nil {
		t.Errorf("trashed file missing: %v", err)
	}
	if _, err := env.store.Read(alphaNote); err == nil {
		t.Error("source still exists after trash")
	}
}

func TestFileMerge_ConfirmVetoSkipsFile(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nbody\n",
		betaNote:  "#+title: Beta\n\n[[note:20240101T100000]]\n",
		gammaNote: "#+title: Gamma\n\n[[note:20240101T100000]]\n",
		omegaNote: "#+title: Omega\n\n",
	})
	m := env.merger(Options{
		AutoSave: true,
		Confirm: func(path, oldID, newID string) bool {
			return path != betaNote
		},
	})

	res, err := m.FileMerge(alphaNote, omegaNote)
	if err != nil {
		t.Fatalf("FileMerge() error = %v", err)
	}

	if len(res.Failed) != 1 || res.Failed[0].Path != betaNote {
		t.Fatalf("Failed = %v, want one entry for %s", res.Failed, betaNote)
	}
	if got := res.Failed[0].Reason(); got != "declined by confirmation hook" {
		t.Errorf("Reason() = %q, want declined", got)
	}
	if want := []string{gammaNote}; !reflect.DeepEqual(res.Rewritten, want) {
		t.Errorf("Rewritten = %v, want %v", res.Rewritten, want)
	}
	if got := env.read(betaNote); !strings.Contains(got, alphaID) {
		t.Errorf("vetoed file was rewritten: %q", got)
	}
	if got := env.read(gammaNote); !strings.Contains(got, omegaID) {
		t.Errorf("gamma not rewritten: %q", got)
	}
	// A vetoed rewrite never blocks source cleanup.
	if _, err := env.store.Read(alphaNote); err == nil {
		t.Error("source still exists after merge")
	}
}

func TestFileMerge_MissingBacklinkFileIsolated(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nbody\n",
		gammaNote: "#+title: Gamma\n\n[[note:20240101T100000]]\n",
		omegaNote: "#+title: Omega\n\n",
	})
	corpus := corpusFunc(func(string) ([]string, error) {
		return []string{"ghost.org", gammaNote}, nil
	})
	m := env.mergerWith(Options{AutoSave: true}, corpus)

	res, err := m.FileMerge(alphaNote, omegaNote)
	if err != nil {
		t.Fatalf("FileMerge() error = %v", err)
	}

	if len(res.Failed) != 1 || res.Failed[0].Path != "ghost.org" {
		t.Fatalf("Failed = %v, want one entry for ghost.org", res.Failed)
	}
	if want := []string{gammaNote}; !reflect.DeepEqual(res.Rewritten, want) {
		t.Errorf("Rewritten = %v, want %v", res.Rewritten, want)
	}
	if _, err := env.store.Read(alphaNote); err == nil {
		t.Error("source still exists after merge")
	}
}

func TestFileMerge_BacklinkLookupFailureAborts(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nbody\n",
		omegaNote: "#+title: Omega\n\nuntouched\n",
	})
	corpus := corpusFunc(func(string) ([]string, error) {
		return nil, errors.New("index offline")
	})
	m := env.mergerWith(Options{}, corpus)

	if _, err := m.FileMerge(alphaNote, omegaNote); err == nil {
		t.Fatal("FileMerge() error = nil, want lookup failure")
	}

	// Nothing was mutated: the set is resolved before the append.
	if got := env.read(alphaNote); got != "#+title: Alpha\n\nbody\n" {
		t.Errorf("source changed: %q", got)
	}
	if got := env.read(omegaNote); got != "#+title: Omega\n\nuntouched\n" {
		t.Errorf("destination changed: %q", got)
	}
}

func TestFileMerge_UnsavedReported(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nbody\n",
		betaNote:  "#+title: Beta\n\n[[note:20240101T100000]]\n",
		omegaNote: "#+title: Omega\n\n",
	})
	m := env.merger(Options{})

	res, err := m.FileMerge(alphaNote, omegaNote)
	if err != nil {
		t.Fatalf("FileMerge() error = %v", err)
	}

	if want := []string{betaNote}; !reflect.DeepEqual(res.Unsaved, want) {
		t.Errorf("Unsaved = %v, want %v", res.Unsaved, want)
	}
	// The destination is persisted regardless: its copy of the source body
	// must be durable before the source is removed.
	if want := []string{omegaNote}; !reflect.DeepEqual(res.Persisted, want) {
		t.Errorf("Persisted = %v, want %v", res.Persisted, want)
	}
	if got := env.read(betaNote); !strings.Contains(got, alphaID) {
		t.Errorf("beta written without save policy: %q", got)
	}
	if want := []string{betaNote}; !reflect.DeepEqual(env.sessions.Unsaved(), want) {
		t.Errorf("sessions.Unsaved() = %v, want %v", env.sessions.Unsaved(), want)
	}
	if !strings.Contains(res.Summary(), "unsaved changes pending") {
		t.Errorf("Summary() = %q, want unsaved reminder", res.Summary())
	}
}

func TestFileMerge_ExternalUnsavedBufferSurvives(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nbody\n",
		betaNote:  "#+title: Beta\n\nref [[note:20240101T100000]]\n",
		omegaNote: "#+title: Omega\n\n",
	})
	buf, err := env.sessions.Acquire(betaNote)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	buf.SetContent(buf.Content() + "draft\n")

	m := env.merger(Options{AutoDiscard: true})
	if _, err := m.FileMerge(alphaNote, omegaNote); err != nil {
		t.Fatalf("FileMerge() error = %v", err)
	}

	// The dirty buffer was rewritten in place but neither saved nor dropped.
	after, err := env.sessions.Acquire(betaNote)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	want := "#+title: Beta\n\nref [[note:20240104T130000]]\ndraft\n"
	if got := after.Content(); got != want {
		t.Errorf("buffer = %q, want %q", got, want)
	}
	if !after.Dirty() {
		t.Error("buffer lost its unsaved flag")
	}
	if got := env.read(betaNote); got != "#+title: Beta\n\nref [[note:20240101T100000]]\n" {
		t.Errorf("disk content changed: %q", got)
	}
}

func TestFileMerge_PreconditionErrors(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote:    "#+title: Alpha\n\nbody\n",
		omegaNote:    "#+title: Omega\n\n",
		"plain.org":  "no identifier\n",
		"plain2.org": "no identifier\n",
	})
	m := env.merger(Options{})

	cases := []struct {
		name    string
		src     string
		dest    string
		wantErr error
	}{
		{"same file", alphaNote, alphaNote, apperr.ErrSameFile},
		{"flavor mismatch", alphaNote, "20240105T000000--delta.md", apperr.ErrFlavorMismatch},
		{"unsupported source", "doc.pdf", omegaNote, apperr.ErrUnsupportedFlavor},
		{"missing destination", alphaNote, "20240106T000000--ghost.org", apperr.ErrNotFound},
		{"source without identifier", "plain.org", omegaNote, apperr.ErrNoIdentifier},
		{"destination without identifier", alphaNote, "plain2.org", apperr.ErrNoIdentifier},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.FileMerge(tc.src, tc.dest); !errors.Is(err, tc.wantErr) {
				t.Errorf("FileMerge(%s, %s) error = %v, want %v", tc.src, tc.dest, err, tc.wantErr)
			}
		})
	}

	// Precondition failures leave the vault untouched.
	if got := env.read(alphaNote); got != "#+title: Alpha\n\nbody\n" {
		t.Errorf("source changed: %q", got)
	}
}

func TestRegionMerge_MovesFragmentWithLinks(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nkeep this\nMOVE ME\nand this\n",
		omegaNote: "#+title: Omega\n\ndest body\n",
	})
	m := env.merger(Options{RegionAnnotation: "MERGED REGION", AutoSave: true})

	res, err := m.RegionMerge(alphaNote, omegaNote, 26, 33, markup.KindQuoteBlock)
	if err != nil {
		t.Fatalf("RegionMerge() error = %v", err)
	}

	wantSrc := "#+title: Alpha\n\nkeep this\n[[note:20240104T130000][Omega]]\nand this\n"
	if got := env.read(alphaNote); got != wantSrc {
		t.Errorf("source = %q, want %q", got, wantSrc)
	}
	wantDest := "#+title: Omega\n\ndest body\n\nMERGED REGION: [[note:20240101T100000][Alpha]]\n#+begin_quote\nMOVE ME\n#+end_quote\n"
	if got := env.read(omegaNote); got != wantDest {
		t.Errorf("destination = %q, want %q", got, wantDest)
	}
	if want := []string{alphaNote, omegaNote}; !reflect.DeepEqual(res.Persisted, want) {
		t.Errorf("Persisted = %v, want %v", res.Persisted, want)
	}
	if res.Kind != markup.KindQuoteBlock {
		t.Errorf("Kind = %v, want %v", res.Kind, markup.KindQuoteBlock)
	}
	if unsaved := env.sessions.Unsaved(); len(unsaved) != 0 {
		t.Errorf("Unsaved() = %v, want none", unsaved)
	}
}

func TestRegionMerge_CrossFlavorMarkdownQuote(t *testing.T) {
	omegaMD := "20240104T130000--omega.md"
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nhello\nworld\n",
		omegaMD:   "---\ntitle: Omega\n---\n\nintro\n",
	})
	m := env.merger(Options{RegionAnnotation: "MERGED REGION", AutoSave: true})

	if _, err := m.RegionMerge(alphaNote, omegaMD, 16, 21, markup.KindMarkdownQuote); err != nil {
		t.Fatalf("RegionMerge() error = %v", err)
	}

	// The link left in the source is rendered in the source's flavor, the
	// back-link in the destination's.
	wantSrc := "#+title: Alpha\n\n[[note:20240104T130000][Omega]]\nworld\n"
	if got := env.read(alphaNote); got != wantSrc {
		t.Errorf("source = %q, want %q", got, wantSrc)
	}
	wantDest := "---\ntitle: Omega\n---\n\nintro\n\n> MERGED REGION: [Alpha](note:20240101T100000)\n> hello\n"
	if got := env.read(omegaMD); got != wantDest {
		t.Errorf("destination = %q, want %q", got, wantDest)
	}
}

func TestRegionMerge_SameFileChainsMutations(t *testing.T) {
	content := "#+title: Alpha\n\nhead\nCUT\ntail\n"
	env := newVaultEnv(t, map[string]string{alphaNote: content})
	m := env.merger(Options{RegionAnnotation: "MERGED REGION"})

	res, err := m.RegionMerge(alphaNote, alphaNote, 21, 24, markup.KindPlain)
	if err != nil {
		t.Fatalf("RegionMerge() error = %v", err)
	}

	want := "#+title: Alpha\n\nhead\n[[note:20240101T100000][Alpha]]\ntail\n\nMERGED REGION: [[note:20240101T100000][Alpha]]\nCUT\n"
	buf, err := env.sessions.Acquire(alphaNote)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got := buf.Content(); got != want {
		t.Errorf("buffer = %q, want %q", got, want)
	}
	if wantPaths := []string{alphaNote}; !reflect.DeepEqual(res.Unsaved, wantPaths) {
		t.Errorf("Unsaved = %v, want %v", res.Unsaved, wantPaths)
	}
	if got := env.read(alphaNote); got != content {
		t.Errorf("disk changed without save policy: %q", got)
	}
}

func TestRegionMerge_PreconditionErrors(t *testing.T) {
	alphaContent := "#+title: Alpha\n\nbody text\n \nmore\n"
	env := newVaultEnv(t, map[string]string{
		alphaNote:    alphaContent,
		omegaNote:    "#+title: Omega\n\n",
		"plain.org":  "no id here\n",
		"plain2.org": "no id here\n",
	})
	m := env.merger(Options{})

	cases := []struct {
		name       string
		src, dest  string
		start, end int
		kind       markup.FormatKind
		wantErr    error
	}{
		{"fence into org", alphaNote, omegaNote, 16, 25, markup.KindMarkdownFence, apperr.ErrKindNotAllowed},
		{"src block into markdown", alphaNote, "20240104T130000--omega.md", 16, 25, markup.KindSrcBlock, apperr.ErrKindNotAllowed},
		{"missing destination", alphaNote, "20240107T000000--nope.org", 16, 25, markup.KindPlain, apperr.ErrNotFound},
		{"negative start", alphaNote, omegaNote, -1, 5, markup.KindPlain, apperr.ErrInvalidRegion},
		{"empty range", alphaNote, omegaNote, 16, 16, markup.KindPlain, apperr.ErrInvalidRegion},
		{"end past content", alphaNote, omegaNote, 16, 999, markup.KindPlain, apperr.ErrInvalidRegion},
		{"blank fragment", alphaNote, omegaNote, 26, 28, markup.KindPlain, apperr.ErrBlankFragment},
		{"source without identifier", "plain.org", omegaNote, 0, 5, markup.KindPlain, apperr.ErrNoIdentifier},
		{"destination without identifier", alphaNote, "plain2.org", 16, 25, markup.KindPlain, apperr.ErrNoIdentifier},
		{"unsupported source", "doc.pdf", omegaNote, 0, 5, markup.KindPlain, apperr.ErrUnsupportedFlavor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.RegionMerge(tc.src, tc.dest, tc.start, tc.end, tc.kind); !errors.Is(err, tc.wantErr) {
				t.Errorf("RegionMerge() error = %v, want %v", err, tc.wantErr)
			}
		})
	}

	// Every failure above happened before the apply step: the source buffer
	// is still pristine.
	buf, err := env.sessions.Acquire(alphaNote)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got := buf.Content(); got != alphaContent {
		t.Errorf("source buffer = %q, want untouched", got)
	}
	if buf.Dirty() {
		t.Error("source buffer marked dirty by failed merges")
	}
}

func TestRegionMerge_AutoDiscardDropsDestination(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nhello\nworld\n",
		omegaNote: "#+title: Omega\n\n",
	})
	m := env.merger(Options{AutoSave: true, AutoDiscard: true})

	if _, err := m.RegionMerge(alphaNote, omegaNote, 16, 21, markup.KindPlain); err != nil {
		t.Fatalf("RegionMerge() error = %v", err)
	}

	// A re-acquire sees fresh disk content only if the buffer was dropped.
	if err := env.store.Write(omegaNote, []byte("sentinel\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf, err := env.sessions.Acquire(omegaNote)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got := buf.Content(); got != "sentinel\n" {
		t.Errorf("destination buffer survived discard: %q", got)
	}
}

func TestRegionMerge_GuardKeepsDirtyDestination(t *testing.T) {
	env := newVaultEnv(t, map[string]string{
		alphaNote: "#+title: Alpha\n\nhello\nworld\n",
		omegaNote: "#+title: Omega\n\n",
	})
	m := env.merger(Options{AutoDiscard: true})

	res, err := m.RegionMerge(alphaNote, omegaNote, 16, 21, markup.KindPlain)
	if err != nil {
		t.Fatalf("RegionMerge() error = %v", err)
	}

	if err := env.store.Write(omegaNote, []byte("sentinel\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf, err := env.sessions.Acquire(omegaNote)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got := buf.Content(); got == "sentinel\n" {
		t.Error("unsaved destination buffer was discarded")
	}
	if want := []string{alphaNote, omegaNote}; !reflect.DeepEqual(res.Unsaved, want) {
		t.Errorf("Unsaved = %v, want %v", res.Unsaved, want)
	}
}

func TestSeparatorFor(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"", ""},
		{"text", "\n\n"},
		{"text\n", "\n"},
		{"text\n\n", ""},
	}
	for _, tc := range cases {
		if got := separatorFor(tc.content); got != tc.want {
			t.Errorf("separatorFor(%q) = %q, want %q", tc.content, got, tc.want)
		}
	}
}
