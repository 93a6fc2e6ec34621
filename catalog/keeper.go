// CLAUDE:SUMMARY Keeper orchestrator: ingest fragments from producers, resolve codes, derive texture scale, flush to the JSON index, audit and rescale stored records.
// CLAUDE:DEPENDS jsonindex, ledger, prodcode, texturescale, extract, render
// Package catalog ties the surfacekeeper pipeline together. A Keeper reads
// fragments from its producers, resolves each fragment's product code,
// merges it into an in-memory index and periodically flushes that index
// into the on-disk JSON catalog without ever dropping stored data.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hazyhaar/surfacekeeper/extract"
	"github.com/hazyhaar/surfacekeeper/fields"
	"github.com/hazyhaar/surfacekeeper/idgen"
	"github.com/hazyhaar/surfacekeeper/jsonindex"
	"github.com/hazyhaar/surfacekeeper/ledger"
	"github.com/hazyhaar/surfacekeeper/normalize"
	"github.com/hazyhaar/surfacekeeper/prodcode"
	"github.com/hazyhaar/surfacekeeper/record"
	"github.com/hazyhaar/surfacekeeper/render"
	"github.com/hazyhaar/surfacekeeper/texturescale"
)

// ErrNoLedger is returned by ledger queries when the ledger is disabled.
var ErrNoLedger = errors.New("catalog: ledger disabled")

// Status is the outcome class of a run, used as the process exit code.
type Status int

const (
	StatusClean    Status = 0
	StatusFatal    Status = 1
	StatusWarnings Status = 2
)

// Unresolved reasons.
const (
	ReasonNoEvidence = "no evidence"
	ReasonNoValid    = "no valid candidate"
)

// Result summarizes one ingest run.
type Result struct {
	RunID      string                  `json:"run_id"`
	Fragments  int                     `json:"fragments"`
	Records    int                     `json:"records"`
	Total      int                     `json:"total"`
	Flushes    int                     `json:"flushes"`
	Unresolved []ledger.UnresolvedCode `json:"unresolved"`
	Failed     []string                `json:"failed_producers,omitempty"`
	Status     Status                  `json:"status"`
}

// AuditResult summarizes one audit pass.
type AuditResult struct {
	RunID  string          `json:"run_id"`
	Fixed  bool            `json:"fixed"`
	Report prodcode.Report `json:"report"`
	Status Status          `json:"status"`
}

// ScaleResult summarizes one texture-scale pass.
type ScaleResult struct {
	RunID      string `json:"run_id"`
	Checked    int    `json:"checked"`
	Updated    int    `json:"updated"`
	NoEvidence int    `json:"no_evidence"`
	Status     Status `json:"status"`
}

// Keeper owns the JSON index, the run ledger and the renderer.
type Keeper struct {
	cfg      *Config
	logger   *slog.Logger
	store    *jsonindex.Store
	ledger   *ledger.Ledger
	renderer *render.Renderer
	parser   *extract.DetailParser

	// mu serializes the passes that write the index file.
	mu sync.Mutex
}

// New validates cfg and opens the ledger. Chrome is only started when a
// render source is first produced.
func New(cfg *Config, logger *slog.Logger) (*Keeper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = orDefault(logger)

	k := &Keeper{
		cfg:      cfg,
		logger:   logger,
		store:    jsonindex.New(cfg.IndexPath, logger),
		renderer: render.New(cfg.Render, logger),
		parser:   extract.NewDetailParser(logger),
	}
	if !cfg.DisableLedger {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("catalog: open ledger: %w", err)
		}
		k.ledger = l
	}
	return k, nil
}

// Close stops Chrome and closes the ledger.
func (k *Keeper) Close() error {
	var errs []error
	if err := k.renderer.Close(); err != nil && !errors.Is(err, render.ErrClosed) {
		errs = append(errs, err)
	}
	if k.ledger != nil {
		errs = append(errs, k.ledger.Close())
	}
	return errors.Join(errs...)
}

// Store returns the JSON index store.
func (k *Keeper) Store() *jsonindex.Store { return k.store }

// Ledger returns the run ledger, nil when disabled.
func (k *Keeper) Ledger() *ledger.Ledger { return k.ledger }

// Producers builds the configured sources in order.
func (k *Keeper) Producers() ([]Producer, error) {
	out := make([]Producer, 0, len(k.cfg.Sources))
	for _, src := range k.cfg.Sources {
		p, err := NewProducer(src, k.renderer, k.parser, k.logger)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Run ingests every configured source.
func (k *Keeper) Run(ctx context.Context) (*Result, error) {
	ps, err := k.Producers()
	if err != nil {
		return nil, err
	}
	return k.Ingest(ctx, ps...)
}

// Ingest runs producers one after the other. The index is flushed every
// FlushEvery fragments and after each producer. A producer that fails is
// logged and reported; the run goes on with the next one. A failed flush or
// a cancelled context ends the run with an error.
func (k *Keeper) Ingest(ctx context.Context, producers ...Producer) (*Result, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	ev, err := k.evidence(ctx)
	if err != nil {
		return nil, err
	}
	run, err := k.startRun(ctx, "ingest")
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: run.ID, Unresolved: []ledger.UnresolvedCode{}}
	in := &ingestion{
		k:    k,
		run:  run,
		res:  res,
		idx:  jsonindex.NewIndex(k.cfg.SurfaceGroup),
		ev:   ev,
		seen: make(map[string]bool),
	}

	var fatal error
	for _, p := range producers {
		k.logger.Info("catalog: producer start", "producer", p.Name())
		perr := p.Produce(ctx, func(frag record.Record) error {
			return in.add(ctx, p.Name(), frag)
		})
		if errors.Is(perr, jsonindex.ErrWrite) {
			fatal = perr
			break
		}
		if ferr := in.flush(); ferr != nil {
			fatal = ferr
			break
		}
		if perr != nil {
			if ctx.Err() != nil {
				fatal = perr
				break
			}
			k.logger.Error("catalog: producer failed", "producer", p.Name(), "error", perr)
			res.Failed = append(res.Failed, p.Name())
			continue
		}
		k.logger.Info("catalog: producer done", "producer", p.Name(), "fragments", res.Fragments)
	}

	res.Records = in.idx.Len()
	switch {
	case fatal != nil:
		res.Status = StatusFatal
	case len(res.Unresolved) > 0 || len(res.Failed) > 0:
		res.Status = StatusWarnings
	}

	run.Fragments, run.Records = res.Fragments, res.Total
	if err := k.finishRun(ctx, run, res.Status, fatal, res.Unresolved); err != nil && fatal == nil {
		fatal = err
	}
	if fatal != nil {
		return res, fatal
	}
	k.logger.Info("catalog: ingest done",
		"run", res.RunID, "fragments", res.Fragments, "records", res.Records,
		"total", res.Total, "unresolved", len(res.Unresolved))
	return res, nil
}

// ingestion is the state of one Ingest call.
type ingestion struct {
	k          *Keeper
	run        *ledger.Run
	res        *Result
	idx        *jsonindex.Index
	ev         map[string]ledger.Evidence
	seen       map[string]bool
	sinceFlush int
}

func (in *ingestion) add(ctx context.Context, producer string, frag record.Record) error {
	k := in.k
	in.res.Fragments++
	link := frag.Scalar(fields.ProductLink)
	in.recordEvidence(ctx, link, frag)

	cands := in.candidates(frag, link)
	code, src, err := prodcode.Resolve(cands)
	if err != nil {
		code = prodcode.BestEffort(cands)
		reason := ReasonNoValid
		if code == "" {
			reason = ReasonNoEvidence
		}
		k.logger.Warn("catalog: unresolved code",
			"producer", producer, "code", code, "product_link", link, "reason", reason)
		in.unresolved(ledger.UnresolvedCode{
			RunID: in.run.ID, Code: code, ProductLink: link, Producer: producer, Reason: reason,
		})
		if code == "" {
			return nil
		}
	} else {
		k.logger.Debug("catalog: code resolved", "producer", producer, "code", code, "source", src)
	}

	frag = withScale(in.idx, code, frag, in.ev[link])
	for key := range frag {
		if fields.IsTransient(key) {
			delete(frag, key)
		}
	}
	existing, _ := in.idx.Get(code)
	_, coerced := record.MergeReport(existing, frag)
	for _, field := range coerced {
		k.logger.Warn("catalog: type mismatch coerced", "code", code, "field", field, "producer", producer)
	}
	in.idx.Put(code, frag)

	in.sinceFlush++
	if in.sinceFlush >= k.cfg.FlushEvery {
		return in.flush()
	}
	return nil
}

// candidates extends the fragment's own evidence with what earlier detail
// pages said about the same link.
func (in *ingestion) candidates(frag record.Record, link string) []prodcode.Candidate {
	ev := in.ev[link]
	sku := frag.Scalar(fields.SKU)
	if sku == "" {
		sku = ev.SKU
	}
	img := frag.Scalar(fields.TextureImageURL)
	if img == "" {
		img = ev.ImageURL
	}
	return prodcode.Candidates(normalize.String(frag[fields.Code]), link, sku, img)
}

func (in *ingestion) recordEvidence(ctx context.Context, link string, frag record.Record) {
	if link == "" || (!frag.Has(fields.SKU) && !frag.Has(fields.TextureScaleHint)) {
		return
	}
	ev := ledger.Evidence{
		ProductLink: link,
		SKU:         frag.Scalar(fields.SKU),
		ImageURL:    frag.Scalar(fields.TextureImageURL),
		ScaleHint:   strings.Join(normalize.Array(frag[fields.TextureScaleHint]), "; "),
	}
	prev := in.ev[link]
	if ev.SKU == "" {
		ev.SKU = prev.SKU
	}
	if ev.ImageURL == "" {
		ev.ImageURL = prev.ImageURL
	}
	if ev.ScaleHint == "" {
		ev.ScaleHint = prev.ScaleHint
	}
	in.ev[link] = ev
	if in.k.ledger == nil {
		return
	}
	if err := in.k.ledger.PutEvidence(ctx, ev); err != nil {
		in.k.logger.Warn("catalog: evidence not stored", "product_link", link, "error", err)
	}
}

func (in *ingestion) unresolved(u ledger.UnresolvedCode) {
	key := u.Code + "\x00" + u.ProductLink
	if in.seen[key] {
		return
	}
	in.seen[key] = true
	in.res.Unresolved = append(in.res.Unresolved, u)
}

func (in *ingestion) flush() error {
	if in.sinceFlush == 0 {
		return nil
	}
	n, err := in.k.store.Flush(in.idx)
	if err != nil {
		in.k.logger.Error("catalog: flush failed", "path", in.k.store.Path(), "error", err)
		return err
	}
	in.sinceFlush = 0
	in.res.Total = n
	in.res.Flushes++
	return nil
}

// withScale fills texture_scale on frag when neither the indexed record nor
// the fragment has one and the evidence supports a hypothesis.
func withScale(idx *jsonindex.Index, code string, frag record.Record, ev ledger.Evidence) record.Record {
	frag = frag.Clone()
	existing, _ := idx.Get(code)
	view := record.Merge(existing, frag)
	if view.Has(fields.TextureScale) {
		return frag
	}
	scaled, _, err := texturescale.Apply(view, hypotheses(view, ev))
	if err != nil {
		return frag
	}
	frag[fields.TextureScale] = scaled[fields.TextureScale]
	return frag
}

// hypotheses adds the stored detail-page hint to the record's own.
func hypotheses(r record.Record, ev ledger.Evidence) []texturescale.Hypothesis {
	if ev.ScaleHint == "" || r.Has(fields.TextureScaleHint) {
		return texturescale.Hypotheses(r)
	}
	view := r.Clone()
	view[fields.TextureScaleHint] = ev.ScaleHint
	return texturescale.Hypotheses(view)
}

// Audit re-checks every stored code. With fix the repaired records are
// written back; otherwise the index file is left untouched.
func (k *Keeper) Audit(ctx context.Context, fix bool) (*AuditResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	ev, err := k.evidence(ctx)
	if err != nil {
		return nil, err
	}
	run, err := k.startRun(ctx, "audit")
	if err != nil {
		return nil, err
	}

	records := k.store.Load()
	out, rep := prodcode.Audit(records, auditEvidence(ev))
	if rep.Repaired == nil {
		rep.Repaired = []prodcode.Repair{}
	}
	if rep.Unresolved == nil {
		rep.Unresolved = []prodcode.Unresolved{}
	}
	for _, r := range rep.Repaired {
		k.logger.Info("catalog: code repaired",
			"old", r.OldCode, "new", r.NewCode, "source", r.Source, "merged", r.Merged, "fix", fix)
	}

	res := &AuditResult{RunID: run.ID, Report: rep}
	var fatal error
	if fix && len(rep.Repaired) > 0 {
		if err := k.store.Save(out); err != nil {
			fatal = err
		} else {
			res.Fixed = true
		}
	}

	unresolved := make([]ledger.UnresolvedCode, 0, len(rep.Unresolved))
	for _, u := range rep.Unresolved {
		unresolved = append(unresolved, ledger.UnresolvedCode{
			RunID: run.ID, Code: u.Code, ProductLink: u.ProductLink, Producer: "audit", Reason: u.Reason,
		})
	}
	switch {
	case fatal != nil:
		res.Status = StatusFatal
	case !rep.Clean():
		res.Status = StatusWarnings
	}

	run.Fragments, run.Records = len(records), len(out)
	if err := k.finishRun(ctx, run, res.Status, fatal, unresolved); err != nil && fatal == nil {
		fatal = err
	}
	if fatal != nil {
		return res, fatal
	}
	k.logger.Info("catalog: audit done",
		"run", run.ID, "checked", rep.Checked, "repaired", len(rep.Repaired), "unresolved", len(rep.Unresolved))
	return res, nil
}

// auditEvidence converts ledger rows into the detail fragments the audit
// re-resolves codes from.
func auditEvidence(ev map[string]ledger.Evidence) prodcode.Evidence {
	out := make(prodcode.Evidence, len(ev))
	for link, e := range ev {
		r := record.Record{fields.ProductLink: link}
		if e.SKU != "" {
			r[fields.SKU] = e.SKU
		}
		if e.ImageURL != "" {
			r[fields.TextureImageURL] = e.ImageURL
		}
		out[link] = r
	}
	return out
}

// Scale recomputes texture_scale for every stored record from its evidence,
// replacing the stored value. Records without evidence keep theirs.
func (k *Keeper) Scale(ctx context.Context) (*ScaleResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	ev, err := k.evidence(ctx)
	if err != nil {
		return nil, err
	}
	run, err := k.startRun(ctx, "scale")
	if err != nil {
		return nil, err
	}

	records := k.store.Load()
	res := &ScaleResult{RunID: run.ID, Checked: len(records)}
	for i, r := range records {
		prev, hadPrev := r.Size(fields.TextureScale)
		out, h, err := texturescale.Apply(r, hypotheses(r, ev[r.Scalar(fields.ProductLink)]))
		if err != nil {
			res.NoEvidence++
			continue
		}
		if hadPrev && prev == h.Size {
			continue
		}
		records[i] = out
		res.Updated++
		k.logger.Debug("catalog: texture scale set", "code", r.Code(), "scale", h.Size, "source", h.Source)
	}

	var fatal error
	if res.Updated > 0 {
		fatal = k.store.Save(records)
	}
	if fatal != nil {
		res.Status = StatusFatal
	}
	run.Fragments, run.Records = res.Checked, res.Updated
	if err := k.finishRun(ctx, run, res.Status, fatal, nil); err != nil && fatal == nil {
		fatal = err
	}
	if fatal != nil {
		return res, fatal
	}
	k.logger.Info("catalog: scale done", "run", run.ID, "checked", res.Checked, "updated", res.Updated)
	return res, nil
}

// Records returns every stored record sorted by code.
func (k *Keeper) Records() []record.Record {
	return k.store.Load()
}

// Lookup returns the stored record for code.
func (k *Keeper) Lookup(code string) (record.Record, bool) {
	code = normalize.Code(code)
	if code == "" {
		return nil, false
	}
	for _, r := range k.store.Load() {
		if r.Code() == code {
			return r, true
		}
	}
	return nil, false
}

// Filter returns the stored records matching every field=value pair.
func (k *Keeper) Filter(query map[string]string) []record.Record {
	out := []record.Record{}
	for _, r := range k.store.Load() {
		ok := true
		for field, value := range query {
			if !Matches(r, field, value) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether r carries value under field or any of its
// aliases. Array facets and finishes match any element; comparison ignores
// case.
func Matches(r record.Record, field, value string) bool {
	key := fields.Canonicalize(field)
	value = strings.TrimSpace(value)
	switch {
	case key == fields.Code:
		return r.Code() == normalize.Code(value)
	case key == fields.Finish:
		for _, f := range r.Finishes() {
			if strings.EqualFold(f.Name, value) || strings.EqualFold(f.Code, value) {
				return true
			}
		}
		return false
	case fields.IsArrayFacet(key):
		for _, v := range r.Strings(key) {
			if strings.EqualFold(v, value) {
				return true
			}
		}
		return false
	}
	return strings.EqualFold(r.Scalar(key), value)
}

// LatestUnresolved returns the most recent run and its unresolved codes.
func (k *Keeper) LatestUnresolved(ctx context.Context) (*ledger.Run, []ledger.UnresolvedCode, error) {
	if k.ledger == nil {
		return nil, nil, ErrNoLedger
	}
	run, err := k.ledger.LatestRun(ctx)
	if err != nil {
		return nil, nil, err
	}
	us, err := k.ledger.Unresolved(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	if us == nil {
		us = []ledger.UnresolvedCode{}
	}
	return run, us, nil
}

// Runs lists recent runs.
func (k *Keeper) Runs(ctx context.Context, limit int) ([]*ledger.Run, error) {
	if k.ledger == nil {
		return nil, ErrNoLedger
	}
	return k.ledger.Runs(ctx, limit)
}

func (k *Keeper) startRun(ctx context.Context, kind string) (*ledger.Run, error) {
	if k.ledger == nil {
		return &ledger.Run{ID: "run_" + idgen.New(), Kind: kind, IndexPath: k.store.Path()}, nil
	}
	run, err := k.ledger.StartRun(ctx, kind, k.store.Path())
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return run, nil
}

func (k *Keeper) finishRun(ctx context.Context, run *ledger.Run, status Status, runErr error, unresolved []ledger.UnresolvedCode) error {
	run.Status = int(status)
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if k.ledger == nil {
		return nil
	}
	// The run row is written even when ctx was cancelled mid-run.
	if err := k.ledger.FinishRun(context.WithoutCancel(ctx), run, unresolved); err != nil {
		k.logger.Error("catalog: finish run", "run", run.ID, "error", err)
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

func (k *Keeper) evidence(ctx context.Context) (map[string]ledger.Evidence, error) {
	if k.ledger == nil {
		return make(map[string]ledger.Evidence), nil
	}
	ev, err := k.ledger.AllEvidence(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return ev, nil
}
