// Package batch implements the batch orchestrator: component registry
// wiring, validation, and the two-phase (read -> write) run loop with
// concurrent reader dispatch and selector-driven pagination. Grounded on
// original_source/batchout/core/batch.py's from_config/with_*/run_once
// shape, generalized from its fixed (inputs, indexes, columns, outputs)
// graph to the full component set (extractors, selectors, tasks, maps) the
// newer Task/Selector model in original_source/batchout/tasks and
// batchout/selectors introduces.
package batch

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/ilia-khaustov/batchout-go/internal/column"
	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/data"
	"github.com/ilia-khaustov/batchout-go/internal/extractor"
	"github.com/ilia-khaustov/batchout-go/internal/index"
	"github.com/ilia-khaustov/batchout-go/internal/input"
	"github.com/ilia-khaustov/batchout-go/internal/logging"
	"github.com/ilia-khaustov/batchout-go/internal/mapcompile"
	"github.com/ilia-khaustov/batchout-go/internal/output"
	"github.com/ilia-khaustov/batchout-go/internal/processor"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
	"github.com/ilia-khaustov/batchout-go/internal/selector"
	"github.com/ilia-khaustov/batchout-go/internal/task"
	"github.com/ilia-khaustov/batchout-go/internal/walker"
	"github.com/ilia-khaustov/batchout-go/pkg/berrors"
)

// Batch wires and runs one component graph: inputs, extractors, indexes,
// columns, outputs, selectors, tasks, and per-source maps.
type Batch struct {
	reg *registry.Registry
	log *logging.Logger

	mu      sync.Mutex
	started bool

	inputs     map[string]input.Input
	extractors map[string]extractor.Extractor
	indexes    map[string]index.Index

	columnNames []string
	columns     map[string]column.Column
	types       map[string]column.Cast

	outputs   map[string]output.Output
	selectors map[string]*selector.SQL

	taskNames []string
	tasks     map[string]task.Task

	maps map[string][]mapcompile.Branch

	store *data.Store
}

// New constructs an empty Batch with every std component kind bound into
// its internal registry.
func New(log *logging.Logger) (*Batch, error) {
	reg := registry.New()
	if err := extractor.Register(reg, log); err != nil {
		return nil, err
	}
	if err := index.Register(reg); err != nil {
		return nil, err
	}
	if err := processor.Register(reg); err != nil {
		return nil, err
	}
	if err := input.Register(reg); err != nil {
		return nil, err
	}
	if err := output.Register(reg, log); err != nil {
		return nil, err
	}
	if err := selector.Register(reg); err != nil {
		return nil, err
	}
	if err := task.Register(reg); err != nil {
		return nil, err
	}

	return &Batch{
		reg:        reg,
		log:        log,
		inputs:     make(map[string]input.Input),
		extractors: make(map[string]extractor.Extractor),
		indexes:    make(map[string]index.Index),
		columns:    make(map[string]column.Column),
		types:      make(map[string]column.Cast),
		outputs:    make(map[string]output.Output),
		selectors:  make(map[string]*selector.SQL),
		tasks:      make(map[string]task.Task),
		maps:       make(map[string][]mapcompile.Branch),
	}, nil
}

// FromConfig builds a Batch from a parsed config document: with_inputs,
// with_extractors, with_indexes, with_columns, with_outputs, with_selectors,
// with_tasks, with_maps, in that order, then validates every reference.
func FromConfig(doc *config.Document, log *logging.Logger) (*Batch, error) {
	b, err := New(log)
	if err != nil {
		return nil, err
	}
	if err := b.WithInputs(doc.Inputs, doc.Defaults); err != nil {
		return nil, err
	}
	if err := b.WithExtractors(doc.Extractors, doc.Defaults); err != nil {
		return nil, err
	}
	if err := b.WithIndexes(doc.Indexes, doc.Defaults); err != nil {
		return nil, err
	}
	if err := b.WithColumns(doc.Columns, doc.Defaults); err != nil {
		return nil, err
	}
	if err := b.WithOutputs(doc.Outputs, doc.Defaults); err != nil {
		return nil, err
	}
	if err := b.WithSelectors(doc.Selectors, doc.Defaults); err != nil {
		return nil, err
	}
	if err := b.WithTasks(doc.Tasks, doc.Defaults); err != nil {
		return nil, err
	}
	if err := b.WithMaps(doc.Maps); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Batch) checkMutable(kind string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return berrors.NewChangedAfterFirstRun(kind)
	}
	return nil
}

// WithInputs constructs and records the named Input components.
func (b *Batch) WithInputs(fragments config.OrderedFragments, defaults map[string]map[string]any) error {
	if err := b.checkMutable("inputs"); err != nil {
		return err
	}
	merged := config.WithDefaults(fragments.Fragments, "inputs", defaults)
	for _, name := range fragments.Names {
		inst, err := b.reg.Create(registry.KindInput, merged[name])
		if err != nil {
			return fmt.Errorf("input %q: %w", name, err)
		}
		in, ok := inst.(input.Input)
		if !ok {
			return fmt.Errorf("input %q: constructed value does not implement Input", name)
		}
		b.inputs[name] = in
	}
	return nil
}

// WithExtractors constructs and records the named Extractor components.
func (b *Batch) WithExtractors(fragments config.OrderedFragments, defaults map[string]map[string]any) error {
	if err := b.checkMutable("extractors"); err != nil {
		return err
	}
	merged := config.WithDefaults(fragments.Fragments, "extractors", defaults)
	for _, name := range fragments.Names {
		inst, err := b.reg.Create(registry.KindExtractor, merged[name])
		if err != nil {
			return fmt.Errorf("extractor %q: %w", name, err)
		}
		ext, ok := inst.(extractor.Extractor)
		if !ok {
			return fmt.Errorf("extractor %q: constructed value does not implement Extractor", name)
		}
		b.extractors[name] = ext
	}
	return nil
}

// WithIndexes constructs and records the named Index components.
func (b *Batch) WithIndexes(fragments config.OrderedFragments, defaults map[string]map[string]any) error {
	if err := b.checkMutable("indexes"); err != nil {
		return err
	}
	merged := config.WithDefaults(fragments.Fragments, "indexes", defaults)
	for _, name := range fragments.Names {
		inst, err := b.reg.Create(registry.KindIndex, merged[name])
		if err != nil {
			return fmt.Errorf("index %q: %w", name, err)
		}
		idx, ok := inst.(index.Index)
		if !ok {
			return fmt.Errorf("index %q: constructed value does not implement Index", name)
		}
		b.indexes[name] = idx
	}
	return nil
}

// WithColumns constructs and records the named Column components, in
// declaration order. A column's `processors` key is an inline list of
// Processor fragments rather than a named reference, so it is resolved here
// through the registry before column.New is called (column.New itself has
// no visibility into the Processor registry).
func (b *Batch) WithColumns(fragments config.OrderedFragments, defaults map[string]map[string]any) error {
	if err := b.checkMutable("columns"); err != nil {
		return err
	}
	merged := config.WithDefaults(fragments.Fragments, "columns", defaults)
	for _, name := range fragments.Names {
		fragment := merged[name]
		procs, err := b.resolveProcessors(fragment)
		if err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		col, err := column.New(fragment, procs, b.log)
		if err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		if _, exists := b.columns[name]; !exists {
			b.columnNames = append(b.columnNames, name)
		}
		b.columns[name] = col
		b.types[name] = col.Cast()
	}
	return nil
}

func (b *Batch) resolveProcessors(fragment registry.Fragment) ([]processor.Processor, error) {
	raw, ok := fragment["processors"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, berrors.NewConfigInvalid("column", "processors", "must be a list", nil)
	}
	procs := make([]processor.Processor, 0, len(list))
	for _, item := range list {
		itemMap, ok := item.(map[string]any)
		if !ok {
			return nil, berrors.NewConfigInvalid("column", "processors", "each entry must be a mapping", nil)
		}
		inst, err := b.reg.Create(registry.KindProcessor, registry.Fragment(itemMap))
		if err != nil {
			return nil, err
		}
		p, ok := inst.(processor.Processor)
		if !ok {
			return nil, berrors.NewConfigInvalid("column", "processors", "constructed value does not implement Processor", nil)
		}
		procs = append(procs, p)
	}
	return procs, nil
}

// WithOutputs constructs and records the named Output components.
func (b *Batch) WithOutputs(fragments config.OrderedFragments, defaults map[string]map[string]any) error {
	if err := b.checkMutable("outputs"); err != nil {
		return err
	}
	merged := config.WithDefaults(fragments.Fragments, "outputs", defaults)
	for _, name := range fragments.Names {
		inst, err := b.reg.Create(registry.KindOutput, merged[name])
		if err != nil {
			return fmt.Errorf("output %q: %w", name, err)
		}
		out, ok := inst.(output.Output)
		if !ok {
			return fmt.Errorf("output %q: constructed value does not implement Output", name)
		}
		b.outputs[name] = out
	}
	return nil
}

// WithSelectors constructs and records the named Selector components.
func (b *Batch) WithSelectors(fragments config.OrderedFragments, defaults map[string]map[string]any) error {
	if err := b.checkMutable("selectors"); err != nil {
		return err
	}
	merged := config.WithDefaults(fragments.Fragments, "selectors", defaults)
	for _, name := range fragments.Names {
		inst, err := b.reg.Create(registry.KindSelector, merged[name])
		if err != nil {
			return fmt.Errorf("selector %q: %w", name, err)
		}
		sel, ok := inst.(*selector.SQL)
		if !ok {
			return fmt.Errorf("selector %q: constructed value is not a SQL selector", name)
		}
		b.selectors[name] = sel
	}
	return nil
}

// WithTasks constructs and records the named Task components, in
// declaration order (consulted by run_once's reader dispatch order).
func (b *Batch) WithTasks(fragments config.OrderedFragments, defaults map[string]map[string]any) error {
	if err := b.checkMutable("tasks"); err != nil {
		return err
	}
	merged := config.WithDefaults(fragments.Fragments, "tasks", defaults)
	for _, name := range fragments.Names {
		inst, err := b.reg.Create(registry.KindTask, merged[name])
		if err != nil {
			return fmt.Errorf("task %q: %w", name, err)
		}
		t, ok := inst.(task.Task)
		if !ok {
			return fmt.Errorf("task %q: constructed value does not implement Task", name)
		}
		if _, exists := b.tasks[name]; !exists {
			b.taskNames = append(b.taskNames, name)
		}
		b.tasks[name] = t
	}
	return nil
}

// WithMaps compiles the per-source `maps` literal into branches.
func (b *Batch) WithMaps(maps map[string][]any) error {
	if err := b.checkMutable("maps"); err != nil {
		return err
	}
	for source, elements := range maps {
		b.maps[source] = mapcompile.Compile(elements)
	}
	return nil
}

// Validate checks that every task reference (selector, inputs, outputs) and
// every column/index extractor reference resolves, as a pre-first-run
// validation pass.
func (b *Batch) Validate() error {
	for _, name := range b.taskNames {
		switch t := b.tasks[name].(type) {
		case *task.Reader:
			for _, in := range t.Inputs() {
				if _, ok := b.inputs[in]; !ok {
					return berrors.NewUndefinedReference(fmt.Sprintf("task %q", name), "input", in)
				}
			}
			if sel := t.Selector(); sel != "" {
				if _, ok := b.selectors[sel]; !ok {
					return berrors.NewUndefinedReference(fmt.Sprintf("task %q", name), "selector", sel)
				}
			}
		case *task.Writer:
			for _, out := range t.Outputs() {
				if _, ok := b.outputs[out]; !ok {
					return berrors.NewUndefinedReference(fmt.Sprintf("task %q", name), "output", out)
				}
			}
			if _, ok := b.selectors[t.Selector()]; !ok {
				return berrors.NewUndefinedReference(fmt.Sprintf("task %q", name), "selector", t.Selector())
			}
		}
	}
	for _, name := range b.columnNames {
		ref := b.columns[name].ExtractorRef()
		if _, ok := b.extractors[ref]; !ok {
			return berrors.NewUndefinedReference(fmt.Sprintf("column %q", name), "extractor", ref)
		}
	}
	for name, idx := range b.indexes {
		if _, ok := b.extractors[idx.ExtractorRef()]; !ok {
			return berrors.NewUndefinedReference(fmt.Sprintf("index %q", name), "extractor", idx.ExtractorRef())
		}
	}
	return nil
}

// ensureStore opens the store on first use and pre-creates every input
// source's table, empty, so a reader task whose selector queries a source
// no prior run has populated yet finds a table to select zero rows from
// instead of a missing-table error.
func (b *Batch) ensureStore() error {
	if b.store != nil {
		return nil
	}
	store, err := data.New(b.columnNames, b.types)
	if err != nil {
		return err
	}
	if err := store.WithSources(b.inputNames()...); err != nil {
		return err
	}
	b.store = store
	return nil
}

func (b *Batch) inputNames() []string {
	names := make([]string, 0, len(b.inputs))
	for name := range b.inputs {
		names = append(names, name)
	}
	return names
}

// selection is one selector's projected (columns, rows) pair.
type selection struct {
	columns []string
	rows    [][]any
}

// computeSelections runs every named selector against the store. When
// elideAllNull is set, rows with every column null are dropped before use
// as reader pagination parameters; write selections keep all-null rows,
// since a writer must still hand every selected row to Ingest.
func (b *Batch) computeSelections(names []string, elideAllNull bool) (map[string]selection, error) {
	out := make(map[string]selection, len(names))
	for _, name := range names {
		sel, ok := b.selectors[name]
		if !ok {
			continue
		}
		rows, err := sel.Apply(b.store)
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", name, err)
		}
		if elideAllNull {
			rows = nonNullRows(rows)
		}
		out[name] = selection{columns: sel.Columns(), rows: rows}
	}
	return out, nil
}

func nonNullRows(rows [][]any) [][]any {
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		for _, v := range row {
			if v != nil {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// orderedReaders and orderedWriters return this Batch's reader/writer tasks
// sorted by selector name, with empty-selector readers first, so readers
// that populate a source run before readers that page through it. Ties
// (same selector, different task) break on declaration order.
func (b *Batch) orderedReaders() []*task.Reader {
	var readers []*task.Reader
	for _, name := range b.taskNames {
		if r, ok := b.tasks[name].(*task.Reader); ok {
			readers = append(readers, r)
		}
	}
	sort.SliceStable(readers, func(i, j int) bool {
		return readers[i].Selector() < readers[j].Selector()
	})
	return readers
}

func (b *Batch) orderedWriters() []*task.Writer {
	var writers []*task.Writer
	for _, name := range b.taskNames {
		if w, ok := b.tasks[name].(*task.Writer); ok {
			writers = append(writers, w)
		}
	}
	return writers
}

// RunOnce executes one read -> write cycle.
func (b *Batch) RunOnce() error {
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()

	if err := b.ensureStore(); err != nil {
		return err
	}

	readers := b.orderedReaders()
	writers := b.orderedWriters()

	readSelectorNames := make([]string, 0, len(readers))
	for _, r := range readers {
		if r.Selector() != "" {
			readSelectorNames = append(readSelectorNames, r.Selector())
		}
	}
	selectionsToRead, err := b.computeSelections(readSelectorNames, true)
	if err != nil {
		return err
	}

	if err := b.store.Reset(); err != nil {
		return err
	}
	if err := b.store.WithSources(b.inputNames()...); err != nil {
		return err
	}

	for _, r := range readers {
		pkeys, pvals := b.paramsFor(r, selectionsToRead)

		results, err := b.dispatchReader(r, pkeys, pvals)
		if err != nil {
			return err
		}

		for _, result := range results {
			for source, rows := range result {
				for _, row := range rows {
					if err := b.store.WithRow(source, row); err != nil {
						return err
					}
				}
			}
		}

		if b.log != nil {
			b.log.Info("reader task completed", "selector", r.Selector(), "counts", b.store.Count(r.Inputs()...))
		}

		for _, name := range r.Inputs() {
			if in, ok := b.inputs[name]; ok {
				if err := in.Reset(); err != nil {
					return berrors.NewInputError(name, err)
				}
			}
		}
	}

	writeSelectorNames := make([]string, 0, len(writers))
	for _, w := range writers {
		writeSelectorNames = append(writeSelectorNames, w.Selector())
	}
	selectionsToWrite, err := b.computeSelections(writeSelectorNames, false)
	if err != nil {
		return err
	}

	for _, w := range writers {
		sel := selectionsToWrite[w.Selector()]
		for _, outName := range w.Outputs() {
			out, ok := b.outputs[outName]
			if !ok {
				continue
			}
			if _, err := out.Ingest(sel.columns, sel.rows); err != nil {
				return berrors.NewOutputError(outName, err)
			}
			if err := out.Commit(); err != nil {
				return berrors.NewOutputError(outName, err)
			}
		}
	}

	for name, in := range b.inputs {
		if err := in.Commit(); err != nil {
			return berrors.NewInputError(name, err)
		}
	}

	if b.log != nil {
		b.log.Info("run completed", "rows", b.store.Total())
	}
	return nil
}

// paramsFor resolves a reader task's parameter tuples: the previous run's
// selection rows for its selector, or a single empty tuple with no selector.
func (b *Batch) paramsFor(r *task.Reader, selections map[string]selection) ([]string, [][]any) {
	if r.Selector() == "" {
		return nil, [][]any{{}}
	}
	sel := selections[r.Selector()]
	return sel.columns, sel.rows
}

// dispatchReader fans one parameter tuple per pval out to a bounded pool of
// size r.Threads, each running readOne, and joins before returning.
// Grounded on internal/engine/executor.go's Execute function (per-level
// wg.Add/go func gated by a buffered channel), here gating
// per-parameter-tuple work units within one reader task instead of
// per-DAG-level steps.
func (b *Batch) dispatchReader(r *task.Reader, pkeys []string, pvals [][]any) ([]map[string][][]any, error) {
	threads := r.Threads()
	if threads < 1 {
		threads = 1
	}

	sem := make(chan struct{}, threads)
	results := make([]map[string][][]any, len(pvals))
	errs := make([]error, len(pvals))
	var wg sync.WaitGroup

	for i, tuple := range pvals {
		params := make(map[string]any, len(pkeys))
		for j, key := range pkeys {
			if j < len(tuple) {
				params[key] = tuple[j]
			}
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(index int, params map[string]any) {
			defer wg.Done()
			defer func() { <-sem }()
			acc, err := b.readOne(r.Inputs(), params)
			results[index] = acc
			errs[index] = err
		}(i, params)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// readOne implements _read_one: clones the named inputs, runs a fresh
// walker pass over every payload each clone fetches, accumulates rows in a
// local per-source accumulator, and commits the clones. It never touches
// the Batch's shared Data; the controller merges the returned accumulator
// in dispatch order once all workers of the task have joined.
func (b *Batch) readOne(inputs []string, params map[string]any) (map[string][][]any, error) {
	acc := make(map[string][][]any)
	idx := walker.MapIndexes{Index: b.indexes, Extractors: b.extractors}

	for _, name := range inputs {
		orig, ok := b.inputs[name]
		if !ok {
			continue
		}
		clone, err := orig.Clone()
		if err != nil {
			return nil, berrors.NewInputError(name, err)
		}

		for {
			payload, err := clone.Fetch(params)
			if err != nil {
				return nil, berrors.NewInputError(name, err)
			}
			if payload == nil {
				break
			}
			b.walkPayload(name, payload, idx, acc)
		}

		if err := clone.Commit(); err != nil {
			return nil, berrors.NewInputError(name, err)
		}
	}
	return acc, nil
}

// walkPayload runs every compiled branch for source against payload and
// accumulates the non-all-null rows it produces.
func (b *Batch) walkPayload(source string, payload []byte, idx walker.Indexes, acc map[string][][]any) {
	for _, branch := range b.maps[source] {
		for _, emission := range walker.Walk(branch, idx, payload) {
			if row := b.buildRow(emission, payload); row != nil {
				acc[source] = append(acc[source], row)
			}
		}
	}
}

// buildRow assembles the full ordered row for one emission: for every
// column the Batch declares, its value if the emission's column tuple
// names it, else null. An entirely-null row is dropped (returned as nil).
func (b *Batch) buildRow(emission walker.Emission, payload []byte) []any {
	row := make([]any, len(b.columnNames))
	anyNonNull := false
	for i, name := range b.columnNames {
		if !containsName(emission.Columns, name) {
			continue
		}
		col := b.columns[name]
		ext := b.extractors[col.ExtractorRef()]
		v := col.Value(ext, payload, emission.Bindings)
		row[i] = v
		if v != nil {
			anyNonNull = true
		}
	}
	if !anyNonNull {
		return nil
	}
	return row
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

// RunForever invokes RunOnce up to maxRuns times (-1 = unbounded, 0 = never),
// sleeping minWait+rand()*maxWait between runs. ctx cancellation interrupts
// the inter-run sleep, the only suspension point run_forever itself owns.
func (b *Batch) RunForever(ctx context.Context, maxRuns int, minWait, maxWait time.Duration) error {
	for runs := 0; maxRuns < 0 || runs < maxRuns; runs++ {
		if err := b.RunOnce(); err != nil {
			return err
		}
		if maxRuns >= 0 && runs+1 >= maxRuns {
			break
		}

		wait := minWait + time.Duration(rand.Float64()*float64(maxWait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
