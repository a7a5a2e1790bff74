package main

import (
	"context"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	agentcontext "github.com/AutoByteus/autobyteus-sub006/pkg/agent/context"
	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/memory"
	"github.com/AutoByteus/autobyteus-sub006/pkg/config"
	"github.com/AutoByteus/autobyteus-sub006/pkg/llm/openai"
	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

func runInspect(ctx context.Context, env *cliEnv, args []string) error {
	fs := newCommandFlags(env, "inspect")
	kind := fs.String("kind", string(memory.KindRawTrace), "Collection: raw_trace, episodic or semantic")
	turns := fs.String("turns", "", "Glob over turn ids, e.g. 'turn_00{01,02}'")
	limit := fs.Int("limit", 0, "Only the most recent N records (0 = all)")
	asJSON := fs.Bool("json", false, "Print records as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, err := newTurnFilter(*turns)
	if err != nil {
		return err
	}
	store, err := env.openStore()
	if err != nil {
		return err
	}

	switch memory.Kind(*kind) {
	case memory.KindRawTrace:
		raw, err := memory.ListRawTraces(ctx, store, 0)
		if err != nil {
			return err
		}
		raw = lastN(filter.Traces(raw), *limit)
		if *asJSON {
			return printEach(env.out, raw)
		}
		if len(raw) == 0 {
			env.out.Line("%s", env.out.Muted("no raw traces"))
			return nil
		}
		env.out.printTraces(raw)

	case memory.KindEpisodic:
		episodes, err := memory.ListEpisodic(ctx, store, 0)
		if err != nil {
			return err
		}
		var matched []*memory.EpisodicItem
		for _, ep := range episodes {
			if filter.MatchAny(ep.TurnIDs) {
				matched = append(matched, ep)
			}
		}
		matched = lastN(matched, *limit)
		if *asJSON {
			return printEach(env.out, matched)
		}
		if len(matched) == 0 {
			env.out.Line("%s", env.out.Muted("no episodic memory"))
			return nil
		}
		for _, ep := range matched {
			env.out.Heading("%s  %s", turnSpan(ep.TurnIDs), env.out.Muted(ep.ID))
			env.out.Line("%s", ep.Summary)
		}

	case memory.KindSemantic:
		if filter != nil {
			return fmt.Errorf("-turns does not apply to semantic memory")
		}
		facts, err := memory.ListSemantic(ctx, store, *limit)
		if err != nil {
			return err
		}
		if *asJSON {
			return printEach(env.out, facts)
		}
		if len(facts) == 0 {
			env.out.Line("%s", env.out.Muted("no semantic memory"))
			return nil
		}
		for _, f := range facts {
			env.out.Line("- %s %s", f.Fact, env.out.Muted(fmt.Sprintf("(confidence %.2f)", f.Confidence)))
		}

	default:
		return fmt.Errorf("unknown kind %q (must be raw_trace, episodic or semantic)", *kind)
	}
	return nil
}

func runArchive(ctx context.Context, env *cliEnv, args []string) error {
	fs := newCommandFlags(env, "archive")
	turns := fs.String("turns", "", "Glob over turn ids")
	asJSON := fs.Bool("json", false, "Print records as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, err := newTurnFilter(*turns)
	if err != nil {
		return err
	}
	store, err := env.openStore()
	if err != nil {
		return err
	}

	archived, err := store.ReadArchiveRawTraces(ctx)
	if err != nil {
		return err
	}
	archived = filter.Traces(archived)
	if *asJSON {
		return printEach(env.out, archived)
	}
	if len(archived) == 0 {
		env.out.Line("%s", env.out.Muted("archive is empty"))
		return nil
	}
	env.out.printTraces(archived)
	return nil
}

func runCompact(ctx context.Context, env *cliEnv, args []string) error {
	fs := newCommandFlags(env, "compact")
	tail := fs.Int("tail", env.cfg.Memory.RawTailTurns, "Recent turns to keep verbatim")
	extractive := fs.Bool("extractive", false, "Summarize without an LLM")
	dryRun := fs.Bool("dry-run", false, "Only print the compaction window")
	if err := fs.Parse(args); err != nil {
		return err
	}
	store, err := env.openStore()
	if err != nil {
		return err
	}

	var summarizer agentcontext.Summarizer = &agentcontext.ExtractiveSummarizer{}
	if !*extractive && !*dryRun {
		provider, err := openai.NewProvider(env.cfg.APIKey(),
			openai.WithModel(env.cfg.LLM.Model),
			openai.WithBaseURL(env.cfg.LLM.BaseURL),
		)
		if err != nil {
			return fmt.Errorf("failed to create LLM provider: %w", err)
		}
		summarizer = agentcontext.NewLLMSummarizer(provider,
			agentcontext.WithSummarizationModel(env.cfg.LLM.SummarizationModel))
	}

	compactor := agentcontext.NewCompactor(store, summarizer,
		agentcontext.NewPolicy(env.cfg.Memory.TriggerRatio, *tail))
	window, err := compactor.SelectCompactionWindow(ctx)
	if err != nil {
		return err
	}
	if len(window) == 0 {
		env.out.Line("%s", env.out.Muted(fmt.Sprintf("nothing to compact: %d or fewer turns in raw memory", *tail)))
		return nil
	}
	env.out.Heading("Compaction window %s (%d turns)", turnSpan(window), len(window))
	if *dryRun {
		return nil
	}

	events := make(chan *types.MemoryEvent)
	compactor.SetEventChannel(events)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			printEvent(env.out, ev)
		}
	}()

	result, err := compactor.Compact(ctx, window)
	close(events)
	wg.Wait()
	if err != nil {
		return err
	}

	env.out.Line("%s", result.EpisodicSummary)
	for _, f := range result.SemanticFacts {
		env.out.Line("- %s", f.Fact)
	}
	return nil
}

func printEvent(p *printer, ev *types.MemoryEvent) {
	switch ev.Type {
	case types.EventTypeCompactionStart:
		p.Line("%s", p.Muted(fmt.Sprintf("summarizing %d traces...", ev.Compaction.TracesCompacted)))
	case types.EventTypeCompactionComplete:
		p.Line("%s", p.Label(fmt.Sprintf("archived %d traces, wrote %d facts in %s",
			ev.Compaction.TracesCompacted, ev.Compaction.FactsWritten, ev.Compaction.Duration)))
	case types.EventTypeCompactionError:
		p.Line("%s", p.Error("compaction failed: "+ev.Compaction.ErrorMessage))
	}
}

// agentStats is the stats command's per-agent record.
type agentStats struct {
	AgentID     string `json:"agent_id"`
	RawTraces   int    `json:"raw_traces"`
	RawTurns    int    `json:"raw_turns"`
	Archived    int    `json:"archived_traces"`
	Episodic    int    `json:"episodic"`
	Semantic    int    `json:"semantic"`
	LastTurnID  string `json:"last_turn_id,omitempty"`
	PendingTool int    `json:"pending_tool_calls"`
}

func collectStats(ctx context.Context, store *memory.FileStore) (*agentStats, error) {
	raw, err := memory.ListRawTraces(ctx, store, 0)
	if err != nil {
		return nil, err
	}
	archived, err := store.ReadArchiveRawTraces(ctx)
	if err != nil {
		return nil, err
	}
	episodes, err := memory.ListEpisodic(ctx, store, 0)
	if err != nil {
		return nil, err
	}
	facts, err := memory.ListSemantic(ctx, store, 0)
	if err != nil {
		return nil, err
	}
	last, err := memory.LastTurnNumber(ctx, store)
	if err != nil {
		return nil, err
	}

	s := &agentStats{
		AgentID:   store.AgentID(),
		RawTraces: len(raw),
		RawTurns:  len(memory.DistinctTurnIDs(raw)),
		Archived:  len(archived),
		Episodic:  len(episodes),
		Semantic:  len(facts),
	}
	if last > 0 {
		s.LastTurnID = memory.FormatTurnID(last)
	}
	for _, ti := range memory.BuildToolInteractions(raw) {
		if ti.Status == memory.ToolStatusPending {
			s.PendingTool++
		}
	}
	return s, nil
}

func runStats(ctx context.Context, env *cliEnv, args []string) error {
	fs := newCommandFlags(env, "stats")
	all := fs.Bool("all", false, "Report every agent under the base directory")
	asJSON := fs.Bool("json", false, "Print stats as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	agentIDs := []string{env.agentID}
	if *all {
		ids, err := memory.ListAgentIDs(env.baseDir)
		if err != nil {
			return err
		}
		agentIDs = ids
	}

	var stats []*agentStats
	for _, id := range agentIDs {
		scoped := *env
		scoped.agentID = id
		store, err := scoped.openStore()
		if err != nil {
			return err
		}
		s, err := collectStats(ctx, store)
		if err != nil {
			return err
		}
		stats = append(stats, s)
	}

	if *asJSON {
		return printEach(env.out, stats)
	}
	if len(stats) == 0 {
		env.out.Line("%s", env.out.Muted("no agents under "+env.baseDir))
		return nil
	}
	for _, s := range stats {
		env.out.Heading("%s", s.AgentID)
		env.out.Line("  %s %d traces in %d turns", env.out.Label("raw       "), s.RawTraces, s.RawTurns)
		env.out.Line("  %s %d traces", env.out.Label("archived  "), s.Archived)
		env.out.Line("  %s %d", env.out.Label("episodic  "), s.Episodic)
		env.out.Line("  %s %d", env.out.Label("semantic  "), s.Semantic)
		if s.LastTurnID != "" {
			env.out.Line("  %s %s", env.out.Label("last turn "), s.LastTurnID)
		}
		if s.PendingTool > 0 {
			env.out.Line("  %s %d", env.out.Label("pending   "), s.PendingTool)
		}
	}
	return nil
}

func runConfig(_ context.Context, env *cliEnv, args []string) error {
	fs := newCommandFlags(env, "config")
	output := fs.String("o", "", "Write the configuration to this file instead of printing it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	effective := *env.cfg
	effective.Memory.BaseDir = env.baseDir
	effective.Memory.AgentID = env.agentID
	if err := effective.Validate(); err != nil {
		return err
	}
	if *output != "" {
		if err := config.Save(*output, &effective); err != nil {
			return err
		}
		env.out.Line("wrote %s", *output)
		return nil
	}

	b, err := yaml.Marshal(&effective)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Fprint(env.out.w, string(b))
	return nil
}

func printEach[T any](p *printer, records []T) error {
	for _, r := range records {
		if err := p.JSON(r); err != nil {
			return err
		}
	}
	return nil
}

func lastN[T any](s []T, n int) []T {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}
