package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"goa.design/clue/log"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/agentimpl/anthropicagent"
	"github.com/flowkit/agentflow/agentimpl/openaiagent"
	"github.com/flowkit/agentflow/orchestrator"
	"github.com/flowkit/agentflow/payload"
	"github.com/flowkit/agentflow/strategy"
	"github.com/flowkit/agentflow/telemetry"
)

// mockAgent is a deterministic, no-network Agent used when no API key is
// configured for its vendor counterpart, so the demo always runs end to
// end without external credentials.
type mockAgent struct {
	name   agent.Ident
	expert agent.Expertise
	reply  string
}

func (m mockAgent) Execute(_ context.Context, p payload.Payload) (string, *agent.ApprovalRequest, error) {
	return fmt.Sprintf("%s: %s", m.reply, p.ToText()), nil, nil
}
func (m mockAgent) Expertise() agent.Expertise        { return m.expert }
func (m mockAgent) Description() string               { return "" }
func (m mockAgent) Capabilities() []payload.Capability { return nil }
func (m mockAgent) Name() agent.Ident                  { return m.name }

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file overriding the orchestrator's default tunables and task")
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	cfg := orchestrator.DefaultConfig()
	task := "What should our team prioritize this quarter?"
	if *configPath != "" {
		fc, err := loadFileConfig(*configPath)
		if err != nil {
			log.Fatal(ctx, err)
		}
		cfg, err = fc.applyTo(cfg)
		if err != nil {
			log.Fatal(ctx, err)
		}
		if fc.Task != "" {
			task = fc.Task
		}
	}

	registry := agent.NewRegistry()

	researcher := newResearchAgent()
	writer := newWriterAgent()
	if err := registry.Register(agent.Dynamic[string](researcher)); err != nil {
		log.Fatal(ctx, err)
	}
	if err := registry.Register(agent.Dynamic[string](writer)); err != nil {
		log.Fatal(ctx, err)
	}
	if err := registry.Register(agent.Dynamic[string](mockAgent{
		name:   "editor",
		expert: agent.TextExpertise("polishes drafts into a final answer"),
		reply:  "final",
	})); err != nil {
		log.Fatal(ctx, err)
	}

	strat := strategy.New("answer the user's question with a researched, written, and edited response").
		AddStep(strategy.Step{
			StepID:         "research",
			Description:    "gather relevant facts",
			AssignedAgent:  researcher.Name(),
			IntentTemplate: "{{task}}",
			OutputKey:      "research_notes",
		}).
		AddStep(strategy.Step{
			StepID:         "write",
			Description:    "draft a response from the research notes",
			AssignedAgent:  writer.Name(),
			IntentTemplate: "Draft a response using these notes: {{step_research_output}}",
			OutputKey:      "draft",
		}).
		AddStep(strategy.Step{
			StepID:         "edit",
			Description:    "polish the draft into a final answer",
			AssignedAgent:  "editor",
			IntentTemplate: "Polish this draft: {{step_write_output}}",
			OutputKey:      "final_answer",
		})

	orch := orchestrator.New(registry, "", cfg,
		orchestrator.WithStrategy(strat),
		orchestrator.WithTelemetry(telemetry.NewClueLogger(), telemetry.NewClueTracer(), telemetry.NewClueMetrics()),
	)

	result, err := orch.Execute(ctx, task)
	if err != nil {
		log.Fatal(ctx, err)
	}

	log.Print(ctx, log.KV{K: "status", V: string(result.Status)}, log.KV{K: "steps_executed", V: result.StepsExecuted})
	if result.FinalOutput != nil {
		var out string
		if err := json.Unmarshal(result.FinalOutput, &out); err == nil {
			fmt.Println("Final answer:", out)
		} else {
			fmt.Println("Final answer:", string(result.FinalOutput))
		}
	}
	if result.Status == orchestrator.StatusFailure {
		fmt.Fprintln(os.Stderr, "run failed:", result.ErrorMessage)
		os.Exit(1)
	}
}

// newResearchAgent wires the real Anthropic client when ANTHROPIC_API_KEY
// is set, falling back to a mock so the demo never requires credentials.
func newResearchAgent() agent.Agent[string] {
	expert := agent.TextExpertise("researches facts relevant to a question")
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		a, err := anthropicagent.NewFromAPIKey(key, anthropicagent.Options{
			Name:      "researcher",
			Model:     "claude-3-5-sonnet-20241022",
			MaxTokens: 1024,
			Expertise: expert,
		})
		if err == nil {
			return a
		}
	}
	return mockAgent{name: "researcher", expert: expert, reply: "research notes"}
}

// newWriterAgent wires the real OpenAI client when OPENAI_API_KEY is set,
// falling back to a mock so the demo never requires credentials.
func newWriterAgent() agent.Agent[string] {
	expert := agent.TextExpertise("drafts clear written responses from notes")
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		a, err := openaiagent.NewFromAPIKey(key, openaiagent.Options{
			Name:      "writer",
			Model:     "gpt-4o",
			Expertise: expert,
		})
		if err == nil {
			return a
		}
	}
	return mockAgent{name: "writer", expert: expert, reply: "draft"}
}
