// Package agent defines the Agent and DynamicAgent contracts, the
// name-keyed registry the orchestrator dispatches through, and the
// algebraic AgentError sum type.
package agent

// Ident is the strong type for agent names used as StrategyStep
// assigned_agent values and as registry keys.
type Ident string
