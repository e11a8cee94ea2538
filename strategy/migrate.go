package strategy

import "encoding/json"

// legacyStrategy is the pre-instruction-model wire shape: a flat list of
// steps with no Loop/Terminate support and no "elements"/type
// discriminants.
type legacyStrategy struct {
	Goal  string `json:"goal"`
	Steps []Step `json:"steps"`
}

// probe distinguishes the legacy shape from the current one without
// committing to either decode.
type probe struct {
	Elements json.RawMessage `json:"elements"`
	Steps    json.RawMessage `json:"steps"`
}

// Migrate accepts either the current StrategyMap JSON encoding or the
// legacy plain-steps-list shape ({"goal": ..., "steps": [...]}, no
// "elements"/type discriminants) and returns the current encoding,
// wrapping each legacy step into a Step instruction in place (spec.md
// §4.3: "A legacy plain-steps list must be migrated in-place to the
// instruction form"). Data already in the current shape is returned
// unchanged.
func Migrate(data []byte) ([]byte, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Elements != nil {
		return data, nil
	}

	var legacy legacyStrategy
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, err
	}

	sm := New(legacy.Goal)
	for _, step := range legacy.Steps {
		step := step
		sm.AddStep(step)
	}
	return json.Marshal(sm)
}

// UnmarshalJSON implements json.Unmarshaler, transparently migrating the
// legacy plain-steps shape so that both encodings deserialize into the
// same StrategyMap Go type.
func (s *StrategyMap) UnmarshalJSON(data []byte) error {
	migrated, err := Migrate(data)
	if err != nil {
		return err
	}
	type alias StrategyMap
	var a alias
	if err := json.Unmarshal(migrated, &a); err != nil {
		return err
	}
	*s = StrategyMap(a)
	return nil
}
