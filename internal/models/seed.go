package models

// SeedFile is the declarative refinement configuration loaded by refinectl seed
type SeedFile struct {
	Models    []AIModel      `yaml:"models"`
	Workflows []SeedWorkflow `yaml:"workflows"`
	Prompts   []SeedPrompt   `yaml:"prompts"`
}

// SeedWorkflow declares a workflow with its phases
type SeedWorkflow struct {
	ID        string      `yaml:"id"`
	UseCaseID string      `yaml:"use_case_id"`
	Name      string      `yaml:"name"`
	AIModelID string      `yaml:"ai_model_id"`
	Phases    []SeedPhase `yaml:"phases"`
}

// SeedPhase declares a phase and its per-iteration actions
type SeedPhase struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Actions []SeedAction `yaml:"actions"`
}

// SeedAction declares one refinement action
type SeedAction struct {
	Name      string `yaml:"name"`
	ModelID   string `yaml:"model_id"`
	Iteration int    `yaml:"iteration"`
	Priority  int    `yaml:"priority"`
}

// SeedPrompt declares a prompt template
type SeedPrompt struct {
	UseCaseID string `yaml:"use_case_id"`
	ModelID   string `yaml:"model_id"`
	Category  string `yaml:"category"`
	Template  string `yaml:"template"`
}
