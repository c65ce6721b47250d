package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// LoadSeedFile reads and validates a YAML refinement configuration
func LoadSeedFile(path string) (*models.SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates YAML seed data. Unknown fields are rejected.
func ParseSeed(data []byte) (*models.SeedFile, error) {
	var seed models.SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i := range seed.Prompts {
		if seed.Prompts[i].Category == "" {
			seed.Prompts[i].Category = models.PromptCategoryRefinement
		}
	}
	if err := ValidateSeed(&seed); err != nil {
		return nil, err
	}
	return &seed, nil
}

// ValidateSeed checks references and iteration numbering
func ValidateSeed(seed *models.SeedFile) error {
	var errs []error

	modelIDs := make(map[string]bool)
	for _, m := range seed.Models {
		if m.ID == "" || m.Name == "" {
			errs = append(errs, fmt.Errorf("model %q: id and name are required", m.ID))
			continue
		}
		if modelIDs[m.ID] {
			errs = append(errs, fmt.Errorf("model %q: duplicate id", m.ID))
		}
		modelIDs[m.ID] = true
	}

	phaseIDs := make(map[string]bool)
	for _, wf := range seed.Workflows {
		if wf.ID == "" || wf.UseCaseID == "" {
			errs = append(errs, fmt.Errorf("workflow %q: id and use_case_id are required", wf.ID))
		}
		if !modelIDs[wf.AIModelID] {
			errs = append(errs, fmt.Errorf("workflow %q: unknown model %q", wf.ID, wf.AIModelID))
		}
		for _, phase := range wf.Phases {
			if phase.ID == "" {
				errs = append(errs, fmt.Errorf("workflow %q: phase id is required", wf.ID))
				continue
			}
			if phaseIDs[phase.ID] {
				errs = append(errs, fmt.Errorf("phase %q: duplicate id", phase.ID))
			}
			phaseIDs[phase.ID] = true

			names := make(map[string]bool)
			for _, action := range phase.Actions {
				if action.Iteration < 1 {
					errs = append(errs, fmt.Errorf("phase %q action %q: iteration must be at least 1", phase.ID, action.Name))
				}
				if !modelIDs[action.ModelID] {
					errs = append(errs, fmt.Errorf("phase %q action %q: unknown model %q", phase.ID, action.Name, action.ModelID))
				}
				if names[action.Name] {
					errs = append(errs, fmt.Errorf("phase %q action %q: duplicate name", phase.ID, action.Name))
				}
				names[action.Name] = true
			}
		}
	}

	for i, p := range seed.Prompts {
		if !modelIDs[p.ModelID] {
			errs = append(errs, fmt.Errorf("prompt %d: unknown model %q", i, p.ModelID))
		}
		if p.UseCaseID == "" {
			errs = append(errs, fmt.Errorf("prompt %d: use_case_id is required", i))
		}
		if p.Category == models.PromptCategoryRefinement && !strings.Contains(p.Template, "{response}") {
			errs = append(errs, fmt.Errorf("prompt %d: refinement template has no {response} placeholder", i))
		}
	}

	return errors.Join(errs...)
}
