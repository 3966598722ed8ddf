package iteration

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SummaryRequestText is the content of the synthetic user turn that asks for a summary.
const SummaryRequestText = "Summarize the conversation above. Respond with the summary only and do not add any additional information."

// ErrInvalidPrompts is returned when a prompt set is incomplete or unreadable.
var ErrInvalidPrompts = errors.New("invalid prompt set")

// Prompts holds the system prompts for both calls of an iteration.
type Prompts struct {
	Primary string `yaml:"primary"`
	Summary string `yaml:"summary"`
}

// Validate checks that both prompts are present.
func (p Prompts) Validate() error {
	if strings.TrimSpace(p.Primary) == "" {
		return fmt.Errorf("%w: primary prompt cannot be empty", ErrInvalidPrompts)
	}
	if strings.TrimSpace(p.Summary) == "" {
		return fmt.Errorf("%w: summary prompt cannot be empty", ErrInvalidPrompts)
	}
	return nil
}

// LoadPrompts reads a YAML prompt set from path.
func LoadPrompts(path string) (Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidPrompts, path, err)
	}

	var prompts Prompts
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return Prompts{}, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidPrompts, path, err)
	}

	if err := prompts.Validate(); err != nil {
		return Prompts{}, err
	}

	return prompts, nil
}
