package manager

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conclave-ai/conclave/pkg/models"
)

// DefaultRoster returns the built-in set of five agents used when no
// roster file is configured.
func DefaultRoster() []models.AgentSpec {
	return []models.AgentSpec{
		{
			ID:                 "analytical_agent",
			Type:               models.AgentTypeAnalytical,
			Name:               "Analytical Agent",
			Description:        "Specializes in data analysis, research, and systematic evaluation",
			Capabilities:       []string{"analysis", "research", "evaluation", "data_processing"},
			Specializations:    []string{"statistical_analysis", "trend_analysis", "comparative_analysis"},
			MaxConcurrentTasks: 1,
			TimeoutSeconds:     30,
			Priority:           4,
			Enabled:            true,
		},
		{
			ID:                 "creative_agent",
			Type:               models.AgentTypeCreative,
			Name:               "Creative Agent",
			Description:        "Specializes in creative tasks, ideation, and innovative solutions",
			Capabilities:       []string{"creative_writing", "ideation", "design", "innovation"},
			Specializations:    []string{"content_creation", "brainstorming", "artistic_solutions"},
			MaxConcurrentTasks: 1,
			TimeoutSeconds:     30,
			Priority:           3,
			Enabled:            true,
		},
		{
			ID:                 "technical_agent",
			Type:               models.AgentTypeTechnical,
			Name:               "Technical Agent",
			Description:        "Specializes in technical implementation and problem-solving",
			Capabilities:       []string{"programming", "system_design", "troubleshooting", "optimization"},
			Specializations:    []string{"software_development", "architecture", "debugging"},
			MaxConcurrentTasks: 1,
			TimeoutSeconds:     30,
			Priority:           4,
			Enabled:            true,
		},
		{
			ID:                 "research_agent",
			Type:               models.AgentTypeResearch,
			Name:               "Research Agent",
			Description:        "Specializes in information gathering and knowledge synthesis",
			Capabilities:       []string{"information_retrieval", "fact_checking", "synthesis", "verification"},
			Specializations:    []string{"academic_research", "market_research", "fact_verification"},
			MaxConcurrentTasks: 1,
			TimeoutSeconds:     30,
			Priority:           3,
			Enabled:            true,
		},
		{
			ID:                 "general_agent",
			Type:               models.AgentTypeGeneral,
			Name:               "General Agent",
			Description:        "Handles general tasks and provides balanced responses",
			Capabilities:       []string{"general_assistance", "conversation", "basic_analysis", "summarization"},
			Specializations:    []string{"customer_service", "general_inquiry", "task_coordination"},
			MaxConcurrentTasks: 1,
			TimeoutSeconds:     30,
			Priority:           2,
			Enabled:            true,
		},
	}
}

// rosterFile is the on-disk YAML roster format.
type rosterFile struct {
	Agents []models.AgentSpec `yaml:"agents"`
}

// LoadRoster reads an agent roster from a YAML file.
func LoadRoster(path string) ([]models.AgentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}

	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	if len(f.Agents) == 0 {
		return nil, fmt.Errorf("roster %s defines no agents", path)
	}

	for i := range f.Agents {
		if f.Agents[i].ID == "" {
			return nil, fmt.Errorf("roster %s: agent %d missing id", path, i)
		}
		if !f.Agents[i].Type.Valid() {
			return nil, fmt.Errorf("roster %s: agent %s has unknown type %q", path, f.Agents[i].ID, f.Agents[i].Type)
		}
	}
	return f.Agents, nil
}

// ApplyRoster reconciles the registry with a freshly loaded roster.
// Known agents get their Enabled flag updated in place; new agents are
// registered. Agents missing from the roster are disabled, never removed,
// so in-flight work is not orphaned.
func (m *Manager) ApplyRoster(specs []models.AgentSpec) error {
	inRoster := make(map[string]struct{}, len(specs))

	for _, spec := range specs {
		inRoster[spec.ID] = struct{}{}

		m.mu.RLock()
		existing, ok := m.agents[spec.ID]
		m.mu.RUnlock()

		if ok {
			existing.setEnabled(spec.Enabled)
			continue
		}
		if err := m.Register(spec); err != nil {
			return fmt.Errorf("applying roster: %w", err)
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, a := range m.agents {
		if _, ok := inRoster[id]; !ok {
			a.setEnabled(false)
		}
	}
	return nil
}
