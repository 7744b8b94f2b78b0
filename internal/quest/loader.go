package quest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lawnchairsociety/questgraph/internal/logger"
	"gopkg.in/yaml.v3"
)

// SubquestDefinition for YAML parsing
type SubquestDefinition struct {
	ID          string `yaml:"id"`   // Optional, composed from the main quest ID when empty
	GUID        string `yaml:"guid"` // Optional, derived from the ID when empty
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Suffix      string `yaml:"suffix"` // Dev name suffix appended to composed IDs
}

// QuestDefinition for YAML parsing
type QuestDefinition struct {
	GUID        string               `yaml:"guid"`
	Title       string               `yaml:"title"`
	Description string               `yaml:"description"`
	Subquests   []SubquestDefinition `yaml:"subquests"`
	Unlocks     []string             `yaml:"unlocks"`   // Main quest IDs made available on completion
	Activates   []string             `yaml:"activates"` // Main quest IDs activated on completion
}

// QuestsConfig represents the quests.yaml structure
type QuestsConfig struct {
	Root   string                     `yaml:"root"`
	Quests map[string]QuestDefinition `yaml:"quests"`
}

// LoadQuestsFromYAML loads quest definitions from a YAML file
func LoadQuestsFromYAML(filename string) (*QuestsConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read quests file: %w", err)
	}
	return ParseQuestsYAML(data)
}

// ParseQuestsYAML parses quest definitions from YAML content
func ParseQuestsYAML(data []byte) (*QuestsConfig, error) {
	var config QuestsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse quests YAML: %w", err)
	}
	if config.Quests == nil {
		config.Quests = make(map[string]QuestDefinition)
	}
	return &config, nil
}

// Merge combines another QuestsConfig into this one. A root set in other wins.
// A quest ID defined in both is an error and leaves config unchanged.
func (config *QuestsConfig) Merge(other *QuestsConfig) error {
	if other == nil {
		return nil
	}
	for id := range other.Quests {
		if _, exists := config.Quests[id]; exists {
			return fmt.Errorf("%w: id %q defined more than once", ErrDuplicateQuest, id)
		}
	}
	if other.Root != "" {
		config.Root = other.Root
	}
	if config.Quests == nil {
		config.Quests = make(map[string]QuestDefinition, len(other.Quests))
	}
	for id, def := range other.Quests {
		config.Quests[id] = def
	}
	return nil
}

// BuildGraph resolves the definitions into a linked quest graph.
func (config *QuestsConfig) BuildGraph() (*Graph, error) {
	g := NewGraph()

	// Map iteration order is random; sort so the graph is deterministic
	ids := make([]string, 0, len(config.Quests))
	for id := range config.Quests {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		def := config.Quests[id]
		q, err := createQuestFromDefinition(id, &def)
		if err != nil {
			return nil, err
		}
		if err := g.Add(q); err != nil {
			return nil, err
		}
	}

	// Second pass: link downstream quests now that all exist
	for _, id := range ids {
		def := config.Quests[id]
		q, _ := g.Get(id)

		for _, childID := range def.Unlocks {
			child, err := resolveMainQuest(g, id, childID, "unlocks")
			if err != nil {
				return nil, err
			}
			if child.Main.Parent != nil && child.Main.Parent != q {
				logger.Warning("Quest is unlocked by more than one parent",
					"quest", childID, "parent", child.Main.Parent.ID, "other_parent", id)
			}
			q.AddUnlocks(child)
		}
		for _, childID := range def.Activates {
			child, err := resolveMainQuest(g, id, childID, "activates")
			if err != nil {
				return nil, err
			}
			q.AddActivates(child)
		}
	}

	if config.Root == "" {
		return nil, fmt.Errorf("quests config has no root quest")
	}
	if err := g.SetRoot(config.Root); err != nil {
		return nil, err
	}

	return g, nil
}

func resolveMainQuest(g *Graph, parentID, childID, field string) (*Quest, error) {
	child, exists := g.Get(childID)
	if !exists {
		return nil, fmt.Errorf("quest %q %s %q: %w", parentID, field, childID, ErrUnknownQuest)
	}
	if !child.IsMain() {
		return nil, fmt.Errorf("quest %q %s %q, which is a subquest", parentID, field, childID)
	}
	return child, nil
}

// createQuestFromDefinition converts a YAML definition to a main Quest with its subquests
func createQuestFromDefinition(id string, def *QuestDefinition) (*Quest, error) {
	subquests := make([]*Quest, len(def.Subquests))
	for i, sd := range def.Subquests {
		sqID := sd.ID
		if sqID == "" {
			sqID = ComposeSubquestID(id, i, sd.Suffix)
		}
		sq := NewSubquest(sqID, sd.Title)
		sq.Description = sd.Description
		sq.DevNameSuffix = sd.Suffix

		guid, err := parseGUID(sd.GUID, sqID)
		if err != nil {
			return nil, err
		}
		sq.GUID = guid
		subquests[i] = sq
	}

	q := NewMainQuest(id, def.Title, subquests...)
	q.Description = def.Description

	guid, err := parseGUID(def.GUID, id)
	if err != nil {
		return nil, err
	}
	q.GUID = guid

	return q, nil
}

func parseGUID(s, id string) (uuid.UUID, error) {
	if s == "" {
		return DeriveGUID(id), nil
	}
	guid, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("quest %q has invalid guid %q: %w", id, s, err)
	}
	return guid, nil
}

// ComposeSubquestID names a subquest after its main quest and position,
// e.g. "001_arrival_0" or "001_arrival_0_mayor".
func ComposeSubquestID(mainID string, index int, suffix string) string {
	var sb strings.Builder
	sb.WriteString(mainID)
	sb.WriteString("_")
	sb.WriteString(strconv.Itoa(index))
	if suffix != "" {
		sb.WriteString("_")
		sb.WriteString(suffix)
	}
	return sb.String()
}

// LoadGraphFromYAML loads and links a quest graph from a YAML file
func LoadGraphFromYAML(filename string) (*Graph, error) {
	config, err := LoadQuestsFromYAML(filename)
	if err != nil {
		return nil, err
	}
	return config.BuildGraph()
}

// LoadQuestsFromDirectory loads and merges all YAML files from a directory
func LoadQuestsFromDirectory(dir string) (*QuestsConfig, error) {
	merged := &QuestsConfig{
		Quests: make(map[string]QuestDefinition),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	fileCount := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		filePath := filepath.Join(dir, name)
		config, err := LoadQuestsFromYAML(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filePath, err)
		}
		if err := merged.Merge(config); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", filePath, err)
		}
		fileCount++
		logger.Info("Loaded quest file", "path", filePath, "quests", len(config.Quests))
	}

	logger.Info("Loaded quests from directory", "dir", dir, "files", fileCount, "total_quests", len(merged.Quests))
	return merged, nil
}

// LoadGraph loads a graph from a single YAML file or a directory of them.
func LoadGraph(path string) (*Graph, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat quests path: %w", err)
	}
	if !info.IsDir() {
		return LoadGraphFromYAML(path)
	}
	config, err := LoadQuestsFromDirectory(path)
	if err != nil {
		return nil, err
	}
	return config.BuildGraph()
}
