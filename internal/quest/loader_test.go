package quest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleQuests = `
root: 001_arrival
quests:
  001_arrival:
    title: Arrival
    description: Reach the village.
    subquests:
      - title: Talk to the mayor
        suffix: mayor
      - title: Find an inn
    unlocks: [002_side]
    activates: [003_road]
  002_side:
    title: Lost cat
  003_road:
    title: The road north
    guid: 6b0c3c77-2f4b-4a8e-9d0f-1c2b3a4d5e6f
    subquests:
      - id: road_gate
        title: Open the gate
`

func writeQuestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadGraphFromYAML(t *testing.T) {
	path := writeQuestFile(t, t.TempDir(), "quests.yaml", sampleQuests)

	g, err := LoadGraphFromYAML(path)
	if err != nil {
		t.Fatalf("LoadGraphFromYAML returned error: %v", err)
	}

	if g.Count() != 6 {
		t.Errorf("Count = %d, want 6", g.Count())
	}

	root := g.Root()
	if root == nil || root.ID != "001_arrival" {
		t.Fatalf("root = %v, want 001_arrival", root)
	}
	if root.Description != "Reach the village." {
		t.Errorf("description = %q", root.Description)
	}

	subs := root.Main.Subquests
	if len(subs) != 2 {
		t.Fatalf("root has %d subquests, want 2", len(subs))
	}
	if subs[0].ID != "001_arrival_0_mayor" {
		t.Errorf("first subquest ID = %q, want 001_arrival_0_mayor", subs[0].ID)
	}
	if subs[0].DevNameSuffix != "mayor" {
		t.Errorf("suffix = %q", subs[0].DevNameSuffix)
	}
	if subs[1].ID != "001_arrival_1" {
		t.Errorf("second subquest ID = %q, want 001_arrival_1", subs[1].ID)
	}

	if len(root.Main.Unlocks) != 1 || root.Main.Unlocks[0].ID != "002_side" {
		t.Errorf("unlocks = %v", root.Main.Unlocks)
	}
	if len(root.Main.Activates) != 1 || root.Main.Activates[0].ID != "003_road" {
		t.Errorf("activates = %v", root.Main.Activates)
	}

	side, _ := g.Get("002_side")
	if side.Main.Parent != root {
		t.Error("002_side should have 001_arrival as parent")
	}

	road, _ := g.Get("003_road")
	if road.GUID.String() != "6b0c3c77-2f4b-4a8e-9d0f-1c2b3a4d5e6f" {
		t.Errorf("pinned GUID not applied, got %s", road.GUID)
	}
	if _, ok := g.Get("road_gate"); !ok {
		t.Error("explicit subquest ID should be kept")
	}
}

func TestBuildGraphErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		unknown bool
	}{
		{
			name:    "missing root",
			content: "quests:\n  a:\n    title: A\n",
		},
		{
			name:    "unknown root",
			content: "root: b\nquests:\n  a:\n    title: A\n",
			unknown: true,
		},
		{
			name:    "unknown unlock",
			content: "root: a\nquests:\n  a:\n    unlocks: [zzz]\n",
			unknown: true,
		},
		{
			name:    "activates subquest",
			content: "root: a\nquests:\n  a:\n    subquests:\n      - id: s\n    activates: [s]\n",
		},
		{
			name:    "bad guid",
			content: "root: a\nquests:\n  a:\n    guid: not-a-guid\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := ParseQuestsYAML([]byte(tt.content))
			if err != nil {
				t.Fatalf("ParseQuestsYAML returned error: %v", err)
			}
			_, err = config.BuildGraph()
			if err == nil {
				t.Fatal("expected BuildGraph error")
			}
			if tt.unknown && !errors.Is(err, ErrUnknownQuest) {
				t.Errorf("expected ErrUnknownQuest, got %v", err)
			}
		})
	}
}

func TestParseQuestsYAMLInvalid(t *testing.T) {
	if _, err := ParseQuestsYAML([]byte("quests: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadQuestsFromYAMLMissingFile(t *testing.T) {
	if _, err := LoadQuestsFromYAML(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadGraphFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeQuestFile(t, dir, "01_main.yaml", "root: a\nquests:\n  a:\n    title: A\n    unlocks: [b]\n")
	writeQuestFile(t, dir, "02_side.yml", "quests:\n  b:\n    title: B\n")
	writeQuestFile(t, dir, "notes.txt", "not yaml")

	g, err := LoadGraph(dir)
	if err != nil {
		t.Fatalf("LoadGraph returned error: %v", err)
	}
	if g.Count() != 2 {
		t.Errorf("Count = %d, want 2", g.Count())
	}
	if g.Root().ID != "a" {
		t.Errorf("root = %s, want a", g.Root().ID)
	}
}

func TestLoadGraphSingleFile(t *testing.T) {
	path := writeQuestFile(t, t.TempDir(), "quests.yaml", sampleQuests)

	g, err := LoadGraph(path)
	if err != nil {
		t.Fatalf("LoadGraph returned error: %v", err)
	}
	if g.Root().ID != "001_arrival" {
		t.Errorf("root = %s", g.Root().ID)
	}
}

func TestMergeRootOverride(t *testing.T) {
	base := &QuestsConfig{Root: "a", Quests: map[string]QuestDefinition{"a": {}}}
	if err := base.Merge(&QuestsConfig{Quests: map[string]QuestDefinition{"b": {}}}); err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	if base.Root != "a" {
		t.Errorf("empty root should not override, got %q", base.Root)
	}
	if err := base.Merge(&QuestsConfig{Root: "b"}); err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	if base.Root != "b" {
		t.Errorf("root = %q, want b", base.Root)
	}
	if err := base.Merge(nil); err != nil {
		t.Fatalf("Merge(nil) returned error: %v", err)
	}
	if len(base.Quests) != 2 {
		t.Errorf("quests = %d, want 2", len(base.Quests))
	}
}

func TestMergeDuplicateID(t *testing.T) {
	base := &QuestsConfig{Root: "a", Quests: map[string]QuestDefinition{"a": {Title: "First"}}}
	err := base.Merge(&QuestsConfig{Root: "c", Quests: map[string]QuestDefinition{
		"a": {Title: "Second"},
		"c": {},
	}})
	if !errors.Is(err, ErrDuplicateQuest) {
		t.Fatalf("expected ErrDuplicateQuest, got %v", err)
	}
	if base.Quests["a"].Title != "First" || base.Root != "a" || len(base.Quests) != 1 {
		t.Errorf("failed merge changed config: root=%q quests=%v", base.Root, base.Quests)
	}
}

func TestLoadGraphDirectoryDuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeQuestFile(t, dir, "a.yaml", "root: q1\nquests:\n  q1:\n    title: First\n    subquests:\n      - title: Step\n")
	writeQuestFile(t, dir, "b.yaml", "quests:\n  q1:\n    title: Second\n")

	if _, err := LoadGraph(dir); !errors.Is(err, ErrDuplicateQuest) {
		t.Fatalf("expected ErrDuplicateQuest, got %v", err)
	}
}

func TestComposeSubquestID(t *testing.T) {
	if got := ComposeSubquestID("001_intro", 2, ""); got != "001_intro_2" {
		t.Errorf("got %q", got)
	}
	if got := ComposeSubquestID("001_intro", 0, "talk"); got != "001_intro_0_talk" {
		t.Errorf("got %q", got)
	}
}
