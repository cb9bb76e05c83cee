package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/inputsim/internal/maintenance"
	"github.com/verte-zerg/inputsim/internal/pattern"
	"github.com/verte-zerg/inputsim/internal/surface"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	kb := pattern.DefaultKeyboardSettings()
	ms := pattern.DefaultMouseSettings()
	iv := maintenance.DefaultIntervals()
	return fmt.Sprintf(`# inputsim configuration
# Uncomment a value to enable it. CLI flags and arguments override config values.
# Keys in the [keyboard] and [mouse] tables override shared keys for that variant.

# event_interval_min = %.1f           # Seconds between patterns (lower bound)
# event_interval_max = %.1f           # Seconds between patterns (upper bound)
# message_process_interval = %g      # Seconds between surface drains
# cleanup_interval = %g             # Seconds between surface refreshes
# resource_monitor_interval = %g     # Seconds between resource samples
# screen_width = %d
# screen_height = %d
# queue_capacity = %d
# log_level = %q
# log_format = %q                # text or json
# log_dir = "/path/to/logs"
# console_logging_enabled = true
# history_enabled = true
# history_db = "/path/to/inputsim.db"
# journal_file = "/path/to/journal.jsonl"

[keyboard]
# key_interval_min = %g
# key_interval_max = %g
# word_length_min = %d
# word_length_max = %d
# sentence_min_words = %d
# sentence_max_words = %d
# number_min_length = %d
# number_max_length = %d
# typo_probability = %g
# correction_probability = %g
# capitalization_probability = %g
# common_words_probability = %g
# special_key_probability = %g
# space_after_word_probability = %g
# common_words = ["the", "be", "to", "of", "and"]
# common_words_file = "/path/to/words.txt"   # One word per line, # comments allowed
# typing_patterns = [%s]
# typing_pattern_weights = [%s]

[mouse]
# movement_min_distance = %g
# movement_max_distance = %g
# click_probability = %g
# scroll_probability = %g
# double_click_probability = %g
# button_types = ["left", "right", "middle"]
# button_weights = [0.7, 0.2, 0.1]
# linear_min_steps = %d
# linear_max_steps = %d
# circular_min_radius = %g
# circular_max_radius = %g
# circular_min_steps = %d
# circular_max_steps = %d
# targeted_targets = [{ x_ratio = 0.5, y_ratio = 0.5, weight = 5 }]
# movement_patterns = [%s]
# movement_pattern_weights = [%s]
`,
		defaultEventMin,
		defaultEventMax,
		iv.Drain.Seconds(),
		iv.Refresh.Seconds(),
		iv.Sample.Seconds(),
		pattern.DefaultBounds.Width,
		pattern.DefaultBounds.Height,
		surface.DefaultQueueCapacity,
		defaultLogLevel,
		defaultLogFormat,
		kb.KeyIntervalMin.Seconds(),
		kb.KeyIntervalMax.Seconds(),
		kb.WordLengthMin,
		kb.WordLengthMax,
		kb.SentenceMinWords,
		kb.SentenceMaxWords,
		kb.NumberMinLength,
		kb.NumberMaxLength,
		kb.TypoProbability,
		kb.CorrectionProbability,
		kb.CapitalizationProbability,
		kb.CommonWordsProbability,
		kb.SpecialKeyProbability,
		kb.SpaceAfterWordProbability,
		patternNames(kb.Patterns),
		patternWeights(kb.Patterns),
		ms.MinDistance,
		ms.MaxDistance,
		ms.ClickProbability,
		ms.ScrollProbability,
		ms.DoubleClickProbability,
		ms.LinearMinSteps,
		ms.LinearMaxSteps,
		ms.CircularMinRadius,
		ms.CircularMaxRadius,
		ms.CircularMinSteps,
		ms.CircularMaxSteps,
		patternNames(ms.Patterns),
		patternWeights(ms.Patterns),
	)
}

func patternNames(ds []pattern.Descriptor) string {
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = fmt.Sprintf("%q", string(d.Pattern))
	}
	return strings.Join(names, ", ")
}

func patternWeights(ds []pattern.Descriptor) string {
	weights := make([]string, len(ds))
	for i, d := range ds {
		weights[i] = fmt.Sprintf("%g", d.Weight)
	}
	return strings.Join(weights, ", ")
}
