package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coderheist/rest.ai-sub000/internal/observability"
	"github.com/coderheist/rest.ai-sub000/internal/schemas"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one resume against one job offline",
	Long:  "Reads a job and a resume from JSON or YAML files, validates both and prints the match breakdown. Nothing is written to the database.",
	Args:  cobra.NoArgs,
	RunE:  runScore,
}

var (
	scoreJob    string
	scoreResume string
	scoreAI     bool
)

func init() {
	scoreCmd.Flags().StringVarP(&scoreJob, "job", "j", "", "Path to the job JSON or YAML file (required)")
	scoreCmd.Flags().StringVarP(&scoreResume, "resume", "r", "", "Path to the resume JSON or YAML file (required)")
	scoreCmd.Flags().BoolVar(&scoreAI, "ai", false, "Use the AI oracle when an API key is configured")

	if err := scoreCmd.MarkFlagRequired("job"); err != nil {
		panic(fmt.Sprintf("failed to mark job flag as required: %v", err))
	}
	if err := scoreCmd.MarkFlagRequired("resume"); err != nil {
		panic(fmt.Sprintf("failed to mark resume flag as required: %v", err))
	}

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// stdout carries the result, so logs stay off unless asked for
	logger := zap.NewNop()
	if cfg.Log.Debug {
		if logger, err = newLogger(cfg); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	var job types.Job
	if err := readDocument(scoreJob, schemas.Job, &job); err != nil {
		return err
	}
	if err := types.ValidateJob(&job); err != nil {
		return fmt.Errorf("invalid job %s: %w", scoreJob, err)
	}

	var resume types.Resume
	if err := readDocument(scoreResume, schemas.Resume, &resume); err != nil {
		return err
	}
	if err := types.ValidateResume(&resume); err != nil {
		return fmt.Errorf("invalid resume %s: %w", scoreResume, err)
	}

	scorer, closeScorer, err := buildScorer(cmd.Context(), cfg, scoreAI, logger)
	if err != nil {
		return err
	}
	defer closeScorer()

	result, err := scorer.Score(cmd.Context(), &job, &resume)
	if err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}

	if cfg.Log.JSON {
		return writeJSON(cmd, result)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintResult(result)
	return nil
}

// readDocument loads a JSON or YAML file, validates it against the named
// schema and decodes it into dst. YAML is converted to JSON first so both
// formats go through the same schema.
func readDocument(path, schema string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse YAML %s: %w", path, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return fmt.Errorf("failed to convert %s to JSON: %w", path, err)
		}
	}

	if err := schemas.Validate(schema, data); err != nil {
		return fmt.Errorf("%s does not match the %s schema: %w", path, schema, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
