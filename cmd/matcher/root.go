package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"addrmatch/internal/cleaning"
	"addrmatch/internal/config"
	"addrmatch/internal/engine"
	"addrmatch/internal/loader"
	"addrmatch/internal/matching"
	"addrmatch/internal/pipeline"
)

// sampleRows caps how many annotated rows print to stdout when no output
// file is requested.
const sampleRows = 20

// runSpec is the YAML shape accepted by --spec. Flags set explicitly on the
// command line override the file.
type runSpec struct {
	Fuzzy     string   `yaml:"fuzzy"`
	Canonical string   `yaml:"canonical"`
	Stages    []string `yaml:"stages"`
	Out       string   `yaml:"out"`
	Explain   bool     `yaml:"explain"`
}

func newRootCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "matcher",
		Short:         "Deterministic UK address matching",
		Long:          "Match fuzzy address records against a canonical address set using deterministic SQL pipeline stages.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCmd(cfg, log))
	rootCmd.AddCommand(newStagesCmd())
	return rootCmd
}

func newStagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the optional matching stages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"STAGE", "DESCRIPTION"})
			for _, name := range matching.AvailableStageNames() {
				table.Append([]string{string(name), matching.StageDescription(name)})
			}
			table.Render()
			return nil
		},
	}
}

func newRunCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	var spec runSpec
	var specPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a deterministic match pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if specPath != "" {
				if err := mergeSpecFile(cmd, specPath, &spec); err != nil {
					return err
				}
			}
			if len(spec.Stages) == 0 {
				spec.Stages = cfg.Stages
			}
			if spec.Fuzzy == "" || spec.Canonical == "" {
				return fmt.Errorf("both --fuzzy and --canonical are required")
			}
			return runMatch(cmd.Context(), cfg, log, spec)
		},
	}

	cmd.Flags().StringVar(&spec.Fuzzy, "fuzzy", "", "CSV of fuzzy address records")
	cmd.Flags().StringVar(&spec.Canonical, "canonical", "", "CSV of canonical address records")
	cmd.Flags().StringSliceVar(&spec.Stages, "stages", nil, "optional stages to run after exact matching")
	cmd.Flags().StringVar(&spec.Out, "out", "", "write annotated output CSV here instead of printing a sample")
	cmd.Flags().BoolVar(&spec.Explain, "explain", false, "print the stage plans without executing")
	cmd.Flags().StringVar(&specPath, "spec", "", "YAML run-spec file; explicit flags override it")
	return cmd
}

// mergeSpecFile fills in any run settings the command line left unset.
func mergeSpecFile(cmd *cobra.Command, path string, spec *runSpec) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read run spec: %w", err)
	}
	var fromFile runSpec
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("parse run spec %s: %w", path, err)
	}
	if !cmd.Flags().Changed("fuzzy") && fromFile.Fuzzy != "" {
		spec.Fuzzy = fromFile.Fuzzy
	}
	if !cmd.Flags().Changed("canonical") && fromFile.Canonical != "" {
		spec.Canonical = fromFile.Canonical
	}
	if !cmd.Flags().Changed("stages") && len(fromFile.Stages) > 0 {
		spec.Stages = fromFile.Stages
	}
	if !cmd.Flags().Changed("out") && fromFile.Out != "" {
		spec.Out = fromFile.Out
	}
	if !cmd.Flags().Changed("explain") {
		spec.Explain = fromFile.Explain
	}
	return nil
}

func runMatch(ctx context.Context, cfg *config.Config, log *slog.Logger, spec runSpec) error {
	stages := make([]matching.StageName, 0, len(spec.Stages))
	for _, s := range spec.Stages {
		stages = append(stages, matching.StageName(s))
	}
	passOpts := matching.PassOptions{
		EnabledStages: stages,
		Explain:       spec.Explain,
		Logger:        log,
		Run:           pipeline.RunOptionsFromEnv(),
	}

	if spec.Explain {
		res, err := matching.RunDeterministicMatchPass(ctx, nil, engine.Relation{}, engine.Relation{}, passOpts)
		if err != nil {
			return err
		}
		printPlan(res.Plan)
		return nil
	}

	db, err := engine.Open(ctx, cfg.DBPath, log)
	if err != nil {
		return err
	}
	defer db.Close()

	cache := loader.NewCache(cfg.CacheTTL)
	fuzzyRaw, err := cache.Load(ctx, db, "fuzzy_raw", spec.Fuzzy)
	if err != nil {
		return err
	}
	canonicalRaw, err := cache.Load(ctx, db, "canonical_raw", spec.Canonical)
	if err != nil {
		return err
	}

	runOpts := pipeline.RunOptionsFromEnv()
	fuzzy, err := cleaning.Clean(ctx, db, fuzzyRaw, "fuzzy_clean", runOpts)
	if err != nil {
		return fmt.Errorf("clean fuzzy input: %w", err)
	}
	canonical, err := cleaning.Clean(ctx, db, canonicalRaw, "canonical_clean", runOpts)
	if err != nil {
		return fmt.Errorf("clean canonical input: %w", err)
	}

	res, err := matching.RunDeterministicMatchPass(ctx, db, fuzzy, canonical, passOpts)
	if err != nil {
		return err
	}
	for _, o := range res.Outcomes {
		log.Info("stage outcome", "stage", string(o.Stage), "candidates", o.CandidatesIn, "matched", o.Matched)
	}

	if spec.Out != "" {
		if err := loader.WriteCSV(ctx, db, res.Output, spec.Out); err != nil {
			return err
		}
		log.Info("annotated output written", "path", spec.Out)
		return nil
	}
	return printSample(ctx, db, res.Output)
}

func printPlan(plans []matching.StagePlan) {
	for _, p := range plans {
		fmt.Printf("stage %s: %s\n", p.Name, p.Description)
		for _, f := range p.Fragments {
			fmt.Printf("\n-- fragment %s\n%s\n", f.Name, f.Template)
		}
		fmt.Println()
	}
}

func printSample(ctx context.Context, s engine.Session, rel engine.Relation) error {
	res, err := s.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", rel.Name, sampleRows))
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(res.Columns)
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = engine.AsString(v)
		}
		table.Append(cells)
	}
	table.Render()
	return nil
}
