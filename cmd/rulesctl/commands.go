package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/liamcoop/scholarships/answers"
	"github.com/liamcoop/scholarships/eligibility"
	"github.com/liamcoop/scholarships/internal/logger"
	"github.com/liamcoop/scholarships/rules"
	"github.com/liamcoop/scholarships/rulesets"
	"github.com/liamcoop/scholarships/scholarships"
)

var errInvalidRules = errors.New("rule file failed validation")

type rootOptions struct {
	output   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "rulesctl",
		Short:        "Validate scholarship rule files and evaluate applicant answers",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.output != "json" && opts.output != "yaml" {
				return fmt.Errorf("unsupported output %q (use json or yaml)", opts.output)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "Output format: json or yaml")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level for loader warnings, written to stderr")

	cmd.AddCommand(
		newValidateCmd(opts),
		newNormalizeCmd(opts),
		newEvaluateCmd(opts),
	)
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rules-file>",
		Short: "Check a JSON or YAML rule list against the rule schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readDocument(args[0])
			if err != nil {
				return err
			}

			nodes, issues := rules.ValidateJSON(data)
			if issues == nil {
				issues = []string{}
			}
			if err := render(cmd.OutOrStdout(), opts.output, map[string]any{
				"valid":  len(issues) == 0,
				"rules":  len(nodes),
				"issues": issues,
			}); err != nil {
				return err
			}

			if len(issues) > 0 {
				return fmt.Errorf("%w: %d issue(s)", errInvalidRules, len(issues))
			}
			return nil
		},
	}
}

func newNormalizeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <answers-file>",
		Short: "Print the canonical answer set for a raw answers file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readAnswers(args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, answers.ToAnswerSet(raw))
		},
	}
}

type evaluateOptions struct {
	rulesDir     string
	scholarships []string
}

func newEvaluateCmd(opts *rootOptions) *cobra.Command {
	evalOpts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate <answers-file>",
		Short: "Evaluate an answers file against bundled or local rule files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readAnswers(args[0])
			if err != nil {
				return err
			}

			files, ids, err := evalOpts.ruleFiles()
			if err != nil {
				return err
			}

			list := make([]scholarships.Scholarship, 0, len(ids))
			for _, id := range ids {
				if err := scholarships.ValidateID(id); err != nil {
					return err
				}
				list = append(list, scholarships.Scholarship{ID: id, Name: id, IsEnabled: true})
			}

			log := newStderrLogger(cmd.ErrOrStderr(), opts.logLevel)
			loader := rulesets.NewLoader(
				[]rulesets.Source{rulesets.NewBundledSource(files)},
				rulesets.WithLogger(log),
			)
			service := eligibility.New(loader, eligibility.WithLogger(log))

			summaries := service.EvaluateForApplicant(cmd.Context(), raw, list)
			return render(cmd.OutOrStdout(), opts.output, map[string]any{
				"outcome":   eligibility.Classify(summaries),
				"summaries": summaries,
			})
		},
	}

	cmd.Flags().StringVar(&evalOpts.rulesDir, "rules-dir", "", "Directory of <scholarship>.json rule files (default: bundled rules)")
	cmd.Flags().StringArrayVar(&evalOpts.scholarships, "scholarship", nil, "Scholarship id to evaluate; repeatable (default: every rule file)")
	return cmd
}

// ruleFiles resolves the rule directory and the scholarships to evaluate.
func (o *evaluateOptions) ruleFiles() (fs.FS, []string, error) {
	files := rulesets.DefaultBundle()
	if o.rulesDir != "" {
		files = os.DirFS(o.rulesDir)
	}

	if len(o.scholarships) > 0 {
		return files, o.scholarships, nil
	}

	matches, err := fs.Glob(files, "*.json")
	if err != nil {
		return nil, nil, fmt.Errorf("list rule files: %w", err)
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimSuffix(m, ".json"))
	}
	return files, ids, nil
}

// readDocument returns the file as JSON, converting YAML by extension.
func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		converted, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse YAML %s: %w", path, err)
		}
		return converted, nil
	default:
		return data, nil
	}
}

func readAnswers(path string) (map[string]any, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("answers file must hold an object: %w", err)
	}
	return raw, nil
}

func render(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	if format == "yaml" {
		data, err = yaml.JSONToYAML(data)
		if err != nil {
			return fmt.Errorf("encode YAML output: %w", err)
		}
	} else {
		data = append(data, '\n')
	}

	_, err = w.Write(data)
	return err
}

func newStderrLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		lvl = logger.LevelWarning
	}
	log, _ := logger.New(logger.Config{Level: lvl, Format: "text", Output: w})
	return log
}
