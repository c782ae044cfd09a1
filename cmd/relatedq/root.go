package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/bigkinds"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/llm"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/questions"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/logger"
)

// providerFactory builds the news provider the generate command runs against.
type providerFactory func(cfg *config.Config) news.Provider

func bigkindsProvider(cfg *config.Config) news.Provider {
	return bigkinds.New(cfg.BigKinds, nil)
}

type generateOptions struct {
	configPath  string
	logLevel    string
	from        string
	to          string
	max         int
	clusters    int
	depth       int
	minArticles int
	rephrase    bool
	compact     bool
}

type output struct {
	Keyword    string               `json:"keyword"`
	From       string               `json:"date_from"`
	To         string               `json:"date_to"`
	TotalCount int                  `json:"total_count"`
	Questions  []questions.Question `json:"questions"`
	ElapsedMs  int64                `json:"elapsed_ms"`
}

func newRootCmd(newProvider providerFactory) *cobra.Command {
	opts := &generateOptions{}

	root := &cobra.Command{
		Use:           "relatedq",
		Short:         "Generate related news questions for a keyword",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	generate := &cobra.Command{
		Use:   "generate <keyword>",
		Short: "Run the related-question pipeline for one keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, newProvider, opts, args[0])
		},
	}
	f := generate.Flags()
	f.StringVar(&opts.from, "from", "", "start date YYYY-MM-DD (default 30 days ago)")
	f.StringVar(&opts.to, "to", "", "end date YYYY-MM-DD (default today)")
	f.IntVarP(&opts.max, "max", "n", 0, "maximum number of questions")
	f.IntVar(&opts.clusters, "clusters", 0, "number of keyword clusters")
	f.IntVar(&opts.depth, "depth", 0, "maximum expansion depth")
	f.IntVar(&opts.minArticles, "min-articles", 0, "minimum articles for a query to count")
	f.BoolVar(&opts.rephrase, "rephrase", false, "rewrite questions with the configured LLM")
	f.BoolVar(&opts.compact, "compact", false, "print JSON on one line")

	root.AddCommand(generate)
	return root
}

func runGenerate(cmd *cobra.Command, newProvider providerFactory, opts *generateOptions, keyword string) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Setup(opts.logLevel, "text")

	rng, err := news.ParseDateRange(opts.from, opts.to, time.Now())
	if err != nil {
		return err
	}

	var engineOpts []questions.EngineOption
	if opts.rephrase {
		rp, err := llm.New(cfg.LLM)
		if err != nil {
			return fmt.Errorf("llm rephraser: %w", err)
		}
		engineOpts = append(engineOpts, questions.WithRephraser(rp))
	}
	engine := questions.NewEngine(newProvider(cfg), cfg.Expansion, engineOpts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	qs, err := engine.GenerateRelatedQuestions(ctx, questions.Request{
		Keyword:             keyword,
		DateFrom:            rng.From,
		DateTo:              rng.To,
		MaxQuestions:        opts.max,
		ClusterCount:        opts.clusters,
		MaxRecursionDepth:   opts.depth,
		MinArticlesPerQuery: opts.minArticles,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	if !opts.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(output{
		Keyword:    keyword,
		From:       rng.FromString(),
		To:         rng.ToString(),
		TotalCount: len(qs),
		Questions:  qs,
		ElapsedMs:  time.Since(start).Milliseconds(),
	})
}
