package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/xxxsen/ragdex/internal/config"
	"github.com/xxxsen/ragdex/internal/docsource"
	"github.com/xxxsen/ragdex/internal/ingest"
	"github.com/xxxsen/ragdex/internal/model"
	"github.com/xxxsen/ragdex/internal/service"
)

func newIndexCmd(configPath *string) *cobra.Command {
	var collection string
	var useS3 bool
	var prefix string

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "chunk, embed and index documents into a collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(*configPath)
			if err != nil {
				return err
			}
			stack, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer stack.Close()

			var srcCfg config.DocSourceConfig
			if useS3 {
				p := prefix
				if p == "" {
					p = cfg.Ingest.S3.Prefix
				}
				srcCfg = config.DocSourceConfig{
					Type: "s3",
					Data: map[string]interface{}{
						"endpoint":   cfg.Ingest.S3.Endpoint,
						"secret_id":  cfg.Ingest.S3.SecretID,
						"secret_key": cfg.Ingest.S3.SecretKey,
						"bucket":     cfg.Ingest.S3.Bucket,
						"region":     cfg.Ingest.S3.Region,
						"prefix":     p,
						"use_ssl":    cfg.Ingest.S3.UseSSL,
					},
				}
			} else {
				if len(args) != 1 {
					return fmt.Errorf("a path argument is required unless --s3 is set")
				}
				srcCfg = config.DocSourceConfig{
					Type: "local",
					Data: map[string]interface{}{"path": args[0]},
				}
			}
			src, err := docsource.New(srcCfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := stack.pipeline.Run(ctx, collection, src)
			if err != nil {
				return err
			}
			printIndexResult(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "target collection name")
	_ = cmd.MarkFlagRequired("collection")
	cmd.Flags().BoolVar(&useS3, "s3", false, "load documents from the configured s3 bucket")
	cmd.Flags().StringVar(&prefix, "prefix", "", "s3 key prefix override")
	return cmd
}

func printIndexResult(result *ingest.Result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Documents", "Chunks", "Embedded", "Indexed", "Failed", "Elapsed"})
	table.SetAutoWrapText(false)
	table.Append([]string{
		strconv.Itoa(result.DocumentsLoaded),
		strconv.Itoa(result.ChunksCreated),
		strconv.Itoa(result.EmbeddingsGenerated),
		strconv.Itoa(result.ChunksIndexed),
		strconv.Itoa(result.Failed),
		fmt.Sprintf("%dms", result.ElapsedMs),
	})
	table.Render()
	if result.Failed > 0 {
		color.New(color.FgYellow).Fprintf(os.Stdout, "%d document(s) could not be embedded, see logs\n", result.Failed)
	}
}

func newSearchCmd(configPath *string) *cobra.Command {
	var collection string
	var topK int
	var showPrompt bool

	cmd := &cobra.Command{
		Use:   "search [question]",
		Short: "search a collection and rerank the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(*configPath)
			if err != nil {
				return err
			}
			stack, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer stack.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := stack.rag.Search(ctx, &service.SearchRequest{
				Question:   strings.Join(args, " "),
				Collection: collection,
				TopK:       topK,
			})
			if err != nil {
				return err
			}
			printSearchResult(result)
			if showPrompt {
				fmt.Println()
				fmt.Println(stack.rag.BuildPrompt(result))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to search")
	_ = cmd.MarkFlagRequired("collection")
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of results to return")
	cmd.Flags().BoolVar(&showPrompt, "prompt", false, "print the assembled answer prompt")
	return cmd
}

func printSearchResult(result *model.SearchResult) {
	if result.Degraded {
		color.New(color.FgYellow).Fprintln(os.Stdout, "relevance scoring unavailable, results ranked by distance only")
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Source", "Chunk", "Distance", "Score", "Snippet"})
	table.SetAutoWrapText(false)
	for i, cand := range result.Candidates {
		score := "-"
		if cand.Scored {
			score = fmt.Sprintf("%.1f", cand.RerankScore)
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			filepath.Base(cand.Chunk.Source),
			strconv.Itoa(cand.Chunk.ChunkIndex),
			fmt.Sprintf("%.2f", cand.Distance),
			score,
			snippetOf(cand.Chunk.Text, 60),
		})
	}
	table.Render()
	st := result.Stats
	fmt.Printf("initial=%d after_distance=%d after_rerank=%d final=%d rerank_ms=%d parse_failures=%d score_errors=%d\n",
		st.InitialCount, st.AfterDistanceFilter, st.AfterRerankFilter, st.FinalCount,
		st.RerankingTimeMs, st.ParseFailures, st.ScoreErrors)
}

func snippetOf(text string, max int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

func newCollectionsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "manage vector collections",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(*configPath)
			if err != nil {
				return err
			}
			stack, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer stack.Close()

			infos, err := stack.store.ListCollections(context.Background())
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Name", "Dimension", "Threshold", "Chunks", "Created"})
			table.SetAutoWrapText(false)
			for _, info := range infos {
				table.Append([]string{
					info.Name,
					strconv.Itoa(info.Dimension),
					fmt.Sprintf("%.1f", info.DistanceThreshold),
					strconv.FormatInt(info.ChunkCount, 10),
					time.Unix(info.Ctime, 0).Format("2006-01-02 15:04"),
				})
			}
			table.Render()
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "delete a collection and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(*configPath)
			if err != nil {
				return err
			}
			stack, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer stack.Close()

			if err := stack.store.DeleteCollection(context.Background(), args[0]); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(os.Stdout, "collection %s deleted\n", args[0])
			return nil
		},
	}

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "delete every collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear all collections without --yes")
			}
			cfg, err := setup(*configPath)
			if err != nil {
				return err
			}
			stack, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer stack.Close()

			removed, err := stack.store.ClearAll(context.Background())
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(os.Stdout, "%d collection(s) removed\n", removed)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing every collection")

	cmd.AddCommand(listCmd, deleteCmd, clearCmd)
	return cmd
}
