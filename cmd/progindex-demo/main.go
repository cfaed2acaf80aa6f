// Command progindex-demo is a small CLI harness over a flat-file index,
// exercising Add/Search/Improve/Save/Load from the shell. Not required by
// the progindex package or its tests.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/arashov/progindex"
	"github.com/spf13/cobra"
)

var (
	indexPath string
	dim       int
	clusters  int
	quantize  bool
	useHNSW   bool
)

var rootCmd = &cobra.Command{
	Use:   "progindex-demo",
	Short: "CLI harness for the progindex approximate-nearest-neighbor index",
	Long:  `A command-line demo around a progressive, self-improving vector index.`,
}

var addCmd = &cobra.Command{
	Use:   "add <doc-id> <vector>",
	Short: "Insert a vector under doc-id (comma-separated floats)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		docID, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid doc-id: %w", err)
		}
		vec, err := parseVector(args[1])
		if err != nil {
			return err
		}

		idx, err := openIndex(len(vec))
		if err != nil {
			return err
		}
		cluster, err := idx.Add(uint32(docID), vec)
		if err != nil {
			return fmt.Errorf("add failed: %w", err)
		}
		if err := idx.Save(indexPath); err != nil {
			return fmt.Errorf("save failed: %w", err)
		}
		fmt.Printf("added doc %d to cluster %d\n", docID, cluster)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <vector>",
	Short: "Search for the top-k nearest documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vec, err := parseVector(args[0])
		if err != nil {
			return err
		}
		topK, _ := cmd.Flags().GetInt("top-k")
		asJSON, _ := cmd.Flags().GetBool("json")

		idx, err := openIndex(len(vec))
		if err != nil {
			return err
		}
		results, err := idx.Search(vec, topK)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if asJSON {
			out, _ := json.MarshalIndent(results, "", "  ")
			fmt.Println(string(out))
			return nil
		}
		for _, r := range results {
			fmt.Printf("doc=%d score=%.4f\n", r.DocID, r.Score)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print index lifecycle and health statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex(dim)
		if err != nil {
			return err
		}
		fmt.Printf("clusters:          %d\n", idx.NumClusters())
		fmt.Printf("documents:         %d\n", idx.TotalDocuments())
		fmt.Printf("using k-means:     %v\n", idx.UsingKMeans())
		fmt.Printf("quantized:         %v\n", idx.IsQuantized())
		fmt.Printf("hnsw enabled:      %v\n", idx.HNSWEnabled())
		fmt.Printf("health:            %.4f\n", idx.Health())
		fmt.Printf("memory usage:      %s\n", idx.MemoryUsageHuman())
		return nil
	},
}

var improveCmd = &cobra.Command{
	Use:   "improve",
	Short: "Run one background re-centering step",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex(dim)
		if err != nil {
			return err
		}
		if err := idx.Improve(); err != nil {
			return fmt.Errorf("improve failed: %w", err)
		}
		return idx.Save(indexPath)
	},
}

func parseVector(raw string) ([]float32, error) {
	parts := strings.Split(raw, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec = append(vec, float32(v))
	}
	return vec, nil
}

func openIndex(vecDim int) (*progindex.Index, error) {
	idx, err := progindex.LoadOrNew(indexPath, vecDim, clusters)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if quantize {
		idx.SetQuantization(true)
	}
	if useHNSW {
		idx.SetHNSW(true)
	}
	return idx, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&indexPath, "index", "progindex.bin", "path to the persisted index")
	rootCmd.PersistentFlags().IntVar(&dim, "dim", 128, "embedding dimension")
	rootCmd.PersistentFlags().IntVar(&clusters, "clusters", 0, "initial cluster count (0 = default)")
	rootCmd.PersistentFlags().BoolVar(&quantize, "quantize", false, "enable product quantization policy")
	rootCmd.PersistentFlags().BoolVar(&useHNSW, "hnsw", false, "enable HNSW cluster routing policy")

	searchCmd.Flags().Int("top-k", 10, "number of results")
	searchCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(addCmd, searchCmd, statsCmd, improveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
