package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"shelfproc/internal/adapter/repo"
	"shelfproc/internal/codec"
	"shelfproc/internal/domain"
	"shelfproc/internal/storage"
	"shelfproc/internal/worker"
)

var localImageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// localNamespace keys stable source IDs for files in a local run.
var localNamespace = uuid.MustParse("6f0d1c52-8a3e-4b7f-9c21-5e4a7d9b0c13")

func newLocalCmd() *cobra.Command {
	var (
		format  string
		quality int
	)
	cmd := &cobra.Command{
		Use:   "local <dir>",
		Short: "Run the worker over a directory with an in-memory ledger",
		Long: `Treat every image in <dir> as an approved upload and run poll cycles
until nothing is eligible. Outputs are written under <dir>/processed/.

No database is needed; job state lives in memory for the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			files, err := listImages(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no images found in %s", dir)
			}

			store, err := storage.NewFileStore(dir)
			if err != nil {
				return err
			}
			enh, err := loadEnhancer()
			if err != nil {
				return err
			}
			f, err := codec.ParseFormat(format)
			if err != nil {
				return err
			}

			ledger := repo.NewMemoryLedger(1)
			names := make(map[string]string, len(files))
			base := time.Now().UTC()
			for i, name := range files {
				id := uuid.NewSHA1(localNamespace, []byte(name)).String()
				names[id] = name
				ledger.AddSource(domain.Source{
					SourceID:       id,
					ByteLocation:   name,
					Approved:       true,
					UploadComplete: true,
					DiscoveredAt:   base.Add(time.Duration(i) * time.Millisecond),
				})
			}

			logger := cliLogger(cmd)
			w := worker.New(ledger, store, enh, worker.Config{
				BatchSize: len(files),
				Encoder:   codec.NewEncoder(f, quality),
			}, logger, nil)

			for {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				res, err := w.RunCycle(cmd.Context())
				if err != nil {
					return err
				}
				if res.Listed == 0 {
					break
				}
			}
			return printLocalSummary(cmd, ledger, names)
		},
	}
	cmd.Flags().StringVar(&format, "format", "jpeg", "Output format: jpeg or webp")
	cmd.Flags().IntVar(&quality, "quality", codec.MinJPEGQuality, "Output quality")
	return cmd
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !localImageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

type localRow struct {
	File   string `json:"file"`
	State  string `json:"state"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

func printLocalSummary(cmd *cobra.Command, ledger *repo.MemoryLedger, names map[string]string) error {
	var rows []localRow
	for _, job := range ledger.Jobs() {
		row := localRow{File: names[job.SourceID], State: string(job.State)}
		if job.OutputID != nil {
			if rec, ok := ledger.Output(*job.OutputID); ok {
				row.Output = rec.Location
			}
		}
		if job.ErrorDetail != nil {
			row.Error = *job.ErrorDetail
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, k int) bool { return rows[i].File < rows[k].File })

	if outputJSON {
		return printJSON(cmd, rows)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATE\tOUTPUT\tERROR")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.File, r.State, r.Output, r.Error)
	}
	return tw.Flush()
}
