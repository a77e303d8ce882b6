// lightpath traces the rays of a scene file and prints or stores their paths.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"lightpath/path"
	"lightpath/pathstore"
	"lightpath/scenepack"
	"lightpath/tracer"
)

var cmdRoot = &cobra.Command{
	Use:   "lightpath",
	Short: "Trace light rays through optical scenes",
}

var (
	storeDir string
)

func init() {
	cmdRoot.PersistentFlags().StringVar(&storeDir, "store", "", "Directory of the run database.  Empty means runs are not stored.")
	cmdRoot.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

var (
	traceScene      string
	traceWorkers    int
	traceFormat     string
	traceCPUProfile string
)

func init() {
	cmdTrace.Flags().StringVar(&traceScene, "scene", "", "Scene file to trace (YAML or JSON).")
	cmdTrace.Flags().IntVar(&traceWorkers, "workers", 0, "Rays traced at once.  Zero means one per CPU.")
	cmdTrace.Flags().StringVar(&traceFormat, "format", "summary", "Output format: summary or json.")
	cmdTrace.Flags().StringVar(&traceCPUProfile, "cpu-profile", "", "Write a CPU profile to `file`.")
	cmdTrace.MarkFlagRequired("scene")
}

var cmdTrace = &cobra.Command{
	Use:   "trace",
	Short: "Trace every ray of a scene",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if traceFormat != "summary" && traceFormat != "json" {
			return fmt.Errorf("unknown output format %q", traceFormat)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if traceCPUProfile != "" {
			f, err := os.Create(traceCPUProfile)
			if err != nil {
				return fmt.Errorf("while creating CPU profile: %w", err)
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("while starting CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		sc, err := scenepack.LoadScene(ctx, traceScene)
		if err != nil {
			return err
		}

		rays, err := sc.Rays()
		if err != nil {
			return fmt.Errorf("while generating rays: %w", err)
		}
		glog.Infof("Tracing %d rays against %d surfaces", len(rays), sc.Snapshot.Len())

		// A cancelled run still reports the paths traced so far.
		result, runErr := tracer.New(sc.Snapshot, tracer.WithWorkers(traceWorkers)).Run(ctx, rays)
		if result == nil {
			return runErr
		}

		var runID uint64
		if storeDir != "" {
			store, err := pathstore.Open(storeDir, false)
			if err != nil {
				return err
			}
			defer store.Close()

			runID, err = store.PutRun(&pathstore.Run{Scene: filepath.Base(traceScene), Stats: result.Stats}, result.InOrder())
			if err != nil {
				return fmt.Errorf("while storing run: %w", err)
			}
			glog.Infof("Stored run %d in %s", runID, storeDir)
		}

		switch traceFormat {
		case "json":
			if err := printJSON(struct {
				RunID uint64          `json:"runId,omitempty"`
				Paths []*path.RayPath `json:"paths"`
				Stats path.Stats      `json:"stats"`
			}{runID, result.InOrder(), result.Stats}); err != nil {
				return err
			}
		default:
			if runID != 0 {
				fmt.Printf("run %d: ", runID)
			}
			fmt.Println(result.Stats.Summary())
		}

		return runErr
	},
}

var cmdRuns = &cobra.Command{
	Use:   "runs [command]",
	Short: "Inspect stored runs",
}

func openStore() (*pathstore.Store, error) {
	if storeDir == "" {
		return nil, fmt.Errorf("--store is required")
	}
	return pathstore.Open(storeDir, false)
}

var cmdRunsList = &cobra.Command{
	Use:  "list",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns()
		if err != nil {
			return fmt.Errorf("while listing runs: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tSCENE\tSTATS")
		for _, r := range runs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Created.Format("2006-01-02 15:04:05"), r.Scene, r.Stats.Summary())
		}
		return w.Flush()
	},
}

var cmdRunsShow = &cobra.Command{
	Use:  "show RUN_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("while parsing run ID %q: %w", args[0], err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		run, paths, err := store.GetRun(id)
		if err != nil {
			return fmt.Errorf("while reading run %d: %w", id, err)
		}

		return printJSON(struct {
			Run   *pathstore.Run  `json:"run"`
			Paths []*path.RayPath `json:"paths"`
		}{run, paths})
	},
}

var cmdRunsDelete = &cobra.Command{
	Use:  "delete RUN_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("while parsing run ID %q: %w", args[0], err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		return store.DeleteRun(id)
	},
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("while marshaling output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	glog.CopyStandardLogTo("INFO")
	defer glog.Flush()

	cmdRoot.AddCommand(cmdTrace, cmdRuns)
	cmdRuns.AddCommand(cmdRunsList, cmdRunsShow, cmdRunsDelete)

	if err := cmdRoot.Execute(); err != nil {
		glog.Flush()
		os.Exit(1)
	}
}
