package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	internal_http "github.com/deinJoni/artemis-hr-app-sub000/internal/http"
	"github.com/deinJoni/artemis-hr-app-sub000/internal/log"
	internal_storage "github.com/deinJoni/artemis-hr-app-sub000/internal/storage"
	"github.com/deinJoni/artemis-hr-app-sub000/pkg/engine"
	"github.com/spf13/cobra"
)

func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, _ := cmd.Flags().GetString("db")
			port, _ := cmd.Flags().GetString("port")
			store := initStore(dbConnStr)
			defer store.Close()
			if err := internal_http.StartServer(port, store); err != nil {
				log.GetLogger().Errorf("Server failed: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "HTTP port")

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the delay queue processor",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, _ := cmd.Flags().GetString("db")
			intervalStr, _ := cmd.Flags().GetString("interval")
			interval, err := time.ParseDuration(intervalStr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid interval %q: %v\n", intervalStr, err)
				os.Exit(1)
			}
			store := initStore(dbConnStr)
			defer store.Close()

			eng := engine.NewEngine(store, nil, log.GetLogger())
			processor := engine.NewQueueProcessor(eng, interval)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := processor.Start(ctx); err != nil {
				log.GetLogger().Errorf("Failed to start queue processor: %v", err)
				os.Exit(1)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.GetLogger().Infof("Shutting down queue processor")
			processor.Stop()
		},
	}
	workerCmd.Flags().String("interval", "60s", "Sweep interval")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the workflows of a tenant",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, _ := cmd.Flags().GetString("db")
			tenantID, _ := cmd.Flags().GetInt64("tenant")
			store := initStore(dbConnStr)
			defer store.Close()
			eng := engine.NewEngine(store, nil, log.GetLogger())
			workflows, err := eng.ListWorkflows(tenantID)
			if err != nil {
				log.GetLogger().Errorf("Failed to list workflows: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list workflows: %v\n", err)
				os.Exit(1)
			}
			if len(workflows) == 0 {
				fmt.Fprintf(os.Stdout, "No workflows found.\n")
				return
			}
			fmt.Fprintf(os.Stdout, "Workflows:\n")
			for _, wf := range workflows {
				fmt.Fprintf(os.Stdout, "- ID: %d, Name: %s, Slug: %s, Kind: %s, Status: %s, Created: %s\n",
					wf.ID, wf.Name, wf.Slug, wf.Kind, wf.Status, wf.CreatedAt.Format(time.RFC3339))
			}
		},
	}
	listCmd.Flags().Int64("tenant", 0, "Tenant ID")

	runCmd := &cobra.Command{
		Use:   "run [id]",
		Short: "Inspect a workflow run and its steps",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, _ := cmd.Flags().GetString("db")
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid run id %q\n", args[0])
				os.Exit(1)
			}
			store := initStore(dbConnStr)
			defer store.Close()
			eng := engine.NewEngine(store, nil, log.GetLogger())
			detail, err := eng.GetRun(runID)
			if err != nil {
				log.GetLogger().Errorf("Failed to get run %d: %v", runID, err)
				fmt.Fprintf(os.Stderr, "Error: failed to get run %d: %v\n", runID, err)
				os.Exit(1)
			}
			out, err := json.MarshalIndent(detail, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintln(os.Stdout, string(out))
		},
	}

	rootCmd.AddCommand(serveCmd, workerCmd, listCmd, runCmd)
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
