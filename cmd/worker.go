package cmd

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"pdmrelease/internal/bootstrap"
	"pdmrelease/internal/bootstrap/logging"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/usecase/release"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run queued release generation batches",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if !app.Config.Queue.Enabled {
			return errors.New("queue is disabled (set queue.enabled)")
		}
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = 1
		}
		queueName := strings.TrimSpace(app.Config.Queue.QueueName)
		if queueName == "" {
			queueName = "release"
		}

		server := asynq.NewServer(bootstrap.RedisClientOpt(app.Config.Redis), asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{queueName: 1},
			BaseContext: func() context.Context { return ctx },
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(release.TaskGenerate, svc.HandleGenerateTask)

		logging.Info(ctx, "release worker started",
			slog.String("queue", queueName),
			slog.Int("concurrency", concurrency),
		)
		if err := server.Run(mux); err != nil {
			logging.Error(ctx, "release worker failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "run release worker")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().Int("concurrency", 1, "Concurrent generation batches; the export bridge serializes CAD access")
}
