package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/loomlabs/loom/internal/config"
	"github.com/loomlabs/loom/internal/memory"
	"github.com/loomlabs/loom/internal/orchestrator"
	"github.com/loomlabs/loom/internal/plan"
	"github.com/loomlabs/loom/internal/planning"
	"github.com/loomlabs/loom/internal/schedule"
	"github.com/loomlabs/loom/internal/storage"
	"github.com/loomlabs/loom/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator with a console transport",
	Long: `Starts the orchestrator, goal manager, and scheduled-task poller,
wiring a console transport: each stdin line is dispatched as input, and a
console output handler prints dispatched results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runLoop(cmd.Context(), cfg)
	},
}

func runLoop(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg)

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rooms := memory.NewRoomStore(memory.WithCapacity(cfg.Core.RoomCapacity))
	orch := orchestrator.New(
		orchestrator.WithLogger(logger),
		orchestrator.WithRoomStore(rooms),
		orchestrator.WithItemDelay(cfg.Core.ItemDelay),
	)

	orch.RegisterIOHandler(orchestrator.NewFuncHandler("console", orchestrator.RoleOutput,
		func(ctx context.Context, data any) (any, error) {
			fmt.Println(data)
			return data, nil
		}))
	orch.RegisterIOHandler(orchestrator.NewFuncHandler("stdin", orchestrator.RoleInput,
		func(ctx context.Context, data any) (any, error) {
			return data, nil
		}))
	orch.RegisterProcessor(consoleProcessor{})

	sessionID := cfg.Core.SessionID
	if sessionID == "" {
		sessionID = types.NewID().String()
	}

	registry := plan.NewRegistry(logger)
	planMemory := newPlanMemory(cfg)
	planner := planning.NewHTNPlanner(registry,
		planning.WithPlanMemory(planMemory),
		planning.WithPlannerLogger(logger),
	)
	strategy := planning.NewHTNStrategy(planner, planMemory,
		planning.WithStrategyLogger(logger))
	manager := planning.NewManager(strategy, store, sessionID,
		planning.WithManagerLogger(logger))
	if err := manager.Load(ctx); err != nil {
		return err
	}

	tasks := schedule.NewTaskStore(store, schedule.WithStoreLogger(logger))
	poller := schedule.NewPoller(tasks,
		func(ctx context.Context, task schedule.ScheduledTask) error {
			data := make(map[string]any, len(task.TaskData))
			for k, v := range task.TaskData {
				data[k] = v.ToAny()
			}
			_, err := orch.DispatchToAction(ctx, task.HandlerName, data)
			return err
		},
		schedule.WithPollInterval(cfg.Scheduler.PollInterval),
		schedule.WithBatchSize(cfg.Scheduler.BatchSize),
		schedule.WithPollerLogger(logger),
	)

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	go func() {
		if err := poller.Run(pollCtx); err != nil && pollCtx.Err() == nil {
			logger.Error("poller stopped", "error", err)
		}
	}()

	logger.Info("loom running", "session", sessionID, "driver", cfg.Database.Driver)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if _, err := orch.DispatchToInput(ctx, "stdin", line); err != nil {
				logger.Error("input dispatch failed", "error", err)
			}
		}
	}
}

func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	var store storage.Storage
	switch cfg.Database.Driver {
	case "sqlite":
		sqliteCfg := storage.DefaultSQLiteConfig(cfg.Database.Path)
		sqliteCfg.MaxOpenConns = cfg.Database.MaxConnections
		sqliteCfg.BusyTimeout = cfg.Database.BusyTimeout
		store = storage.NewSQLiteStorage(sqliteCfg)
	default:
		store = storage.NewMemoryStorage()
	}

	if err := store.Connect(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func newPlanMemory(cfg config.Config) planning.PlanMemory {
	if !cfg.Redis.Enabled {
		return planning.NewMemoryPlanCache()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return planning.NewRedisPlanCache(client, planning.WithPlanTTL(cfg.Redis.PlanTTL))
}

// consoleProcessor echoes any message to the console output handler.
type consoleProcessor struct{}

func (consoleProcessor) CanHandle(msg orchestrator.Message) bool {
	return true
}

func (consoleProcessor) Process(ctx context.Context, msg orchestrator.Message, memories string, caps orchestrator.Capabilities) (*orchestrator.ProcessedResult, error) {
	return &orchestrator.ProcessedResult{
		Content: msg.Payload,
		SuggestedOutputs: []orchestrator.Suggestion{
			{Name: "console", Data: msg.Payload},
		},
	}, nil
}
