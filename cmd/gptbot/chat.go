package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alexeyavdey/gptbot/internal/config"
	"github.com/alexeyavdey/gptbot/internal/core"
	"github.com/alexeyavdey/gptbot/internal/perception"
	"github.com/alexeyavdey/gptbot/internal/scheduler"
	"github.com/alexeyavdey/gptbot/internal/session"
	"github.com/alexeyavdey/gptbot/internal/store"
)

// consoleNotifier prints scheduler pushes to the terminal. Writes are
// serialized so a digest never interleaves with a chat reply.
type consoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *consoleNotifier) Send(userID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "\n[notification for user %d]\n%s\n\n> ", userID, text)
	return err
}

// app bundles everything the commands need after wiring.
type app struct {
	cfg      *config.Config
	store    *store.Store
	orch     *core.Orchestrator
	sched    *scheduler.Scheduler
	notifier *consoleNotifier
}

func buildApp(ctx context.Context, out io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := initLogger(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	client, err := perception.NewClient(ctx, perception.ClientConfig{
		Provider: perception.Provider(cfg.LLM.Provider),
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.GetLLMTimeout(),
	}, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	resolver := perception.NewResolver(client, logger)
	wizard := session.NewWizard(st, logger)
	reflection := session.NewReflection(st, client, logger)
	mentor := core.NewMentor(st, client, logger)
	orch := core.NewOrchestrator(st, resolver, wizard, reflection, mentor, logger)

	notifier := &consoleNotifier{out: out}
	orch.SetNotifier(notifier)

	sched := scheduler.New(st, notifier, scheduler.Config{
		DigestTick:    cfg.GetDigestTick(),
		SweepInterval: cfg.GetSweepInterval(),
		Horizon:       cfg.GetHorizon(),
	}, logger)

	return &app{cfg: cfg, store: st, orch: orch, sched: sched, notifier: notifier}, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.store.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "gptbot ready (user %d). Commands: /evening, /digest, /quit\n\n> ", userID)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.sched.Run(ctx) })
	g.Go(func() error {
		defer stop()
		return chatLoop(ctx, a, cmd.InOrStdin(), out)
	})

	err = g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func chatLoop(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}

		var reply string
		var err error
		switch line {
		case "/quit", "/exit":
			fmt.Fprintln(out, "Bye.")
			return nil
		case "/evening":
			reply, err = a.orch.StartReflection(userID)
		case "/digest":
			err = a.sched.SendManualDigest(userID)
			reply = "Digest sent."
		default:
			reply, err = a.orch.HandleMessage(ctx, userID, line)
		}
		if err != nil {
			logger.Error("turn failed", zap.Error(err))
			reply = "Something went wrong on my side. Please try again."
		}
		fmt.Fprintf(out, "%s\n\n> ", reply)
	}
	return scanner.Err()
}

func runManualDigest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.store.Close()

	if err := a.sched.SendManualDigest(userID); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "digest sent")
	return nil
}
