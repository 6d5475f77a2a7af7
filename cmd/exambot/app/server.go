// Package app provides the exam bot server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/exambot/cmd/exambot/app/options"
	"github.com/kart-io/exambot/internal/exambot"
	"github.com/kart-io/exambot/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `Anatomy & Physiology Exam Bot

A retrieval-augmented question answering service over a folder of
anatomy and physiology study material.

On startup the documents under --index.data-dir are chunked, embedded and
persisted to the vector store; later starts reuse the persisted index.
Questions are answered by a Groq-hosted chat model grounded on the most
similar passages, through a single-page chat UI and a JSON API.`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(exambot.Name),
		app.WithShortDescription("Anatomy & Physiology exam bot"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
