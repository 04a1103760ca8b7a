// Command dcaengine runs the per-(user,symbol) DCA engine supervisor.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"dcaengine/internal/bootstrap"
	"dcaengine/internal/core"
	"dcaengine/internal/engine"
	"dcaengine/internal/supervisor"
	"dcaengine/pkg/cli"

	"github.com/joho/godotenv"
)

// supervisorRunner starts a single (user,symbol) engine and keeps it running
// until ctx is canceled. The supervisor itself is torn down by App.Shutdown,
// not by this Runner.
type supervisorRunner struct {
	sup    *supervisor.Supervisor
	key    supervisor.Key
	cfg    engine.Config
	logger core.ILogger
}

func (r *supervisorRunner) Run(ctx context.Context) error {
	if err := r.sup.Start(ctx, r.key, r.cfg); err != nil {
		return err
	}
	r.logger.Info("engine running", "user_id", r.key.UserID, "symbol", r.key.Symbol)
	<-ctx.Done()
	return nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	userID := flag.String("user", "default", "user id to run the engine under")
	flag.Parse()

	if err := cli.ValidateInput(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "dcaengine: invalid -config value:", err)
		os.Exit(1)
	}
	if err := cli.ValidateInput(*userID); err != nil {
		fmt.Fprintln(os.Stderr, "dcaengine: invalid -user value:", err)
		os.Exit(1)
	}

	_ = godotenv.Load()

	app, err := bootstrap.NewApp(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dcaengine: startup failed:", err)
		os.Exit(1)
	}

	key := supervisor.Key{UserID: *userID, Symbol: app.Cfg.Trading.Symbol}
	engCfg := engine.ConfigFromTrading(app.Cfg.Trading)

	runner := &supervisorRunner{
		sup:    app.Supervisor,
		key:    key,
		cfg:    engCfg,
		logger: app.Logger,
	}

	if err := app.Run(runner); err != nil {
		app.Logger.Error("dcaengine exited with error", "error", err)
		os.Exit(1)
	}
}
