package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/config"
	"github.com/drobo-cli/drobo/internal/engine"
	"github.com/drobo-cli/drobo/internal/logging"
	"github.com/drobo-cli/drobo/internal/plan"
	"github.com/drobo-cli/drobo/internal/s3store"
	"github.com/drobo-cli/drobo/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

const (
	defaultConcurrency = 8
	defaultRegion      = "us-east-1"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	app := &appContext{}
	root := newRootCmd(app)

	// The app name precedes the subcommand: drobo <app> <command> [args].
	// Flags, help and completion pass straight through to cobra.
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") && !isBuiltin(args[0]) {
		app.name = args[0]
		args = args[1:]
	}
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "drobo: %v\n", err)
		if app.exitCode == 0 {
			app.exitCode = usageExitCode
		}
	}
	return app.exitCode
}

func isBuiltin(arg string) bool {
	switch arg {
	case "help", "completion", "version":
		return true
	}
	return false
}

// appContext carries per-invocation state between the root command and its
// subcommands: the app name peeled off the argument list, the lazily built
// engine, and the exit code derived from the report.
type appContext struct {
	name      string
	verbosity int
	exitCode  int

	eng *engine.Engine
}

func newRootCmd(app *appContext) *cobra.Command {
	root := &cobra.Command{
		Use:   "drobo <app> <command>",
		Short: "Copy, move, remove and list files on a remote store",
		Long: `drobo manages files on a configured remote store with cp, mv, rm and ls.
Remote paths start with "//"; everything else is a local path. Apps are
configured in ~/.droborc.`,
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(app.verbosity)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().CountVarP(&app.verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	root.AddCommand(newLsCmd(app))
	root.AddCommand(newCpCmd(app))
	root.AddCommand(newMvCmd(app))
	root.AddCommand(newRmCmd(app))
	return root
}

// engine builds the command engine on first use: load ~/.droborc, resolve
// the named app, and wire the remote store with credentials that re-read the
// config file so a token refresh is picked up mid-run.
func (a *appContext) engine(ctx context.Context) (*engine.Engine, error) {
	if a.eng != nil {
		return a.eng, nil
	}
	if a.name == "" {
		return nil, errors.Errorf("%w: missing app name, usage: drobo <app> <command>", plan.ErrUsage)
	}

	path, err := config.DefaultPath()
	if err != nil {
		return nil, err
	}
	mgr, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	appCfg, err := mgr.App(a.name)
	if err != nil {
		return nil, err
	}

	region := appCfg.Region
	if region == "" {
		region = defaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Errorf("load aws config: %w", err)
	}
	// The provider reads the config manager on every request so refreshed
	// tokens take effect without rebuilding the client.
	cfg.Credentials = &appCredentials{mgr: mgr, name: a.name}

	var optFns []func(*s3.Options)
	if appCfg.Endpoint != "" {
		endpoint := appCfg.Endpoint
		optFns = append(optFns, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	remote := store.WithAuthRetry(
		s3store.New(cfg, appCfg.Bucket, appCfg.Prefix, optFns...),
		&configRefresher{mgr: mgr, name: a.name},
	)
	a.eng = engine.New(store.NewLocal(), remote, defaultConcurrency)
	return a.eng, nil
}

// appCredentials sources credentials from the config manager's current view
// of the app block.
type appCredentials struct {
	mgr  *config.Manager
	name string
}

func (p *appCredentials) Retrieve(ctx context.Context) (aws.Credentials, error) {
	app, err := p.mgr.App(p.name)
	if err != nil {
		return aws.Credentials{}, err
	}
	return aws.Credentials{
		AccessKeyID:     app.AppKey,
		SecretAccessKey: app.AppSecret,
		SessionToken:    app.AccessToken,
		Source:          "droborc",
	}, nil
}

// configRefresher re-reads ~/.droborc when a request fails with an auth
// error, picking up tokens rotated by another process. The retry then goes
// out with the reloaded credentials.
type configRefresher struct {
	mgr  *config.Manager
	name string
}

func (r *configRefresher) Refresh(ctx context.Context) error {
	log := logging.GetLogger("auth")
	log.Info().Str("app", r.name).Msg("auth failure, reloading credentials")
	if err := r.mgr.Reload(); err != nil {
		return err
	}
	_, err := r.mgr.App(r.name)
	return err
}
