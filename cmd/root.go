package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arin/lmchat/internal/ai"
	"github.com/arin/lmchat/internal/config"
	"github.com/arin/lmchat/internal/conversation"
	"github.com/arin/lmchat/internal/logging"
	"github.com/arin/lmchat/internal/servers"
	"github.com/arin/lmchat/internal/session"
	"github.com/arin/lmchat/internal/ui"
)

var (
	flagServer      string
	flagModel       string
	flagTemperature float64
	flagMaxTokens   int
	flagTimeout     time.Duration
	flagSystem      string
	debug           bool

	closeLog func() error
)

var errNoServer = errors.New("no server selected")

var rootCmd = &cobra.Command{
	Use:   "lmchat [prompt]",
	Short: "Chat with a local OpenAI-compatible model server",
	Long: `lmchat streams chat completions from local inference servers such as
LM Studio, llama.cpp server and vLLM.

Examples:
  lmchat why is the sky blue
  lmchat --model qwen2.5-7b-instruct summarize this < notes.txt
  lmchat chat
  lmchat servers add gpu 192.168.1.20:8000

Press Ctrl-C while a reply is streaming to stop it.`,
	RunE:                       runOnce,
	PersistentPreRunE:          setupLogging,
	PersistentPostRunE:         teardownLogging,
	SilenceUsage:               true,
	SilenceErrors:              true,
	TraverseChildren:           true,
	SuggestionsMinimumDistance: 1,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagServer, "server", "s", "", "Server URL or nick (overrides config)")
	pf.StringVarP(&flagModel, "model", "m", "", "Model id (default: config, then the server's first model)")
	pf.Float64VarP(&flagTemperature, "temperature", "t", 0, "Sampling temperature")
	pf.IntVar(&flagMaxTokens, "max-tokens", 0, "Maximum tokens to generate")
	pf.DurationVar(&flagTimeout, "timeout", 0, "Stop a reply after this long (e.g. 90s)")
	pf.BoolVar(&debug, "debug", false, "Write debug logs to <config dir>/debug.log")
	rootCmd.Flags().StringVar(&flagSystem, "system", "", "System prompt for this request")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(transcriptCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(doctorCmd)
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the entry point called from main.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func setupLogging(cmd *cobra.Command, args []string) error {
	if !debug {
		return nil
	}
	l, closeFn, err := logging.OpenFile(config.Dir())
	if err != nil {
		return fmt.Errorf("failed to open debug log: %w", err)
	}
	closeLog = closeFn
	l.Debug("command started", "command", cmd.CommandPath(), "args", len(args))
	cmd.SetContext(logging.WithLogger(cmd.Context(), l))
	return nil
}

func teardownLogging(cmd *cobra.Command, args []string) error {
	if closeLog != nil {
		return closeLog()
	}
	return nil
}

// settings is the effective per-invocation configuration: config file and
// environment, then flags.
type settings struct {
	cfg    *config.Config
	server string
	params session.Params
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = flagModel
	}
	if flags.Changed("temperature") {
		cfg.Temperature = flagTemperature
	}
	if flags.Changed("max-tokens") && flagMaxTokens > 0 {
		cfg.MaxTokens = flagMaxTokens
	}
	if flags.Changed("timeout") {
		cfg.Timeout = flagTimeout
	}

	server, err := resolveServer(cfg)
	if err != nil {
		return nil, err
	}

	return &settings{
		cfg:    cfg,
		server: server,
		params: session.Params{
			Endpoint:    server,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
	}, nil
}

// resolveServer picks --server, then the configured server, then the first
// saved one. A ref may be a saved nick or any URL.
func resolveServer(cfg *config.Config) (string, error) {
	ref := flagServer
	if ref == "" {
		ref = cfg.Server
	}
	if ref == "" {
		list := servers.Load()
		if len(list) == 0 {
			return "", errNoServer
		}
		return list[0].URL, nil
	}
	if s, err := servers.Find(ref); err == nil {
		return s.URL, nil
	}
	u, err := ai.NormalizeBaseURL(ref)
	if err != nil {
		return "", err
	}
	return ai.TrimBase(u), nil
}

// ensureModel fills in the server's first model when none is configured.
func ensureModel(ctx context.Context, lister ai.ModelLister, st *settings) error {
	if st.params.Model != "" {
		return nil
	}
	sp := ui.NewSpinner("Loading models...")
	sp.Start()
	models, err := lister.ListModels(ctx, st.server)
	if err != nil {
		sp.Stop()
		return err
	}
	if len(models) == 0 {
		sp.Fail("no models loaded")
		return fmt.Errorf("%s serves no models; load one first", st.server)
	}
	sp.Stop()
	st.params.Model = models[0].ID
	return nil
}

func newController(cmd *cobra.Command, st *settings, client *ai.Client, conv *conversation.Conversation, obs session.Observer) *session.Controller {
	return session.New(conv, client,
		session.WithObserver(obs),
		session.WithLogger(logging.FromContext(cmd.Context())),
		session.WithTimeout(st.cfg.Timeout),
	)
}
