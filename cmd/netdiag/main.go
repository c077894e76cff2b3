package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelfreak/netdiag/pkg/config"
	"github.com/angelfreak/netdiag/pkg/netdiag"
	"github.com/angelfreak/netdiag/pkg/system"
	"github.com/angelfreak/netdiag/pkg/types"
	"github.com/spf13/cobra"
)

// defaultCommandTimeout bounds read-only lookups that set no timeout of their own
const defaultCommandTimeout = 10 * time.Second

var (
	configPath string
	iface      string
	debug      bool
	output     string
	assumeYes  bool

	cfgManager  *config.Manager
	sysExecutor *system.Executor
	logger      types.Logger
	service     *netdiag.Service
)

var rootCmd = &cobra.Command{
	Use:   "netdiag [interface]",
	Short: "Layered network diagnosis with guided fixes",
	Long: `Diagnose connectivity one layer at a time (link, gateway, DNS, internet)
and apply common fixes through NetworkManager or systemd-resolved.

Quick Start:
  netdiag                     Diagnose the only configured interface
  netdiag eth0                Diagnose eth0
  netdiag list                List interfaces with addresses and gateways
  netdiag plan dns eth0       Show the commands that would fix DNS
  netdiag fix dns eth0        Switch eth0 to the recommended resolvers

Examples:
  netdiag fix dhcp wlan0
  netdiag fix static eth0 --address 192.168.1.50/24 --gateway 192.168.1.1 --dns 223.5.5.5
  netdiag diagnose eth0 --output yaml`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return interfaceNames(cmd.Context()), cobra.ShellCompDirectiveNoFileComp
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "completion" {
			return nil
		}
		return initialize()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return createApp().RunDiagnose(cmd.Context(), firstArg(args))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Select configuration file (\"-\" for none)")
	rootCmd.PersistentFlags().StringVar(&iface, "iface", "", "Select networking interface")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", OutputText, "Output format: text or yaml")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func initialize() error {
	if output != OutputText && output != OutputYAML {
		return fmt.Errorf("unsupported output format %q (use %s or %s)", output, OutputText, OutputYAML)
	}

	sysLogger := system.NewLogger(debug, os.Stderr)
	logger = sysLogger

	sysExecutor = system.NewExecutor(sysLogger.With("exec"), defaultCommandTimeout)

	cfgManager = config.NewManager(sysLogger.With("config"))
	cfg, err := cfgManager.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Debug("Config loaded", "path", cfgManager.Path())

	service, err = netdiag.NewService(cfg, sysExecutor, logger)
	if err != nil {
		return err
	}
	return nil
}

// createApp creates an App instance from the initialized globals
func createApp() *App {
	return &App{
		Logger:    logger,
		Service:   service,
		Interface: iface,
		Output:    output,
		AssumeYes: assumeYes,
		Debug:     debug,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// interfaceNames lists interfaces for shell completion
func interfaceNames(ctx context.Context) []string {
	if ctx == nil {
		ctx = context.Background()
	}
	if service == nil {
		if err := initialize(); err != nil {
			return nil
		}
	}
	inv, err := service.ListInterfaces(ctx)
	if err != nil {
		return nil
	}
	return inv.Names()
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
