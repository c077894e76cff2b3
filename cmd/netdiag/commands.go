package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/angelfreak/netdiag/pkg/netdiag"
	"github.com/angelfreak/netdiag/pkg/types"
	"github.com/spf13/cobra"
)

var (
	fixDNS     []string
	fixAddress string
	fixGateway string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List interfaces with addresses, gateway and configuration mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return createApp().RunList(cmd.Context())
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [interface]",
	Short: "Check link, gateway, DNS and internet reachability",
	Long: `Run the layered diagnosis for one interface. Stages run in order and
stop at the first failure; each stage adds one finding.

Exit status is 0 when the internet is reachable and 1 otherwise.`,
	Args: cobra.MaximumNArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return interfaceNames(cmd.Context()), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return createApp().RunDiagnose(cmd.Context(), firstArg(args))
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the commands a fix would run, without running them",
}

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Apply a fix after confirmation",
}

// remediationKinds maps subcommand names to plan kinds
var remediationKinds = []struct {
	name  string
	kind  types.RemediationKind
	short string
}{
	{"dns", types.KindSetDNS, "Switch the interface to the recommended (or --dns) resolvers"},
	{"dhcp", types.KindSetDHCP, "Switch the interface's connection profile back to DHCP"},
	{"static", types.KindSetStaticIP, "Assign a static address after checking it is not in use"},
}

func newKindCmd(name string, kind types.RemediationKind, short string, apply bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " [interface]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) != 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return interfaceNames(cmd.Context()), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app := createApp()
			params, err := planParams(kind)
			if err != nil {
				return app.fail(err)
			}
			if apply {
				return app.RunFix(cmd.Context(), kind, firstArg(args), params)
			}
			return app.RunPlan(cmd.Context(), kind, firstArg(args), params)
		},
	}

	switch kind {
	case types.KindSetDNS:
		cmd.Flags().StringSliceVar(&fixDNS, "dns", nil, "DNS servers (default: the recommended pair)")
	case types.KindSetStaticIP:
		cmd.Flags().StringVar(&fixAddress, "address", "", "Address in CIDR form, e.g. 192.168.1.50/24")
		cmd.Flags().StringVar(&fixGateway, "gateway", "", "Default gateway (omit to clear it)")
		cmd.Flags().StringSliceVar(&fixDNS, "dns", nil, "DNS servers (omit to use DHCP-provided DNS)")
	}
	if apply {
		cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Apply without asking for confirmation")
	}
	return cmd
}

func planParams(kind types.RemediationKind) (netdiag.PlanParams, error) {
	params := netdiag.PlanParams{DNS: fixDNS}
	if kind == types.KindSetStaticIP {
		req, err := ParseStaticArgs(fixAddress, fixGateway, fixDNS)
		if err != nil {
			return params, err
		}
		params.Static = req
		params.DNS = nil
	}
	return params, nil
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate completion script for your shell",
	Long: `Generate completion script for your shell.

By default, this command outputs the completion script to stdout.
Use the output in your shell configuration or install it to the user location.

Examples:

  # Load bash completion in current session
  $ source <(netdiag completion bash)

  # Install zsh completion
  $ netdiag completion zsh --install

  # Install fish completion
  $ netdiag completion fish --install
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := args[0]
		install, _ := cmd.Flags().GetBool("install")
		if install {
			return installCompletion(shell, cmd)
		}

		switch shell {
		case "bash":
			return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}
	},
}

// installCompletion writes the completion script into the user's shell
// completion directory
func installCompletion(shell string, cmd *cobra.Command) error {
	var content strings.Builder
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	var installPath string
	switch shell {
	case "bash":
		if err := cmd.Root().GenBashCompletion(&content); err != nil {
			return err
		}
		installPath = filepath.Join(homeDir, ".local", "share", "bash-completion", "completions", "netdiag")
	case "zsh":
		if err := cmd.Root().GenZshCompletion(&content); err != nil {
			return err
		}
		installPath = filepath.Join(homeDir, ".local", "share", "zsh", "site-functions", "_netdiag")
	case "fish":
		if err := cmd.Root().GenFishCompletion(&content, true); err != nil {
			return err
		}
		installPath = filepath.Join(homeDir, ".config", "fish", "completions", "netdiag.fish")
	default:
		return fmt.Errorf("installing %s completion is not supported; run: netdiag completion %s > netdiag.ps1", shell, shell)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Installing completion script to %s...\n", installPath)
	if err := os.MkdirAll(filepath.Dir(installPath), 0755); err != nil {
		return fmt.Errorf("failed to create completion directory: %w", err)
	}
	if err := os.WriteFile(installPath, []byte(content.String()), 0644); err != nil {
		return fmt.Errorf("failed to write completion script: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Completion script installed successfully!\n")

	switch shell {
	case "bash":
		fmt.Fprintf(cmd.ErrOrStderr(), "Restart your shell or run: source %s\n", installPath)
	case "zsh":
		fmt.Fprintf(cmd.ErrOrStderr(), "Add 'fpath=(~/.local/share/zsh/site-functions $fpath)' to your ~/.zshrc if not already present\n")
		fmt.Fprintf(cmd.ErrOrStderr(), "Then restart your shell or run: autoload -U compinit && compinit\n")
	case "fish":
		fmt.Fprintf(cmd.ErrOrStderr(), "Restart your shell to enable completions\n")
	}
	return nil
}

func init() {
	for _, k := range remediationKinds {
		planCmd.AddCommand(newKindCmd(k.name, k.kind, k.short, false))
		fixCmd.AddCommand(newKindCmd(k.name, k.kind, k.short, true))
	}
	completionCmd.Flags().Bool("install", false, "Install completion script to the user location")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(completionCmd)
}
