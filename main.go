package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"wandb-canvas/config"
	"wandb-canvas/log"
	"wandb-canvas/pane"
	"wandb-canvas/pane/tmux"
	"wandb-canvas/router"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	version      = "0.3.1"
	programFlag  string
	workdirFlag  string
	scenarioFlag string
	socketFlag   string
	intervalFlag int
	copyFlag     bool
	plainFlag    bool

	rootCmd = &cobra.Command{
		Use:   "wandb-canvas [-- extra viewer args]",
		Short: "W&B Canvas - run the leet terminal viewer in a tmux pane and report its view state to a controller.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(true)
			defer log.Close()

			cfg := config.LoadConfig()

			// Flags override config
			if programFlag != "" {
				cfg.ViewerProgram = programFlag
			}
			if intervalFlag >= 0 {
				cfg.CaptureIntervalMs = intervalFlag
			}
			socketPath := socketFlag
			if socketPath == "" {
				var err error
				socketPath, err = cfg.ResolveSocketPath()
				if err != nil {
					return err
				}
			}

			driver := tmux.NewDriver()
			if !driver.InSession() {
				return pane.ErrNoSession
			}

			manager := pane.NewManager(config.RoleViewer, driver, config.LoadState())

			command := cfg.ViewerProgram
			if workdirFlag != "" {
				command = fmt.Sprintf("%s --dir %s", command, workdirFlag)
			}
			if len(args) > 0 {
				command += " " + strings.Join(args, " ")
			}

			if _, err := manager.ReuseOrCreate(command, cfg.SplitPercent); err != nil {
				return err
			}

			scenario := scenarioFlag
			if scenario == "" && workdirFlag != "" {
				scenario = filepath.Base(workdirFlag)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := router.New(scenario, manager, cfg).Run(ctx, socketPath)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	runCmd = &cobra.Command{
		Use:   "run <command...>",
		Short: "Run a command in the reusable canvas pane, creating it if needed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(false)
			defer log.Close()

			cfg := config.LoadConfig()
			manager := pane.NewManager(config.RoleCanvas, tmux.NewDriver(), config.LoadState())

			reused, err := manager.ReuseOrCreate(strings.Join(args, " "), cfg.SplitPercent)
			if err != nil {
				return err
			}
			if reused {
				fmt.Printf("Reused canvas pane %s\n", manager.PaneID())
			} else {
				fmt.Printf("Created canvas pane %s\n", manager.PaneID())
			}
			return nil
		},
	}

	captureCmd = &cobra.Command{
		Use:   "capture",
		Short: "Print a snapshot of the viewer pane",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(false)
			defer log.Close()

			manager := pane.NewManager(config.RoleViewer, tmux.NewDriver(), config.LoadState())

			content, err := manager.Capture()
			if err != nil {
				if errors.Is(err, pane.ErrNoPane) {
					return fmt.Errorf("no viewer pane is running")
				}
				return err
			}

			if plainFlag {
				content = tmux.StripEscapes(content)
			}
			fmt.Print(content)

			if copyFlag {
				if err := clipboard.WriteAll(tmux.StripEscapes(content)); err != nil {
					return fmt.Errorf("failed to copy snapshot to clipboard: %w", err)
				}
				fmt.Fprintln(os.Stderr, "Snapshot copied to clipboard")
			}
			return nil
		},
	}

	attachCmd = &cobra.Command{
		Use:   "attach",
		Short: "Attach the current terminal to the viewer pane's session",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(false)
			defer log.Close()

			manager := pane.NewManager(config.RoleViewer, tmux.NewDriver(), config.LoadState())

			paneID := manager.PaneID()
			if paneID == "" {
				return fmt.Errorf("no viewer pane is running")
			}

			detached, err := tmux.Attach(paneID)
			if err != nil {
				return err
			}
			<-detached
			return nil
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show pane references and their liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(false)
			defer log.Close()

			driver := tmux.NewDriver()
			store := config.LoadState()

			labelStyle := lipgloss.NewStyle().Bold(true).Width(8)
			aliveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
			deadStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

			for _, role := range []config.PaneRole{config.RoleCanvas, config.RoleViewer} {
				manager := pane.NewManager(role, driver, store)
				line := labelStyle.Render(string(role))
				if id := manager.PaneID(); id != "" {
					line += aliveStyle.Render(fmt.Sprintf("%s (alive)", id))
				} else {
					line += deadStyle.Render("none")
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Kill managed panes and blank their references",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(false)
			defer log.Close()

			driver := tmux.NewDriver()
			store := config.LoadState()

			for _, role := range []config.PaneRole{config.RoleCanvas, config.RoleViewer} {
				manager := pane.NewManager(role, driver, store)
				manager.Kill()
			}
			fmt.Println("Pane references have been reset")
			return nil
		},
	}

	debugCmd = &cobra.Command{
		Use:   "debug",
		Short: "Print debug information like config paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(false)
			defer log.Close()

			cfg := config.LoadConfig()

			configDir, err := config.GetConfigDir()
			if err != nil {
				return fmt.Errorf("failed to get config directory: %w", err)
			}
			configJson, _ := json.MarshalIndent(cfg, "", "  ")

			socketPath, err := cfg.ResolveSocketPath()
			if err != nil {
				return err
			}

			fmt.Printf("Config: %s\n%s\n", filepath.Join(configDir, config.ConfigFileName), configJson)
			fmt.Printf("State: %s\n", filepath.Join(configDir, config.StateFileName))
			fmt.Printf("Socket: %s\n", socketPath)
			fmt.Printf("Tmux available: %v\n", tmux.IsAvailable())

			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of wandb-canvas",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wandb-canvas version %s\n", version)
		},
	}
)

func init() {
	rootCmd.Flags().StringVarP(&programFlag, "program", "p", "",
		"Viewer program to run in the pane (defaults to the configured leet command)")
	rootCmd.Flags().StringVarP(&workdirFlag, "workdir", "d", "",
		"Run directory passed to the viewer via --dir")
	rootCmd.Flags().StringVar(&scenarioFlag, "scenario", "",
		"Scenario name sent in the ready handshake (defaults to the workdir base name)")
	rootCmd.Flags().StringVar(&socketFlag, "socket", "",
		"Unix socket path of the controller (defaults to the configured socket)")
	rootCmd.Flags().IntVar(&intervalFlag, "interval", -1,
		"Capture interval in milliseconds, 0 disables repeated captures")

	captureCmd.Flags().BoolVarP(&copyFlag, "copy", "c", false,
		"Copy the snapshot to the system clipboard (without formatting escapes)")
	captureCmd.Flags().BoolVar(&plainFlag, "plain", false,
		"Strip formatting escapes from the printed snapshot")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
	}
}
