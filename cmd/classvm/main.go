package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/classvm/classvm/internal/config"
	"github.com/classvm/classvm/internal/vm"
	"github.com/spf13/cobra"
)

var (
	classPath []string
	xmx       int
	xss       int
	debugPort int
)

func run(cmd *cobra.Command, args []string) error {
	filename := args[0]
	dir := filepath.Dir(filename)
	className := strings.TrimSuffix(filepath.Base(filename), ".class")

	cfg := config.New()
	cfg.MainClass = className
	cfg.ClassPath = append([]string{dir}, classPath...)
	if xmx > 0 {
		cfg.MaxHeapSize = xmx
	}
	if xss > 0 {
		cfg.FrameStackSize = xss
	}
	cfg.DebugPort = debugPort

	if err := vm.Run(cfg, os.Stdout, os.Stderr); err != nil {
		return fmt.Errorf("executing %s: %w", className, err)
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "classvm <classfile>",
		Short: "A JVM 24 bytecode interpreter",
		Long:  "classvm loads and executes a single Java class file against a real java.base.jmod.",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the engine version",
		Long:  "Print the engine version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.EngineVersion)
		},
	}

	rootCmd.Flags().StringArrayVarP(&classPath, "classpath", "c", nil, "additional classpath directory (repeatable)")
	rootCmd.Flags().IntVar(&xmx, "xmx", 0, "maximum heap size in bytes (0 = engine default)")
	rootCmd.Flags().IntVar(&xss, "xss", 0, "frame stack depth (0 = engine default)")
	rootCmd.Flags().IntVar(&debugPort, "debug-port", 0, "JDWP-lite debugger port (0 = disabled)")

	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
