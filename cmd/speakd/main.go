package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iabetor/speakd/internal/config"
	"github.com/iabetor/speakd/internal/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "speakd",
		Short:        "Text to speech HTTP service",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/speakd.yaml", "配置文件路径")

	cmd.AddCommand(
		newServeCommand(&configPath),
		newVoicesCommand(&configPath),
		newSayCommand(&configPath),
	)
	return cmd
}

// loadConfig 读取配置并初始化日志。
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}
