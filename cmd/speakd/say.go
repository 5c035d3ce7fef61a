package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iabetor/speakd/internal/app"
	"github.com/iabetor/speakd/internal/logger"
	"github.com/iabetor/speakd/internal/speech"
)

func newSayCommand(configPath *string) *cobra.Command {
	var (
		voice string
		rate  int
	)

	cmd := &cobra.Command{
		Use:     "say <text>",
		Short:   "Synthesize text into the output directory and print the file path",
		Example: `speakd say --voice male --rate 150 "Hello world"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			form := url.Values{"text": {strings.Join(args, " ")}}
			if voice != "" {
				form.Set("voice", voice)
			}
			if rate > 0 {
				form.Set("rate", strconv.Itoa(rate))
			}
			req, err := speech.ParseRequest(form, speech.Defaults{Voice: cfg.TTS.DefaultVoice, Rate: cfg.TTS.DefaultRate})
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			art, err := a.Service().Speak(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\t%d\n", art.Path, art.MimeType, art.Size)
			return nil
		},
	}

	cmd.Flags().StringVar(&voice, "voice", "", "male 或 female，默认使用配置中的 default_voice")
	cmd.Flags().IntVar(&rate, "rate", 0, "语速（每分钟词数），默认使用配置中的 default_rate")
	return cmd
}
