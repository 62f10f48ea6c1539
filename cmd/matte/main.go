package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/peelkit/matte/client"
	"github.com/peelkit/matte/compose"
	"github.com/peelkit/matte/internal/config"
	"github.com/peelkit/matte/internal/logging"
	"github.com/peelkit/matte/internal/runner"
	"github.com/peelkit/matte/mediactx"
	"github.com/peelkit/matte/pkg/util"
	"github.com/peelkit/matte/probe"
)

var (
	cfgFile string
	verbose bool
	apiKey  string
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "matte",
	Short: "matte - background-removal compositing toolkit",
	Long:  "Removes video backgrounds through the remote matting API and composites the transparent result over new backdrops with ffmpeg.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		// .env is optional
		_ = godotenv.Load()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		mediactx.SetCurrent(mediactx.New(cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath, cfg.TempDir, log.Logger))

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		mediactx.Current().Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./matte.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (default: $MATTE_API_KEY)")

	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(creditsCmd)
	rootCmd.AddCommand(webhooksCmd)
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg := config.FromContext(cmd.Context())

	key := apiKey
	if key == "" {
		key = os.Getenv("MATTE_API_KEY")
	}
	if key == "" {
		key = cfg.API.Key
	}
	if key == "" {
		return nil, fmt.Errorf("no API key: pass --api-key, set MATTE_API_KEY, or configure api.key")
	}

	opts := []client.Option{client.WithLogger(log.Logger)}
	if cfg.API.BaseURL != "" {
		opts = append(opts, client.WithBaseURL(cfg.API.BaseURL))
	}
	if cfg.API.PollInterval > 0 {
		opts = append(opts, client.WithPollInterval(time.Duration(cfg.API.PollInterval)*time.Second))
	}
	return client.New(key, opts...), nil
}

var probeCmd = &cobra.Command{
	Use:   "probe [file or URL]",
	Short: "Print stream metadata for a media file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info := probe.Probe(cmd.Context(), mediactx.Current(), args[0])
		if info.Unknown() {
			return fmt.Errorf("could not probe %s", args[0])
		}

		out, err := yaml.Marshal(info)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var (
	composeOutput string
	composeDryRun bool
)

var composeCmd = &cobra.Command{
	Use:   "compose [project file]",
	Short: "Composite a project file into a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := loadProject(args[0])
		if err != nil {
			return err
		}

		comp, profile, err := project.build()
		if err != nil {
			return err
		}

		if composeDryRun {
			line, err := comp.DryRun(profile, composeOutput)
			if err != nil {
				return err
			}
			fmt.Println(line)
			return nil
		}

		var bar *progressbar.ProgressBar
		onProgress := func(p runner.Progress) {}
		if total, ok := comp.ResolvedDuration(); ok && !verbose {
			bar = progressbar.NewOptions(int(total*10),
				progressbar.OptionSetDescription("compositing"),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionClearOnFinish(),
			)
			onProgress = func(p runner.Progress) {
				_ = bar.Set(int(p.Seconds * 10))
			}
		}

		start := time.Now()
		err = comp.ToFile(cmd.Context(), composeOutput, profile, compose.ExportOptions{
			Verbose:    verbose,
			OnProgress: onProgress,
		})
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return err
		}

		log.Info().
			Str("output", composeOutput).
			Dur("elapsed", time.Since(start)).
			Msg("export complete")
		return nil
	},
}

var (
	removeOutput string
	removeFormat string
	webhookURL   string
)

var removeCmd = &cobra.Command{
	Use:   "remove [video file or URL]",
	Short: "Remove a video's background through the remote API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		job, err := createJob(cmd.Context(), c, args[0])
		if err != nil {
			return err
		}
		log.Info().Str("job", job.ID).Msg("job created")

		job, err = c.StartJob(cmd.Context(), job.ID, client.StartOptions{
			Format:     removeFormat,
			WebhookURL: webhookURL,
		})
		if err != nil {
			return err
		}

		bar := progressbar.NewOptions(100,
			progressbar.OptionSetDescription("processing"),
			progressbar.OptionClearOnFinish(),
		)
		job, err = c.WaitForJob(cmd.Context(), job.ID, func(pct int) {
			_ = bar.Set(pct)
		})
		_ = bar.Finish()
		if err != nil {
			return err
		}

		fg, err := c.FetchResult(cmd.Context(), job)
		if err != nil {
			return err
		}

		if removeOutput == "" {
			fmt.Println(fg.Source)
			return nil
		}
		if err := util.CopyFile(fg.Source, removeOutput); err != nil {
			return err
		}
		log.Info().Str("output", removeOutput).Msg("result saved")
		return nil
	},
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show the account's remaining credit balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		balance, err := c.Credits(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("total:        %.2f\n", balance.Total)
		fmt.Printf("subscription: %.2f\n", balance.Subscription)
		fmt.Printf("pay-as-you-go: %.2f\n", balance.PayAsYouGo)
		fmt.Printf("free:         %.2f\n", balance.FreeRemaining)
		return nil
	},
}

var webhooksCmd = &cobra.Command{
	Use:   "webhooks [job id]",
	Short: "List webhook delivery attempts for a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		deliveries, err := c.WebhookDeliveries(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		for _, d := range deliveries {
			fmt.Printf("%s  %d  %s  %s\n", d.ID, d.ResponseCode, d.URL, d.DeliveredAt.Format(time.RFC3339))
		}
		return nil
	},
}

func createJob(ctx context.Context, c *client.Client, input string) (*client.Job, error) {
	if util.IsRemote(input) {
		return c.CreateJobFromURL(ctx, input)
	}
	return c.CreateJobFromFile(ctx, input)
}

func init() {
	composeCmd.Flags().StringVarP(&composeOutput, "output", "o", "output.mp4", "output file")
	composeCmd.Flags().BoolVar(&composeDryRun, "dry-run", false, "print the ffmpeg command instead of running it")

	removeCmd.Flags().StringVarP(&removeOutput, "output", "o", "", "where to save the result (default: temp path, printed)")
	removeCmd.Flags().StringVar(&removeFormat, "format", "alpha-webm", "result format (alpha-webm, alpha-mov, pair-zip, stacked)")
	removeCmd.Flags().StringVar(&webhookURL, "webhook", "", "webhook URL for completion notification")
}
