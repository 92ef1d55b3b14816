package cmd

import (
	"context"
	"fmt"
	u "net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/scheduler"
	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

var (
	output        string
	connections   int
	maxRetries    int
	expectedHash  string
	verify        bool
	keepSegments  bool
	chaosMode     bool
	workers       int
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	headers       []string
	debug         bool

	globalHTTPConfig utils.HTTPClientConfig
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "vhdget [URL]",
	Short:   "vhdget is a parallel segmented downloader for VHD disk images",
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		if userAgent == "randomize" {
			userAgent = utils.GetRandomUserAgent()
		}
		// Proxy URL may carry auth
		if parsedProxy, err := u.Parse(proxyURL); err == nil && parsedProxy.User != nil && proxyUsername == "" {
			proxyUsername = parsedProxy.User.Username()
			if password, set := parsedProxy.User.Password(); set {
				proxyPassword = password
			}
			parsedProxy.User = nil
			proxyURL = parsedProxy.String()
		}
		globalHTTPConfig = utils.HTTPClientConfig{
			Timeout:       timeout,
			KATimeout:     kaTimeout,
			ProxyURL:      proxyURL,
			ProxyUsername: proxyUsername,
			ProxyPassword: proxyPassword,
			UserAgent:     userAgent,
			Headers:       utils.ParseHeaderArgs(headers),
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			cmd.Help()
			os.Exit(1)
		}
		url := args[0]
		if _, err := u.Parse(url); err != nil {
			fmt.Fprintln(os.Stderr, "Invalid URL format")
			os.Exit(1)
		}
		job := utils.VHDJob{
			JobType:          utils.DetermineDownloadType(url),
			URL:              url,
			OutputPath:       output,
			Connections:      connections,
			MaxRetries:       maxRetries,
			ExpectedDigest:   expectedHash,
			Verify:           verify,
			KeepSegments:     keepSegments,
			Chaos:            chaosConfig(),
			Metadata:         make(map[string]any),
			HTTPClientConfig: globalHTTPConfig,
		}
		runJobs([]utils.VHDJob{job}, 1)
	},
}

func chaosConfig() utils.ChaosConfig {
	if !chaosMode {
		return utils.ChaosConfig{}
	}
	return utils.ChaosConfig{
		FailFirstSegment: true,
		HangSegment:      true,
		HangTimeout:      utils.DefaultChaosHangTimeout,
	}
}

// runJobs executes the jobs with signal-driven cancellation and exits
// non-zero on any failure.
func runJobs(jobs []utils.VHDJob, numWorkers int) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := scheduler.Run(ctx, jobs, numWorkers); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (inferred from the URL if not provided)")
	rootCmd.Flags().StringVar(&expectedHash, "hash", "", "Expected SHA-256 digest of the download (64 hex characters)")
	rootCmd.Flags().BoolVar(&verify, "verify", false, "Verify the merged output against the expected digest (fetched from <url>.sha256 when --hash is not given)")
	rootCmd.Flags().BoolVar(&keepSegments, "keep-segments", false, "Keep segment files and the staging directory after a successful merge")
	rootCmd.Flags().BoolVar(&chaosMode, "chaos", false, "Inject deterministic faults into segments 0 and 1 (testing)")

	rootCmd.PersistentFlags().IntVarP(&connections, "connections", "c", 8, "Number of connections per download (above 5 enables high-thread-mode)")
	rootCmd.PersistentFlags().IntVarP(&maxRetries, "retries", "r", 3, "Retry budget per segment")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 1, "Number of downloads to run in parallel")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 3*time.Minute, "Per-request timeout, including reading the response body (eg. 5s, 10m)")
	rootCmd.PersistentFlags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent ('randomize' picks a browser UA)")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., http://proxy.example.com:8080)")
	rootCmd.PersistentFlags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newS3Cmd())
}
