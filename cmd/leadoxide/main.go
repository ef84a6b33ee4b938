// Command leadoxide fetches proxy records from pubproxy.com and prints
// them as JSON lines, one per record.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LovecraftianHorror/lead-oxide/pkg/fetcher"
	"github.com/LovecraftianHorror/lead-oxide/pkg/logging"
	"github.com/LovecraftianHorror/lead-oxide/pkg/options"
	"github.com/LovecraftianHorror/lead-oxide/pkg/proxy"
)

var (
	flagAmount    int
	flagAPIKey    string
	flagLevel     string
	flagProtocol  string
	flagCountries []string
	flagBlocked   []string
	flagHTTPS     bool
	flagLastCheck int
	flagLogLevel  string
	flagPretty    bool
)

func main() {
	cmd := &cobra.Command{
		Use:   "leadoxide",
		Short: "Fetch proxies from the pubproxy listing service",
		Long: `leadoxide fetches batches of proxy records from pubproxy.com,
spacing out keyless requests so the service does not rate-limit you.
With an API key (--api-key or PUBPROXY_API_KEY) requests are not spaced.`,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().IntVarP(&flagAmount, "amount", "n", 5, "number of proxies to fetch")
	cmd.Flags().StringVar(&flagAPIKey, "api-key", os.Getenv("PUBPROXY_API_KEY"), "pubproxy API key (premium, no request spacing)")
	cmd.Flags().StringVar(&flagLevel, "level", "", "anonymity level (anonymous, elite)")
	cmd.Flags().StringVar(&flagProtocol, "protocol", "", "protocol (http, socks4, socks5)")
	cmd.Flags().StringSliceVar(&flagCountries, "country", nil, "only these country codes")
	cmd.Flags().StringSliceVar(&flagBlocked, "not-country", nil, "exclude these country codes")
	cmd.Flags().BoolVar(&flagHTTPS, "https", false, "only proxies supporting HTTPS")
	cmd.Flags().IntVar(&flagLastCheck, "last-check", 0, "only proxies checked within this many minutes")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&flagPretty, "pretty-logs", false, "human-readable log output")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(flagLogLevel),
		Pretty: flagPretty,
		Output: os.Stderr,
	})

	opts, err := buildOpts()
	if err != nil {
		return err
	}

	f := fetcher.NewSession().FetcherWithOpts(opts)

	proxies, err := f.TryGet(cmd.Context(), flagAmount)
	if err != nil {
		return fmt.Errorf("fetch proxies: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, p := range proxies {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}

	// Records past the requested amount stay server-side next run; the
	// buffer holds nothing worth keeping once we printed the batch.
	_ = f.Drain()
	return nil
}

func buildOpts() (options.Opts, error) {
	b := options.New().APIKey(flagAPIKey).HTTPS(flagHTTPS)

	switch flagLevel {
	case "":
	case "anonymous":
		b.Level(proxy.LevelAnonymous)
	case "elite":
		b.Level(proxy.LevelElite)
	default:
		return options.Opts{}, fmt.Errorf("unknown level %q", flagLevel)
	}

	switch flagProtocol {
	case "":
	case "http":
		b.Protocol(proxy.ProtocolHTTP)
	case "socks4":
		b.Protocol(proxy.ProtocolSocks4)
	case "socks5":
		b.Protocol(proxy.ProtocolSocks5)
	default:
		return options.Opts{}, fmt.Errorf("unknown protocol %q", flagProtocol)
	}

	if len(flagCountries) > 0 && len(flagBlocked) > 0 {
		return options.Opts{}, fmt.Errorf("--country and --not-country are mutually exclusive")
	}
	if len(flagCountries) > 0 {
		b.Countries(options.AllowCountries(flagCountries...))
	}
	if len(flagBlocked) > 0 {
		b.Countries(options.BlockCountries(flagBlocked...))
	}

	if flagLastCheck > 0 {
		b.LastChecked(flagLastCheck)
	}

	return b.Build(), nil
}
