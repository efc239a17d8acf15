package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/can-acar/lockprobe/internal/actionlog"
	"github.com/can-acar/lockprobe/nativeplatform"
)

const usage = `Kullanım: lockprobe <hedef-yol> [--dry-run] [--verbose] [--force] [--check] [--exclude "*.log,*.tmp"] [--logfile <dosya>] [--config <dosya>]`

type Options struct {
	DryRun      bool
	Verbose     bool
	Force       bool
	Check       bool
	Excludes    []string
	Protected   []string
	Logfile     string
	ConfigFile  string
	GracePeriod time.Duration
	Platform    nativeplatform.Config
}

var errUsage = errors.New("usage")

// parseArgs reads flags, then merges the config file underneath them.
func parseArgs(args []string, stderr io.Writer) (Options, string, error) {
	opts := Options{Platform: nativeplatform.DefaultConfig()}
	var excludeList string

	fs := pflag.NewFlagSet("lockprobe", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Sadece neleri sileceğini göster")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Silinenleri detaylı göster")
	fs.BoolVar(&opts.Force, "force", false, "Kilitli dosyalar için process kill uygula")
	fs.BoolVar(&opts.Check, "check", false, "Hiçbir şey silme, sadece kilitli dosyaları raporla")
	fs.StringVar(&excludeList, "exclude", "", "Hariç tutulacak pattern (virgülle ayır)")
	fs.StringVar(&opts.Logfile, "logfile", "lockprobe.log", "Log dosyası")
	fs.StringVar(&opts.ConfigFile, "config", "", "TOML config dosyası")
	fs.DurationVar(&opts.GracePeriod, "grace-period", 5*time.Second, "Zorla sonlandırmadan önce bekleme süresi")
	if err := fs.Parse(args); err != nil {
		return opts, "", err
	}

	if excludeList != "" {
		opts.Excludes = strings.Split(excludeList, ",")
	}

	if opts.ConfigFile != "" {
		cfg, err := LoadFileConfig(opts.ConfigFile)
		if err != nil {
			return opts, "", err
		}
		applyFileConfig(&opts, cfg, fs)
	}

	if fs.NArg() < 1 {
		return opts, "", errUsage
	}
	return opts, fs.Arg(0), nil
}

func applyFileConfig(opts *Options, cfg *FileConfig, fs *pflag.FlagSet) {
	if !fs.Changed("exclude") {
		opts.Excludes = cfg.Exclude
	}
	if !fs.Changed("logfile") && cfg.Logfile != "" {
		opts.Logfile = cfg.Logfile
	}
	if !fs.Changed("force") {
		opts.Force = cfg.Force
	}
	if !fs.Changed("grace-period") {
		opts.GracePeriod = parseDuration(cfg.GracePeriod, opts.GracePeriod)
	}
	opts.Protected = cfg.Protected
	opts.Platform.QueryTimeout = parseDuration(cfg.QueryTimeout, opts.Platform.QueryTimeout)
	opts.Platform.MaxWorkers = cfg.MaxWorkers
}

func main() {
	opts, target, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Hata: %v\n", err)
		}
		fmt.Println(usage)
		os.Exit(1)
	}

	// Kritik sistem dizinlerinden korun!
	if IsDangerousPath(target, opts.Protected) {
		fmt.Printf("UYARI: %s silinemez (sistem dizini)\n", target)
		os.Exit(2)
	}

	// Logger'ı başlat
	actionlog.Start(opts.Logfile)
	defer actionlog.Stop()

	platform := nativeplatform.Init(opts.Platform)
	r := NewRemover(opts, platform, NewKiller(opts.GracePeriod), os.Stdout, os.Stderr)
	ctx := context.Background()

	if opts.Check {
		locked, err := r.Check(ctx, target)
		if err != nil {
			fmt.Printf("Hata: %v\n", err)
			actionlog.Stop()
			os.Exit(1)
		}
		if locked > 0 {
			actionlog.Stop()
			os.Exit(3)
		}
		return
	}

	if err := r.Rimraf(ctx, target); err != nil {
		fmt.Printf("Hata: %v\n", err)
		actionlog.Stop()
		os.Exit(1)
	}
	fmt.Println("İşlem tamamlandı.")
}
