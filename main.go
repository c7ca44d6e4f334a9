package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"smppd/smpp"
)

var (
	appName = "smppd" // application name
	version = "1.0.0" // version
	date    = ""      // build date
	build   = ""      // build number in the git repository
)

type options struct {
	config string
	debug  bool
	listen string
	admin  string
	check  string
}

func parseFlags(args []string) (*options, error) {
	opts := &options{config: "config.yaml"}
	flags := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	flags.StringVarP(&opts.config, "config", "c", opts.config, "configuration `file`")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "log every PDU and dump the configuration")
	flags.StringVar(&opts.listen, "listen", "", "SMPP listen `address`, overrides server.address")
	flags.StringVar(&opts.admin, "admin", "", "admin HTTP `address`, overrides admin.address")
	flags.StringVar(&opts.check, "check", "", "bind to a running server at `address` and exit")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// setupLogging configures logger from the log section.
func setupLogging(logger *logrus.Logger, config LogConfig, debug bool) error {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return err
	}
	if debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	var formatter logrus.Formatter
	switch config.Format {
	case "json":
		formatter = &logrus.JSONFormatter{}
	case "prefixed":
		formatter = &prefixed.TextFormatter{FullTimestamp: true}
	default:
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	}
	logger.SetFormatter(formatter)
	if len(config.Files) > 0 {
		paths := make(lfshook.PathMap, len(config.Files))
		for name, file := range config.Files {
			level, err := logrus.ParseLevel(name)
			if err != nil {
				return err
			}
			paths[level] = file
		}
		logger.AddHook(lfshook.NewHook(paths, &logrus.JSONFormatter{}))
	}
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	printVersion(os.Stderr)

	for { // endless loop of loading and stopping services
		logger := logrus.New()
		log := logrus.NewEntry(logger)
		log.WithField("file", opts.config).Info("Loading config")
		config, err := LoadConfig(opts.config)
		if err != nil {
			log.WithError(err).Fatal("Error loading config")
		}
		if opts.listen != "" {
			config.Server.Address = opts.listen
		}
		if opts.admin != "" {
			config.Admin.Address = opts.admin
		}
		if err := setupLogging(logger, config.Log, opts.debug); err != nil {
			log.WithError(err).Fatal("Error configuring log")
		}
		if opts.check != "" {
			if err := check(opts.check, config, log); err != nil {
				log.WithError(err).Fatal("Check failed")
			}
			log.Info("Check passed")
			return
		}
		if opts.debug {
			log.Debug(pretty.Sprint(config))
		}

		service, err := NewService(config, log)
		if err != nil {
			log.WithError(err).Fatal("Error starting service")
		}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- service.Run(ctx) }()

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
		var sig os.Signal
		select {
		case sig = <-signals:
			log.WithField("signal", sig.String()).Info("Signal received")
			cancel()
			err = <-done
		case err = <-done:
			cancel()
		}
		signal.Stop(signals)
		if err != nil {
			log.WithError(err).Fatal("Service error")
		}
		if sig != syscall.SIGUSR1 {
			log.Info("[THE END]")
			return
		}
		log.Info("Reload signal...")
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "### %s %s", appName, version)
	if build != "" { // add the build to the version number
		fmt.Fprintf(w, " [#%s]", build)
	}
	if date != "" { // add the build date to the version
		fmt.Fprintf(w, " (%s)", date)
	}
	fmt.Fprintln(w)
}

// checkInterval paces the keepalive used by check. A response must arrive
// within half of it.
const checkInterval = time.Second

// check binds to addr as a transceiver with the first configured account,
// waits for one answered enquire_link from the keepalive and unbinds.
func check(addr string, config *Config, log *logrus.Entry) error {
	systemID, password := "check", ""
	if len(config.Accounts) > 0 {
		ids := make([]string, 0, len(config.Accounts))
		for id := range config.Accounts {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		systemID, password = ids[0], config.Accounts[ids[0]]
	}
	trx, err := smpp.Dial(addr, nil)
	if err != nil {
		return err
	}
	defer trx.Close()
	resp, err := trx.Bind(smpp.BIND_TRANSCEIVER, systemID, password)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"server":    resp.Body.(*smpp.BindResp).SystemID,
		"system_id": systemID,
	}).Info("Bound")

	packets := make(chan *smpp.Packet, 16)
	go func() {
		defer close(packets)
		for {
			p, err := trx.Read()
			if err != nil {
				return
			}
			packets <- p
		}
	}()

	trx.StartEnquireLink(checkInterval)
	err = awaitResponse(trx, packets, 3*checkInterval, func(p *smpp.Packet) bool {
		return p.CommandID == smpp.ENQUIRE_LINK_RESP
	})
	if err != nil {
		return fmt.Errorf("%v: %w", smpp.ENQUIRE_LINK, err)
	}
	log.Debug("Enquire link answered")

	seq, err := trx.Unbind()
	if err != nil {
		return err
	}
	err = awaitResponse(trx, packets, 5*time.Second, func(p *smpp.Packet) bool {
		return p.Sequence == seq
	})
	if err != nil {
		return fmt.Errorf("%v: %w", smpp.UNBIND, err)
	}
	if trx.Bound() {
		return fmt.Errorf("%v: still bound", smpp.UNBIND)
	}
	return nil
}

// awaitResponse waits for the first response accepted by match. A closed
// stream reports the keepalive failure when there was one.
func awaitResponse(trx *smpp.Transceiver, packets <-chan *smpp.Packet, timeout time.Duration, match func(*smpp.Packet) bool) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case p, ok := <-packets:
			if !ok {
				if err := trx.Err(); err != nil {
					return err
				}
				return smpp.ErrClosed
			}
			if p.IsResponse() && match(p) {
				if !p.Status.Ok() {
					return p.Status
				}
				return nil
			}
		case <-timer.C:
			return smpp.ErrTimeout
		}
	}
}
