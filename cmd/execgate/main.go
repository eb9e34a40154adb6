//go:build linux

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/karashiro/execgate/internal/fan"
	"github.com/karashiro/execgate/internal/gateway"
	"github.com/karashiro/execgate/internal/nsenter"
	"github.com/karashiro/execgate/internal/policy"
	"github.com/karashiro/execgate/internal/report"
)

func init() {
	// setns applies to the calling thread only; keep main pinned to one OS
	// thread for the life of the process.
	runtime.LockOSThread()
}

var (
	flagPolicy   string
	flagAllow    []string
	flagFormat   string
	flagOutput   string
	flagColor    string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "execgate MOUNTNS_FILE PIDNS_FILE MOUNT",
	Short:         "Gate execute-opens on a mount inside a target namespace pair",
	Args:          cobra.ExactArgs(3),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagPolicy, "policy", "allow", "decision policy: allow|deny|allowlist|baseline")
	f.StringArrayVar(&flagAllow, "allow", nil, "path prefix permitted by the allowlist policy (repeatable)")
	f.StringVar(&flagFormat, "format", "text", "report format: text|jsonl")
	f.StringVar(&flagOutput, "output", "", "write reports to this file instead of stdout")
	f.StringVar(&flagColor, "color", "auto", "colorize decisions: auto|always|never")
	f.StringVar(&flagLogLevel, "log-level", "info", "log level: debug|info|warn|error")
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func run(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(flagLogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log := logrus.New()
	log.SetLevel(level)

	mountNS, pidNS, mountPoint := args[0], args[1], args[2]

	// Namespace entry and the procfs remount must precede everything else:
	// path resolution for reported files depends on being inside the
	// target namespaces.
	if err := nsenter.Enter(mountNS, pidNS); err != nil {
		return err
	}
	if err := nsenter.MountProc(); err != nil {
		return err
	}

	pol, err := buildPolicy(mountPoint, log)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	var outFile *os.File
	if flagOutput != "" {
		outFile, err = os.OpenFile(flagOutput, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("open output %s: %w", flagOutput, err)
		}
		out = outFile
	}

	sink, err := buildSink(out)
	if err != nil {
		if outFile != nil {
			_ = outFile.Close()
		}
		return err
	}

	ch, err := fan.Open(mountPoint)
	if err != nil {
		return err
	}
	defer ch.Close()

	loop := gateway.New(gateway.Config{
		Source:  ch,
		Policy:  pol,
		Sink:    sink,
		Console: os.Stdin,
		Log:     log,
	})

	fmt.Println("Press enter key to terminate.")
	log.WithFields(logrus.Fields{"mount": mountPoint, "policy": flagPolicy}).Info("listening for events")

	runErr := loop.Run(cmd.Context())

	if err := sink.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if outFile != nil {
		if err := outFile.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}

	st := loop.Stats()
	log.WithFields(logrus.Fields{
		"events":      st.Events,
		"permissions": st.Permissions,
		"allowed":     st.Allowed,
		"denied":      st.Denied,
		"overflows":   st.Overflows,
		"skipped":     st.Skipped,
	}).Info("listening for events stopped")

	return runErr
}

func buildPolicy(mountPoint string, log *logrus.Logger) (policy.Policy, error) {
	switch flagPolicy {
	case "allow":
		return policy.AllowAll(), nil
	case "deny":
		return policy.DenyAll(), nil
	case "allowlist":
		if len(flagAllow) == 0 {
			return nil, fmt.Errorf("allowlist policy needs at least one --allow prefix")
		}
		return policy.NewAllowlist(flagAllow), nil
	case "baseline":
		log.WithField("root", mountPoint).Info("scanning executables for the baseline")
		b, err := policy.BuildBaseline(mountPoint)
		if err != nil {
			return nil, fmt.Errorf("build baseline: %w", err)
		}
		log.WithField("files", b.Len()).Info("baseline ready")
		return b, nil
	default:
		return nil, fmt.Errorf("unknown policy %q (expected allow|deny|allowlist|baseline)", flagPolicy)
	}
}

func buildSink(out io.Writer) (report.Sink, error) {
	switch flagFormat {
	case "text":
		return report.NewTextSink(out, flagColor)
	case "jsonl":
		return report.NewJSONLSink(out), nil
	default:
		return nil, fmt.Errorf("unknown format %q (expected text|jsonl)", flagFormat)
	}
}
