package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// serviceStopTimeout bounds how long the service manager waits for Stop.
const serviceStopTimeout = 45 * time.Second

// serviceActions are the control verbs accepted by `vitals service`.
var serviceActions = []string{"install", "uninstall", "start", "stop", "restart", "status"}

// program adapts runServer to the service lifecycle: Start must not
// block, Stop waits for the graceful shutdown.
type program struct {
	opts   *cliOptions
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		p.err = runServer(ctx, p.opts, false)
		if p.err != nil && !service.Interactive() {
			// Let the service manager see the failure and apply its restart policy.
			os.Exit(exitCode(p.err))
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	select {
	case <-p.done:
		return nil
	case <-time.After(serviceStopTimeout):
		return errors.New("timeout waiting for service to stop")
	}
}

// serviceConfig describes the installed service. The current working
// directory and the persistent flags are recorded so the service finds
// the same .env and data directory.
func serviceConfig(opts *cliOptions) *service.Config {
	args := []string{"serve"}
	if opts.envFile != "" {
		args = append(args, "--env-file", opts.envFile)
	}
	if opts.configFile != "" {
		args = append(args, "--config", opts.configFile)
	}
	if opts.logLevel != "" {
		args = append(args, "--log-level", opts.logLevel)
	}

	wd, _ := os.Getwd()
	return &service.Config{
		Name:             "vitals-backend",
		DisplayName:      "VitalLens Vital Signs Server",
		Description:      "Web server for rPPG vital-signs analysis of uploaded videos and webcam recordings.",
		Arguments:        args,
		WorkingDirectory: wd,
		Option: service.KeyValue{
			"StartType":              "automatic",
			"Restart":                "on-failure",
			"OnFailure":              "restart",
			"OnFailureDelayDuration": "5s",
		},
	}
}

func newService(opts *cliOptions) (service.Service, error) {
	s, err := service.New(&program{opts: opts}, serviceConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

// runAsService hands control to the platform service manager.
func runAsService(opts *cliOptions) error {
	s, err := newService(opts)
	if err != nil {
		return err
	}
	if err := s.Run(); err != nil {
		return fmt.Errorf("service run failed: %w", err)
	}
	return nil
}

func statusText(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "Service is running"
	case service.StatusStopped:
		return "Service is stopped"
	default:
		return "Service status unknown"
	}
}

func newServiceCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service ACTION",
		Short:     "Manage the system service (install, uninstall, start, stop, restart, status)",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: serviceActions,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newService(opts)
			if err != nil {
				return err
			}

			action := args[0]
			if action == "status" {
				st, err := s.Status()
				if errors.Is(err, service.ErrNotInstalled) {
					fmt.Fprintln(cmd.OutOrStdout(), "Service is not installed")
					return nil
				}
				if err != nil {
					return fmt.Errorf("failed to get service status: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), statusText(st))
				return nil
			}

			if err := service.Control(s, action); err != nil {
				return fmt.Errorf("service %s: %w", action, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service %s: ok\n", action)
			return nil
		},
	}
	return cmd
}
