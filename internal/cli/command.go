package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"madrasah/internal/common"

	"github.com/spf13/cobra"
)

type CommandOpts struct {
	Name  string
	Flags Flags

	Use     string
	Aliases []string
	Short   string
	Long    string

	Run func(cmd *cobra.Command, opts *Command, args []string) error
}

// NewCommand wraps a cobra command with a service log loop, signal
// handling and ordered shutdown of whatever the command registers
func NewCommand(opts CommandOpts) *Command {
	output := &Command{
		name:              opts.Name,
		shutdownProcesses: map[string]func() error{},
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown_hostname"
	}
	output.hostname = hostname

	output.Command = &cobra.Command{
		Use:     opts.Use,
		Aliases: opts.Aliases,
		Short:   opts.Short,
		Long:    opts.Long,
		PreRun: func(cmd *cobra.Command, args []string) {
			opts.Flags.BindViper(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			serviceLogs := make(chan common.ServiceLog, 64)
			common.StartServiceLogLoop(serviceLogs)
			output.serviceLogs = serviceLogs

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			output.ctx = ctx

			err := opts.Run(cmd, output, args)
			output.Shutdown()
			return errors.Join(err, output.Error())
		},
	}
	opts.Flags.AddToCommand(output.Command)
	return output
}

// Command is the base of the long-running and one-shot commands
type Command struct {
	ctx               context.Context
	errs              []error
	hostname          string
	name              string
	serviceLogs       chan common.ServiceLog
	shutdownOnce      sync.Once
	shutdownProcesses map[string]func() error
	mutex             sync.Mutex

	*cobra.Command
}

// AddShutdownProcess registers process to run on Shutdown under id
func (cd *Command) AddShutdownProcess(id string, process func() error) {
	cd.mutex.Lock()
	defer cd.mutex.Unlock()
	if _, ok := cd.shutdownProcesses[id]; ok {
		cd.serviceLogs <- common.ServiceLogf(common.LogLevelWarn, "process[%s] was overwritten", id)
	}
	cd.shutdownProcesses[id] = process
}

// Context is cancelled on SIGINT or SIGTERM
func (cd *Command) Context() context.Context {
	if cd.ctx == nil {
		return context.Background()
	}
	return cd.ctx
}

func (cd *Command) Error() error {
	cd.mutex.Lock()
	defer cd.mutex.Unlock()
	return errors.Join(cd.errs...)
}

func (cd *Command) Get() *cobra.Command {
	return cd.Command
}

// GetFullname returns the dotted id of the command, used as the
// application name on database and queue connections
func (cd *Command) GetFullname() string {
	return strings.ToLower("madrasah." + cd.name)
}

func (cd *Command) GetHostname() string {
	return cd.hostname
}

func (cd *Command) GetServiceLogs() chan common.ServiceLog {
	return cd.serviceLogs
}

// Shutdown runs every registered process concurrently once; failures are
// collected into Error
func (cd *Command) Shutdown() {
	cd.shutdownOnce.Do(func() {
		cd.mutex.Lock()
		processes := make(map[string]func() error, len(cd.shutdownProcesses))
		for id, process := range cd.shutdownProcesses {
			processes[id] = process
		}
		cd.mutex.Unlock()
		if len(processes) == 0 {
			return
		}
		cd.serviceLogs <- common.ServiceLogf(common.LogLevelInfo, "triggering shutdownProcesses (%v registered)", len(processes))
		var waiter sync.WaitGroup
		for id, process := range processes {
			waiter.Add(1)
			go func(processId string, process func() error) {
				defer waiter.Done()
				if err := process(); err != nil {
					cd.serviceLogs <- common.ServiceLogf(common.LogLevelError, "shutdownProcess[%s] failed: %s", processId, err)
					cd.mutex.Lock()
					cd.errs = append(cd.errs, err)
					cd.mutex.Unlock()
					return
				}
				cd.serviceLogs <- common.ServiceLogf(common.LogLevelDebug, "shutdownProcess[%s] succeeded", processId)
			}(id, process)
		}
		waiter.Wait()
	})
}
