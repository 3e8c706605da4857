// Copyright 2026 CleverData
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	serviceName = "HSDSAgent"
	stopTimeout = 45 * time.Second
)

// program implements service.Interface around RunAgent.
type program struct {
	logger service.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(stopTimeout):
		if p.logger != nil {
			p.logger.Warning("agent did not stop in time")
		}
	}
	return nil
}

func (p *program) run(ctx context.Context) {
	defer close(p.done)
	if err := RunAgent(ctx, p.logger); err != nil && p.logger != nil {
		p.logger.Error(err)
	}
}

func getService(configPath string) (service.Service, error) {
	args := []string{"run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: "HSDS Upload Agent",
		Description: "Watches configured folders and uploads .strc files to HSDS.",
		Arguments:   args,
	}

	prg := &program{}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		return nil, err
	}
	if l, err := s.Logger(nil); err == nil {
		prg.logger = l
	}
	return s, nil
}

// controlService returns a handle for managing the installed service.
func controlService() (service.Service, error) {
	return service.New(&program{}, &service.Config{Name: serviceName})
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the HSDS Agent as a system service",
	Run: func(cmd *cobra.Command, args []string) {
		// Pass the current config file to the service
		configPath := viper.ConfigFileUsed()
		if configPath == "" {
			fmt.Println("Error: No config file found. Please run 'hsagent watch add' first.")
			return
		}

		s, err := getService(configPath)
		if err != nil {
			fmt.Printf("Setup failed: %v\n", err)
			return
		}

		status, err := s.Status()
		if err == nil {
			fmt.Println("HSDS Agent is already installed.")
			if status == service.StatusRunning {
				fmt.Println("Service is currently RUNNING.")
			} else {
				fmt.Println("Service is currently STOPPED.")
			}
			fmt.Println("Use 'hsagent restart' to apply config changes, or 'hsagent uninstall' to remove it.")
			return
		}

		fmt.Println("Installing HSDS Agent Service...")
		if err := s.Install(); err != nil {
			fmt.Printf("Failed to install: %v\n", err)
			fmt.Println("Hint: Ensure you are running as Administrator or root.")
			return
		}
		fmt.Println("Service installed successfully.")

		fmt.Println("Starting service...")
		if err := s.Start(); err != nil {
			fmt.Printf("Failed to start: %v\n", err)
			return
		}
		fmt.Println("Service started.")
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the HSDS Agent Service",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := controlService()
		if err != nil {
			fmt.Println(err)
			return
		}

		// It might not be running.
		_ = s.Stop()

		if err := s.Uninstall(); err != nil {
			fmt.Printf("Failed to uninstall: %v\n", err)
			return
		}
		fmt.Println("Service uninstalled.")
	},
}

// serviceAction builds the start/stop/restart commands, which differ only in
// the control call.
func serviceAction(use, short, verb, done string, action func(service.Service) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			s, err := controlService()
			if err != nil {
				fmt.Println(err)
				return
			}

			fmt.Printf("%s HSDS Agent Service...\n", verb)
			if err := action(s); err != nil {
				fmt.Printf("Failed to %s: %v\n", use, err)
				return
			}
			fmt.Printf("Service %s.\n", done)
		},
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the HSDS Agent Service",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := controlService()
		if err != nil {
			fmt.Println(err)
			return
		}

		status, err := s.Status()
		if err != nil {
			fmt.Printf("Could not get status: %v\n", err)
			return
		}

		fmt.Printf("HSDS Agent Service Status: %s\n", statusText(status))
	},
}

func statusText(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Running"
	case service.StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(serviceAction("start", "Start the HSDS Agent Service", "Starting", "started", service.Service.Start))
	rootCmd.AddCommand(serviceAction("stop", "Stop the HSDS Agent Service", "Stopping", "stopped", service.Service.Stop))
	rootCmd.AddCommand(serviceAction("restart", "Restart the HSDS Agent Service", "Restarting", "restarted", service.Service.Restart))
	rootCmd.AddCommand(statusCmd)
}
