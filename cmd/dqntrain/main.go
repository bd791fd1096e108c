// Command dqntrain trains a deep Q-learning agent with prioritized
// experience replay on a random walk environment.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/godrl/dqn/config"
	"github.com/godrl/dqn/deepq"
	"github.com/godrl/dqn/environment/randomwalk"
	"github.com/godrl/dqn/trainer"
)

var (
	configFile string
	numStates  int
	stepLimit  int
	debug      bool
)

func main() {
	cmd := &cobra.Command{
		Use:   "dqntrain",
		Short: "Train a deep Q-learning agent with prioritized replay",
		RunE:  run,

		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "",
		"configuration file (defaults are used when omitted)")
	cmd.Flags().IntVar(&numStates, "states", 19,
		"number of interior states in the random walk")
	cmd.Flags().IntVar(&stepLimit, "step-limit", 1000,
		"episode step cutoff for the random walk")
	cmd.Flags().BoolVar(&debug, "debug", false,
		"enable debug logging")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := newLogger(debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	conf, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("could not load configuration: %v", err)
	}

	conf, err = conf.Sanitized(log)
	if err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	env, err := randomwalk.New(numStates, stepLimit)
	if err != nil {
		return fmt.Errorf("could not create environment: %v", err)
	}

	agent, err := deepq.New(env, conf, conf.Seed)
	if err != nil {
		return fmt.Errorf("could not create agent: %v", err)
	}

	t, err := trainer.New(env, agent, conf, log)
	if err != nil {
		return fmt.Errorf("could not create trainer: %v", err)
	}
	defer t.Close()

	if _, err := t.Run(); err != nil {
		return fmt.Errorf("training failed: %v", err)
	}
	return nil
}

// loadConfig returns the default configuration overridden by the
// values in path, or the defaults when path is empty.
func loadConfig(path string) (config.Config, error) {
	conf := config.Default()
	if path == "" {
		return conf, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return conf, err
	}
	if err := v.Unmarshal(&conf); err != nil {
		return conf, err
	}
	return conf, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
