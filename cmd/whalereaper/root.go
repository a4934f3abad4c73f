// Copyright 2024 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Name of the default configuration file in the user's home directory,
// without the ".yaml" suffix.
const configName = ".whalereaper"

// envPrefix prefixes all environment variables overriding flags, such as
// WHALEREAPER_ENGINE.
const envPrefix = "WHALEREAPER"

// cli is the state shared between the root command and its subcommands.
type cli struct {
	v       *viper.Viper
	log     zerolog.Logger
	logfile *lumberjack.Logger // optional rotating JSON log file.
}

// newRootCmd returns the whalereaper root command with all its subcommands.
func newRootCmd() *cobra.Command {
	c := &cli{
		v:   viper.New(),
		log: zerolog.Nop(),
	}
	rootCmd := &cobra.Command{
		Use:   "whalereaper",
		Short: "whalereaper sweeps labelled resources from container engines",
		Long: `whalereaper tears down the containers, networks, and volumes left behind by
crashed (test) sessions, identifying them by their labels.

Flags can also be set using WHALEREAPER_* environment variables, as well as a
YAML configuration file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.initConfig(); err != nil {
				return err
			}
			c.initLogging(cmd)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logfile != nil {
				_ = c.logfile.Close()
			}
		},
	}
	pflags := rootCmd.PersistentFlags()
	pflags.String("config", "", "config file (default $HOME/"+configName+".yaml)")
	pflags.Bool("debug", false, "enable debug logging")
	pflags.String("log-file", "", "additionally write JSON logs to this (rotated) file")
	_ = c.v.BindPFlags(pflags)

	rootCmd.AddCommand(
		newSweepCmd(c),
		newVersionCmd(),
	)
	return rootCmd
}

// initConfig reads the configuration file, if any, and sets up the
// environment variable overrides. An explicitly specified configuration file
// must exist, whereas the default configuration file is optional.
func (c *cli) initConfig() error {
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if cfgfile := c.v.GetString("config"); cfgfile != "" {
		c.v.SetConfigFile(cfgfile)
		if err := c.v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "cannot read config file %s", cfgfile)
		}
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	c.v.AddConfigPath(home)
	c.v.SetConfigName(configName)
	c.v.SetConfigType("yaml")
	if err := c.v.ReadInConfig(); err != nil {
		var notfound viper.ConfigFileNotFoundError
		if !errors.As(err, &notfound) {
			return errors.Wrapf(err, "cannot read config file %s",
				filepath.Join(home, configName+".yaml"))
		}
	}
	return nil
}

// initLogging sets up console logging to stderr and optionally JSON logging
// to a rotated log file.
func (c *cli) initLogging(cmd *cobra.Command) {
	level := zerolog.InfoLevel
	if c.v.GetBool("debug") {
		level = zerolog.DebugLevel
	}
	var out zerolog.LevelWriter = zerolog.MultiLevelWriter(zerolog.ConsoleWriter{
		Out:        cmd.ErrOrStderr(),
		TimeFormat: time.RFC3339,
	})
	if logfile := c.v.GetString("log-file"); logfile != "" {
		c.logfile = &lumberjack.Logger{
			Filename:   logfile,
			MaxSize:    50, // MB
			MaxAge:     7,  // days
			MaxBackups: 3,
		}
		out = zerolog.MultiLevelWriter(out, c.logfile)
	}
	c.log = zerolog.New(out).Level(level).With().Timestamp().Logger()
}
