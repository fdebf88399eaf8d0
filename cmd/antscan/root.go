// Copyright 2026 The AntPlus Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	ant "github.com/AntPlusProject/go-ant"
	"github.com/AntPlusProject/go-ant/connect"
	"github.com/AntPlusProject/go-ant/transport/usb"
)

var log zerolog.Logger

var rootCmd = &cobra.Command{
	Use:   "antscan",
	Short: "Discover and read ANT+ devices",
	Long: `antscan talks to an ANT USB stick and either scans for nearby
ANT+ transmitters or streams data from one of them as JSON lines.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initLogging()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("transceiver", "", "USB stick model (antusb-m, antusb2, antusb1); auto-detect if empty")
	pf.String("serial-port", "", "use a serial port instead of native USB")
	pf.Int("retries", 2, "connection retry attempts")

	viper.SetEnvPrefix("ANT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(pf)

	rootCmd.AddCommand(scanCmd, readCmd)
}

func initLogging() error {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	// Diagnostics go to stderr so stdout stays a clean JSON stream.
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// stickIdentities maps the --transceiver flag to USB identities.
var stickIdentities = map[string]usb.Identity{
	"antusb-m": usb.ANTUSBm,
	"antusb2":  usb.ANTUSB2,
	"antusb1":  usb.ANTUSB1,
}

// connectNode builds the session from the persistent flags.
func connectNode() (*ant.Node, error) {
	opts := []connect.Option{
		connect.WithRetries(viper.GetInt("retries")),
		connect.WithNodeOptions(ant.WithLogger(log)),
	}

	if port := viper.GetString("serial-port"); port != "" {
		opts = append(opts, connect.WithSerialPort(port, 0))
	} else if model := viper.GetString("transceiver"); model != "" {
		id, ok := stickIdentities[strings.ToLower(model)]
		if !ok {
			return nil, fmt.Errorf("unknown transceiver model %q", model)
		}
		opts = append(opts, connect.WithUSBIdentity(id))
	}

	log.Info().Msg("connecting to transceiver")
	return connect.Node(opts...)
}
