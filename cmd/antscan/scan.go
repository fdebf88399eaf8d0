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
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	ant "github.com/AntPlusProject/go-ant"
)

// clientConfig is the JSON shape shared by scan output and read input, so
// the two subcommands pipe together.
type clientConfig struct {
	ID   uint16 `json:"id"`
	Type byte   `json:"type"`
	Txn  byte   `json:"txn"`
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby ANT+ transmitters",
	Long: `scan opens continuous scan mode and prints each transmitter found as
one JSON object on stdout. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().Uint8("device-type", 0, "only report this device type (0 = all)")
	_ = viper.BindPFlag("device-type", scanCmd.Flags().Lookup("device-type"))
}

func runScan(_ *cobra.Command, _ []string) error {
	node, err := connectNode()
	if err != nil {
		return err
	}
	defer func() {
		if err := node.Stop(); err != nil {
			log.Warn().Err(err).Msg("session teardown incomplete")
		}
	}()

	out := json.NewEncoder(os.Stdout)
	scanner := ant.NewScanner(node)
	scanner.OnFound(func(client ant.ClientID, _ []byte) {
		log.Info().Stringer("client", client).Msg("transmitter found")
		_ = out.Encode(clientConfig{
			ID:   client.DeviceID,
			Type: client.DeviceType,
			Txn:  client.TransmissionType,
		})
	})

	deviceType := byte(viper.GetUint("device-type"))
	if err := scanner.Start(deviceType); err != nil {
		return err
	}
	log.Info().Msg("scanning; press Ctrl-C to exit")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info().Int("devices", len(scanner.Devices())).Msg("stopping scanner")
	if err := scanner.Stop(); err != nil {
		log.Warn().Err(err).Msg("scanner teardown incomplete")
	}
	return nil
}
