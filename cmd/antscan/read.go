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
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	ant "github.com/AntPlusProject/go-ant"
	"github.com/AntPlusProject/go-ant/profiles/heartrate"
)

var readCmd = &cobra.Command{
	Use:   "read [client-json]",
	Short: "Stream data from one ANT+ transmitter",
	Long: `read pairs with the transmitter described by the client JSON
({"id":12345,"type":120,"txn":1}, as printed by scan) and streams its
measurements as JSON lines on stdout. Pass "-" or no argument to read the
client JSON from stdin. Runs until interrupted.

Only the heart rate profile (type 120) is supported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRead,
}

func runRead(_ *cobra.Command, args []string) error {
	client, err := parseClientArg(args)
	if err != nil {
		return err
	}
	if client.Type != heartrate.DeviceType {
		return fmt.Errorf("unsupported device type %d", client.Type)
	}

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
	datum := time.Now().UnixNano()

	log.Info().
		Uint16("id", client.ID).
		Uint8("type", client.Type).
		Uint8("txn", client.Txn).
		Msg("pairing with transmitter")

	monitor, err := heartrate.Open(node, ant.ClientID{
		DeviceID:         client.ID,
		DeviceType:       client.Type,
		TransmissionType: client.Txn,
	}, func(d heartrate.Data) {
		_ = out.Encode(heartrate.NewRecord(d, datum, time.Now().UnixNano()-datum))
	})
	if err != nil {
		return err
	}

	log.Info().Msg("streaming; press Ctrl-C to exit")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if err := monitor.Close(); err != nil {
		log.Warn().Err(err).Msg("channel teardown incomplete")
	}
	return nil
}

// parseClientArg reads the client description from the argument or stdin.
func parseClientArg(args []string) (clientConfig, error) {
	var raw []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return clientConfig{}, fmt.Errorf("read client config from stdin: %w", err)
		}
	} else {
		raw = []byte(args[0])
	}

	var client clientConfig
	if err := json.Unmarshal(raw, &client); err != nil {
		return clientConfig{}, fmt.Errorf("parse client config: %w", err)
	}
	return client, nil
}
