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

package ant

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AntPlusProject/go-ant/internal/frame"
	"github.com/AntPlusProject/go-ant/internal/syncutil"
	"github.com/rs/zerolog"
)

// pump owns the background read loop of one transceiver session. It
// continuously drains the transport, reassembles frames across arbitrary
// chunk boundaries, and delivers them to a bounded FIFO channel. Writes go
// straight to the transport under a write lock; read and write directions
// are independent on every supported transport.
type pump struct {
	transport   Transport
	log         zerolog.Logger
	frames      chan frame.Frame
	stop        chan struct{}
	done        chan struct{}
	writeMu     syncutil.Mutex
	stopOnce    sync.Once
	readTimeout time.Duration
	decodeErrs  atomic.Uint64
	stopped     atomic.Bool
}

// newPump starts the read worker. The transport must already be open.
func newPump(t Transport, log zerolog.Logger, readTimeout time.Duration, queueSize int) *pump {
	p := &pump{
		transport:   t,
		log:         log,
		frames:      make(chan frame.Frame, queueSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		readTimeout: readTimeout,
	}
	go p.run()
	return p
}

// run is the worker loop: read a chunk, append to the accumulation buffer,
// decode every complete frame off the front, push each downstream.
func (p *pump) run() {
	defer close(p.done)

	buf := make([]byte, 0, 512)
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		chunk, err := p.transport.Read(p.readTimeout)
		if err != nil {
			if errors.Is(err, ErrTransportTimeout) {
				// Quiet bus; just poll again.
				continue
			}
			if IsFatal(err) {
				p.log.Debug().Err(err).Msg("pump: transport gone, stopping reads")
				return
			}
			p.log.Debug().Err(err).Msg("pump: read error")
			time.Sleep(p.readTimeout)
			continue
		}
		if len(chunk) == 0 {
			continue
		}

		buf = append(buf, chunk...)
		buf = p.drain(buf)
	}
}

// drain decodes frames from the front of buf until more data is needed,
// returning the unconsumed remainder.
func (p *pump) drain(buf []byte) []byte {
	for {
		fr, n, err := frame.Decode(buf)
		buf = append(buf[:0], buf[n:]...)
		if err != nil {
			if errors.Is(err, frame.ErrNeedMoreData) {
				return buf
			}
			// Corrupt bytes are expected noise on a busy RF link; the
			// framing is designed to resync. Count, log, keep scanning.
			p.decodeErrs.Add(1)
			p.log.Debug().Err(err).Msg("pump: dropped corrupt bytes")
			continue
		}

		select {
		case p.frames <- fr:
		case <-p.stop:
			return buf
		}
	}
}

// send encodes and writes one frame. Safe to call concurrently with the
// worker's reads and with other senders.
func (p *pump) send(id byte, payload []byte) error {
	if len(payload) > frame.MaxPayload {
		return ErrInvalidParameter
	}
	if p.stopped.Load() {
		return NewTransportError("send", string(p.transport.Type()), ErrTransportClosed, ErrorTypePermanent)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.transport.Write(frame.Encode(id, payload)); err != nil {
		return err
	}
	return nil
}

// Stop signals the worker and joins it with a bounded wait. After Stop
// returns no further frames are pushed to the queue.
func (p *pump) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.stop)

		// The worker checks the stop channel at least once per read
		// timeout, so a couple of intervals is ample.
		join := time.NewTimer(4*p.readTimeout + 100*time.Millisecond)
		defer join.Stop()
		select {
		case <-p.done:
		case <-join.C:
			err = NewTransportError("stop", string(p.transport.Type()),
				errors.New("read worker did not exit"), ErrorTypePermanent)
		}
	})
	return err
}

// DecodeErrors reports how many corrupt byte runs the worker has discarded.
func (p *pump) DecodeErrors() uint64 {
	return p.decodeErrs.Load()
}
