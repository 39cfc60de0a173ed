/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package probetest provides a fake NTP server to test checks against.
*/
package probetest

import (
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/uptimecheck/ntpprobe/ntp/protocol"
)

// Server answers NTP client requests on the loopback interface.
// Set the fields before calling Start.
type Server struct {
	// Stratum to put into replies
	Stratum uint8
	// TxTimeSec overrides transmit timestamp seconds, zero means current time
	TxTimeSec uint32
	// ReplyLength cuts the reply to this many bytes, zero means full packet
	ReplyLength int
	// Delay before sending each reply
	Delay time.Duration
	// Silent server reads requests but never replies
	Silent bool

	conn *net.UDPConn
	wg   sync.WaitGroup

	mu          sync.Mutex
	requests    int
	lastRequest []byte
}

// Start listens on a random port of 127.0.0.1 and serves requests until Close
func (s *Server) Start() error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		return err
	}
	s.conn = conn
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve()
	}()
	log.Debugf("fake ntp server listening on %s", conn.LocalAddr())
	return nil
}

// Host returns IP the server listens on
func (s *Server) Host() string {
	return s.conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// Port returns port the server listens on
func (s *Server) Port() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// Requests returns number of valid requests received
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// LastRequest returns raw bytes of the last valid request
func (s *Server) LastRequest() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.lastRequest...)
}

// Close stops the server
func (s *Server) Close() error {
	err := s.conn.Close()
	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	buf := make([]byte, 1024)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Errorf("fake ntp server: failed to read packet: %v", err)
			continue
		}
		received := time.Now()
		request, err := protocol.BytesToPacket(buf[:n])
		if err != nil {
			log.Debugf("fake ntp server: failed to parse ntp packet: %v", err)
			continue
		}
		if !request.ValidSettingsFormat() {
			log.Debugf("fake ntp server: invalid query, discarding: %+v", request)
			continue
		}
		s.mu.Lock()
		s.requests++
		s.lastRequest = append(s.lastRequest[:0], buf[:n]...)
		s.mu.Unlock()

		if s.Silent {
			continue
		}
		if s.Delay > 0 {
			time.Sleep(s.Delay)
		}
		if err := s.reply(addr, request, received); err != nil {
			log.Debugf("fake ntp server: failed to respond to the request: %v", err)
		}
	}
}

// reply is built the same way a real responder does it: origin time is the client transmit time
func (s *Server) reply(addr *net.UDPAddr, request *protocol.Packet, received time.Time) error {
	rxSec, rxFrac := protocol.Time(received)
	txSec, txFrac := protocol.Time(time.Now())
	if s.TxTimeSec != 0 {
		txSec = s.TxTimeSec
	}
	response := &protocol.Packet{
		Settings:     request.Version()<<3 | protocol.ModeServer,
		Stratum:      s.Stratum,
		Poll:         request.Poll,
		Precision:    -32,
		ReferenceID:  0x4c4f434c, // LOCL
		RefTimeSec:   rxSec,
		OrigTimeSec:  request.TxTimeSec,
		OrigTimeFrac: request.TxTimeFrac,
		RxTimeSec:    rxSec,
		RxTimeFrac:   rxFrac,
		TxTimeSec:    txSec,
		TxTimeFrac:   txFrac,
	}
	b, err := response.Bytes()
	if err != nil {
		return err
	}
	if s.ReplyLength > 0 && s.ReplyLength < len(b) {
		b = b[:s.ReplyLength]
	}
	_, err = s.conn.WriteToUDP(b, addr)
	return err
}
