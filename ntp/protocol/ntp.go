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
Package protocol implements ntp packet and basic functions to work with.
It provides quick and transparent translation between 48 bytes and
simply accessible struct in the most efficient way.
*/
package protocol

import (
	"time"
)

// SecondsToUnix is the difference between NTP (1900-01-01) and Unix epoch in seconds
const SecondsToUnix = int64(2208988800)

// NanosecondsToUnix is the difference between NTP and Unix epoch in NS
const NanosecondsToUnix = SecondsToUnix * int64(time.Second)

// Time is converting Unix time to sec and frac NTP format
func Time(t time.Time) (seconds uint32, fracions uint32) {
	nsec := t.UnixNano() + NanosecondsToUnix
	sec := nsec / time.Second.Nanoseconds()
	return uint32(sec), uint32((nsec - sec*time.Second.Nanoseconds()) << 32 / time.Second.Nanoseconds())
}

// Unix is converting NTP seconds and fractions into Unix time
func Unix(seconds, fractions uint32) time.Time {
	secs := int64(seconds) - SecondsToUnix
	nanos := (int64(fractions) * time.Second.Nanoseconds()) >> 32 // convert fractional to nanos
	return time.Unix(secs, nanos)
}

// UnixSeconds converts the seconds part of an NTP timestamp into UTC time, whole seconds only
func UnixSeconds(seconds uint32) time.Time {
	return time.Unix(int64(seconds)-SecondsToUnix, 0).UTC()
}

// NTPSeconds is the inverse of UnixSeconds. Sub-second part of t is dropped.
func NTPSeconds(t time.Time) uint32 {
	return uint32(t.Unix() + SecondsToUnix)
}

// TransmitTime returns server transmit timestamp truncated to whole seconds
func (p *Packet) TransmitTime() time.Time {
	return UnixSeconds(p.TxTimeSec)
}
