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
Package probe implements the NTP health check of an uptime monitor.

A check sends a single 48 byte client request to the target over UDP,
waits for the first reply within the target timeout and turns it into
an up/down Result with round trip time, stratum and server time.
Scheduling, retries and alerting are left to the caller.
*/
package probe
