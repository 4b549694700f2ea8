// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpc

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/windowsperf/wperf-etl/tracefmt"
)

func TestClassify(t *testing.T) {
	for provider, want := range map[string]string{
		"WindowsPerf Driver":         DriverKey,
		"WindowsPerf App":            AppKey,
		"Arm-WindowsPerf Driver-ETW": DriverKey,
		"My WindowsPerf App v3":      AppKey,
		"Microsoft-Windows-Kernel":   "",
		"WindowsPerf":                "",
		"windowsperf driver":         "",
		"":                           "",
	} {
		key, ok := Classify(provider)
		if key != want || ok != (want != "") {
			t.Errorf("Classify(%q) = %q, %v; want %q, %v", provider, key, ok, want, want != "")
		}
	}
}

func TestDecodeDriver(t *testing.T) {
	r := driverRec(1000, 3, 0x1b, 2, 98765)
	r.Provider = "Arm-WindowsPerf Driver"
	got, err := decode(r, DriverKey)
	if err != nil {
		t.Fatal(err)
	}
	want := Event{
		Key:      DriverKey,
		Provider: "Arm-WindowsPerf Driver",
		Core:     3,
		Counter:  "0000001B",
		Index:    0x1b,
		GPC:      2,
		Time:     tracefmt.Ticks(1000).Time(),
		Value:    98765,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeApp(t *testing.T) {
	got, err := decode(appRec(5, 1, "inst_spec", 8, "loop 2", 42), AppKey)
	if err != nil {
		t.Fatal(err)
	}
	want := Event{
		Key:      AppKey,
		Provider: AppKey,
		Core:     1,
		Counter:  "inst_spec",
		Index:    8,
		Note:     "loop 2",
		Time:     tracefmt.Ticks(5).Time(),
		Value:    42,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeExtraFields(t *testing.T) {
	r := driverRec(1, 0, 1, 0, 7)
	r.Payload = append(r.Payload, tracefmt.String("extra"))
	if _, err := decode(r, DriverKey); err != nil {
		t.Errorf("trailing payload values: %v", err)
	}
}

func TestDecodeSignedFields(t *testing.T) {
	// Providers log unsigned quantities through signed fields.
	ev, err := decode(driverRec(1, 0, -1, 0, -2), DriverKey)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Index != 0xFFFFFFFF || ev.Counter != "FFFFFFFF" {
		t.Errorf("got index %#x counter %s, want 0xffffffff FFFFFFFF", ev.Index, ev.Counter)
	}
	if ev.Value != 1<<64-2 {
		t.Errorf("got value %d, want %d", ev.Value, uint64(1<<64-2))
	}
}

func TestDecodeErrors(t *testing.T) {
	check := func(r *tracefmt.Record, key, want string) {
		t.Helper()
		_, err := decode(r, key)
		var de *tracefmt.DecodeError
		if !errors.As(err, &de) {
			t.Errorf("got %v, want *tracefmt.DecodeError", err)
			return
		}
		if !strings.HasSuffix(err.Error(), want) {
			t.Errorf("got error %q, want suffix %q", err, want)
		}
	}

	short := driverRec(1, 0, 1, 0, 7)
	short.Payload = short.Payload[:3]
	check(short, DriverKey, "WindowsPerf Driver: payload has 3 fields, want 4")

	badCore := driverRec(1, 0, 1, 0, 7)
	badCore.Payload[0] = tracefmt.String("zero")
	check(badCore, DriverKey, "WindowsPerf Driver: core is string, want integer")

	badGPC := driverRec(1, 0, 1, 0, 7)
	badGPC.Payload[2] = tracefmt.String("2")
	check(badGPC, DriverKey, "WindowsPerf Driver: gpc index is string, want integer")

	noteless := appRec(1, 0, "x", 1, "", 1)
	noteless.Payload[3] = tracefmt.Int(9)
	check(noteless, AppKey, "WindowsPerf App: note is int, want string")

	nameless := appRec(1, 0, "x", 1, "", 1)
	nameless.Payload[1] = tracefmt.Int(9)
	check(nameless, AppKey, "WindowsPerf App: event name is int, want string")

	check(otherRec(AppKey, 1), AppKey, "WindowsPerf App: payload has 0 fields, want 5")

	// Wide ids must not alias a 32-bit counter.
	wideEvent := driverRec(1, 0, 1, 0, 7)
	wideEvent.Payload[1] = tracefmt.Uint(0x100000011)
	check(wideEvent, DriverKey, "WindowsPerf Driver: event 4294967313 does not fit in 32 bits")

	wideGPC := driverRec(1, 0, 1, 0, 7)
	wideGPC.Payload[2] = tracefmt.Int(1 << 40)
	check(wideGPC, DriverKey, "WindowsPerf Driver: gpc index 1099511627776 does not fit in 32 bits")

	wideIndex := appRec(1, 0, "x", 1, "", 1)
	wideIndex.Payload[2] = tracefmt.Int(-1 << 40)
	check(wideIndex, AppKey, "WindowsPerf App: event index -1099511627776 does not fit in 32 bits")
}
