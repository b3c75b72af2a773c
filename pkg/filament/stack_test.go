// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ============================================================
// Test Helpers
// ============================================================

// connectStacks wires a host and a device stack back to back: every frame a
// stack sends is deframed and routed straight into its peer.
func connectStacks(t *testing.T) (host, device *Stack) {
	t.Helper()

	deliver := func(peer func() *Stack) SendFunc {
		dec := NewDecoder()
		return func(frame []byte) error {
			for _, b := range frame {
				payload, err := dec.DecodeByte(b)
				if err != nil {
					t.Fatalf("frame decode failed in test pipe: %v", err)
				}
				if payload != nil {
					_ = peer().HandleFrame(payload)
				}
			}
			return nil
		}
	}

	host = NewStack(NetworkID, NodeHost, deliver(func() *Stack { return device }))
	device = NewStack(NetworkID, NodeDevice, deliver(func() *Stack { return host }))
	return host, device
}

func dropFrames([]byte) error { return nil }

func infoHandler(info DeviceInfo) Handler {
	return func(src Address, payload cbor.RawMessage) (cbor.RawMessage, error) {
		return cbor.Marshal(&info)
	}
}

// ============================================================
// Publish / Routing Tests
// ============================================================

func TestPublish_RoutesToHandler(t *testing.T) {
	host, device := connectStacks(t)

	var got []ButtonEvent
	host.Handle(PortButton, func(src Address, payload cbor.RawMessage) (cbor.RawMessage, error) {
		var e ButtonEvent
		if err := cbor.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		got = append(got, e)
		return nil, nil
	})

	if err := device.Publish(HostAddr(PortButton), ButtonSingleClick); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := device.Publish(HostAddr(PortButton), ButtonHold); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(got) != 2 || got[0] != ButtonSingleClick || got[1] != ButtonHold {
		t.Errorf("expected [SINGLE_CLICK HOLD], got %v", got)
	}
}

func TestHandleFrame_NoRoute(t *testing.T) {
	host, device := connectStacks(t)
	_ = host // no handlers registered

	err := device.Publish(HostAddr(PortButton), ButtonSingleClick)
	if err != nil {
		t.Fatalf("Publish itself must not fail on NoRoute: %v", err)
	}
	if n := host.Stats().NoRoute.Load(); n != 1 {
		t.Errorf("expected NoRoute counter 1, got %d", n)
	}
}

func TestHandleFrame_WrongNode(t *testing.T) {
	host, device := connectStacks(t)

	// Addressed to a node that is not the host
	if err := device.Publish(Addr(NetworkID, 7, PortButton), ButtonSingleClick); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if n := host.Stats().NoRoute.Load(); n != 1 {
		t.Errorf("expected NoRoute counter 1, got %d", n)
	}
}

func TestHandleFrame_ErrorReturnsNoRoute(t *testing.T) {
	s := NewStack(NetworkID, NodeHost, dropFrames)

	env := &Envelope{Kind: KindPublish, Src: DeviceAddr(PortButton), Dst: HostAddr(PortButton)}
	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := s.HandleFrame(data); !errors.Is(err, ErrNoRoute) {
		t.Errorf("expected ErrNoRoute, got %v", err)
	}
}

// ============================================================
// Request / Response Tests
// ============================================================

func TestRequest_Response(t *testing.T) {
	host, device := connectStacks(t)
	device.Handle(PortDeviceInfo, infoHandler(DeviceInfo{HW: "B-G431B-ESC1", SW: "0.1.0"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var info DeviceInfo
	if err := host.Request(ctx, DeviceAddr(PortDeviceInfo), &InfoRequest{}, &info); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if info.HW != "B-G431B-ESC1" || info.SW != "0.1.0" {
		t.Errorf("unexpected device info: %+v", info)
	}
}

func TestRequest_Timeout(t *testing.T) {
	host := NewStack(NetworkID, NodeHost, dropFrames)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := host.Request(ctx, DeviceAddr(PortDeviceInfo), &InfoRequest{}, nil)
	if !errors.Is(err, ErrTimedOut) {
		t.Errorf("expected ErrTimedOut, got %v", err)
	}
	if host.pending != nil {
		t.Error("pending slot not cleared after timeout")
	}
}

func TestRequest_BusyLeavesPendingUntouched(t *testing.T) {
	host := NewStack(NetworkID, NodeHost, dropFrames)

	firstDone := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		firstDone <- host.Request(ctx, DeviceAddr(PortDeviceInfo), &InfoRequest{}, nil)
	}()

	// Wait for the first request to occupy the slot
	deadline := time.Now().Add(time.Second)
	for {
		host.mu.Lock()
		occupied := host.pending != nil
		host.mu.Unlock()
		if occupied {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first request never occupied the pending slot")
		}
		time.Sleep(time.Millisecond)
	}

	host.mu.Lock()
	seqBefore := host.pending.seq
	host.mu.Unlock()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if err := host.Request(ctx2, DeviceAddr(PortDeviceInfo), &InfoRequest{}, nil); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	host.mu.Lock()
	if host.pending == nil || host.pending.seq != seqBefore {
		t.Error("rejected request altered the pending call")
	}
	host.mu.Unlock()

	cancel()
	if err := <-firstDone; !errors.Is(err, ErrTimedOut) {
		t.Errorf("first request: expected ErrTimedOut, got %v", err)
	}
}

func TestHandleFrame_StaleResponse(t *testing.T) {
	host := NewStack(NetworkID, NodeHost, dropFrames)

	// A response arriving with no pending call must be discarded and counted
	payload, _ := cbor.Marshal(&DeviceInfo{HW: "x", SW: "y"})
	env := &Envelope{
		Kind:    KindResponse,
		Seq:     42,
		Src:     DeviceAddr(PortDeviceInfo),
		Dst:     HostAddr(PortDeviceInfo),
		Payload: payload,
	}
	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if err := host.HandleFrame(data); err == nil {
		t.Error("expected stale response error")
	}
	if n := host.Stats().StaleResponses.Load(); n != 1 {
		t.Errorf("expected StaleResponses 1, got %d", n)
	}
}

// ============================================================
// Liveness Gate Tests
// ============================================================

func TestGate_OpensOnlyOnRoutedRequest(t *testing.T) {
	host, device := connectStacks(t)
	device.Handle(PortDeviceInfo, infoHandler(DeviceInfo{HW: "hw", SW: "sw"}))
	host.Handle(PortButton, func(Address, cbor.RawMessage) (cbor.RawMessage, error) { return nil, nil })

	if device.FirstRequestRouted() {
		t.Fatal("gate open before any traffic")
	}

	// An inbound publish must not open the gate, nor an unroutable request
	if err := device.Publish(HostAddr(PortButton), ButtonSingleClick); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if device.FirstRequestRouted() {
		t.Error("gate opened by outbound traffic")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var info DeviceInfo
	if err := host.Request(ctx, DeviceAddr(PortDeviceInfo), &InfoRequest{}, &info); err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if !device.FirstRequestRouted() {
		t.Error("gate closed after a successfully routed request")
	}
	select {
	case <-device.FirstRequestC():
	default:
		t.Error("FirstRequestC not closed after routed request")
	}
}

func TestGate_NotOpenedByUnroutedRequest(t *testing.T) {
	device := NewStack(NetworkID, NodeDevice, dropFrames)

	payload, _ := cbor.Marshal(&InfoRequest{})
	env := &Envelope{
		Kind:    KindRequest,
		Seq:     1,
		Src:     HostAddr(PortDeviceInfo),
		Dst:     DeviceAddr(0x7F), // unregistered port
		Payload: payload,
	}
	data, _ := env.Encode()

	if err := device.HandleFrame(data); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
	if device.FirstRequestRouted() {
		t.Error("gate opened by a request that was received and dropped")
	}
}
