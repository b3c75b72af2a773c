// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Stack errors
var (
	// ErrBusy is returned when a request is issued while another is pending
	ErrBusy = errors.New("request already in flight")
	// ErrTimedOut is returned when a request's deadline expires
	ErrTimedOut = errors.New("request timed out")
	// ErrNoRoute marks a decoded message with no registered local handler
	ErrNoRoute = errors.New("no route")
)

// Handler processes a message routed to a local port. src is the sender's
// address, payload the raw CBOR message body. For a request port the returned
// bytes are sent back as the response payload; publish handlers return nil.
type Handler func(src Address, payload cbor.RawMessage) (cbor.RawMessage, error)

// SendFunc hands one encoded frame to the transport's down direction
type SendFunc func(frame []byte) error

type pendingCall struct {
	seq  uint16
	resp chan cbor.RawMessage
}

// Stack is one endpoint's addressed message stack. It owns the local routing
// table and the single pending-call slot; nothing else mutates either. The
// port→handler table is built once at startup via Handle and is read-only
// afterwards.
type Stack struct {
	local Address // port field unused
	send  SendFunc
	stats Stats

	mu       sync.Mutex
	handlers map[uint8]Handler
	pending  *pendingCall
	nextSeq  uint16

	gate     chan struct{}
	gateOnce sync.Once
}

// NewStack creates a message stack for the (network, node) endpoint.
// send is invoked with fully framed bytes ready for the transport.
func NewStack(network, node uint8, send SendFunc) *Stack {
	return &Stack{
		local:    Addr(network, node, 0),
		send:     send,
		handlers: make(map[uint8]Handler),
		gate:     make(chan struct{}),
	}
}

// Handle registers the handler for a local service port.
// Must be called before any traffic flows; registration is not concurrency-safe
// against HandleFrame by design, the endpoint catalog is fixed at startup.
func (s *Stack) Handle(port uint8, h Handler) {
	s.handlers[port] = h
}

// Stats returns the stack's counters
func (s *Stack) Stats() *Stats {
	return &s.stats
}

// FirstRequestC is closed once the first inbound request has been routed to a
// local handler. This is the liveness gate: the device suppresses periodic
// traffic until it fires, so an unattached host never accumulates NoRoute
// noise from undeliverable KeepAlives.
func (s *Stack) FirstRequestC() <-chan struct{} {
	return s.gate
}

// FirstRequestRouted reports whether the liveness gate has opened.
// The gate opens once and never closes for the life of the process.
func (s *Stack) FirstRequestRouted() bool {
	select {
	case <-s.gate:
		return true
	default:
		return false
	}
}

func (s *Stack) openGate() {
	s.gateOnce.Do(func() { close(s.gate) })
}

// Publish sends a fire-and-forget message to dst. It returns once the framed
// message has been handed to the transport; no delivery confirmation exists.
func (s *Stack) Publish(dst Address, msg interface{}) error {
	payload, err := cbor.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return s.sendEnvelope(&Envelope{
		Kind:    KindPublish,
		Src:     Addr(s.local.Network, s.local.Node, dst.Port),
		Dst:     dst,
		Payload: payload,
	})
}

// Request sends req to dst and decodes the matching response into resp.
// At most one request may be in flight per stack; a second concurrent call
// returns ErrBusy without touching the pending call. The context deadline is
// the only cancellation mechanism: on expiry Request returns ErrTimedOut and
// a response arriving later is discarded as stale.
func (s *Stack) Request(ctx context.Context, dst Address, req, resp interface{}) error {
	payload, err := cbor.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return ErrBusy
	}
	s.nextSeq++
	if s.nextSeq == 0 {
		s.nextSeq = 1
	}
	pc := &pendingCall{seq: s.nextSeq, resp: make(chan cbor.RawMessage, 1)}
	s.pending = pc
	s.mu.Unlock()

	err = s.sendEnvelope(&Envelope{
		Kind:    KindRequest,
		Seq:     pc.seq,
		Src:     Addr(s.local.Network, s.local.Node, dst.Port),
		Dst:     dst,
		Payload: payload,
	})
	if err != nil {
		s.clearPending(pc)
		return err
	}

	select {
	case <-ctx.Done():
		s.clearPending(pc)
		return ErrTimedOut
	case raw := <-pc.resp:
		if resp == nil {
			return nil
		}
		if err := cbor.Unmarshal(raw, resp); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

func (s *Stack) clearPending(pc *pendingCall) {
	s.mu.Lock()
	if s.pending == pc {
		s.pending = nil
	}
	s.mu.Unlock()
}

func (s *Stack) sendEnvelope(env *Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	frame, err := EncodeFrame(data)
	if err != nil {
		return err
	}
	if err := s.send(frame); err != nil {
		return err
	}
	s.stats.FramesOut.Add(1)
	return nil
}

// HandleFrame routes one deframed message payload. Routing failures (bad
// envelope, foreign destination, unregistered port) are counted and returned
// for logging but are never fatal: delivery is simply abandoned and the
// sender decides whether to retry.
func (s *Stack) HandleFrame(data []byte) error {
	s.stats.FramesIn.Add(1)

	env, err := DecodeEnvelope(data)
	if err != nil {
		s.stats.EnvelopeErrors.Add(1)
		return err
	}

	if env.Dst.Network != s.local.Network || env.Dst.Node != s.local.Node {
		s.stats.NoRoute.Add(1)
		return fmt.Errorf("%w: destination %s is not local node %d.%d",
			ErrNoRoute, env.Dst, s.local.Network, s.local.Node)
	}

	switch env.Kind {
	case KindPublish:
		h, ok := s.handlers[env.Dst.Port]
		if !ok {
			s.stats.NoRoute.Add(1)
			return fmt.Errorf("%w: no handler for %s", ErrNoRoute, FormatPort(env.Dst.Port))
		}
		if _, err := h(env.Src, env.Payload); err != nil {
			s.stats.HandlerErrors.Add(1)
			return fmt.Errorf("handler for %s: %w", FormatPort(env.Dst.Port), err)
		}
		return nil

	case KindRequest:
		h, ok := s.handlers[env.Dst.Port]
		if !ok {
			s.stats.NoRoute.Add(1)
			return fmt.Errorf("%w: no handler for %s", ErrNoRoute, FormatPort(env.Dst.Port))
		}
		reply, err := h(env.Src, env.Payload)
		if err != nil {
			s.stats.HandlerErrors.Add(1)
			return fmt.Errorf("handler for %s: %w", FormatPort(env.Dst.Port), err)
		}
		s.openGate()
		return s.sendEnvelope(&Envelope{
			Kind:    KindResponse,
			Seq:     env.Seq,
			Src:     Addr(s.local.Network, s.local.Node, env.Dst.Port),
			Dst:     env.Src,
			Payload: reply,
		})

	default: // KindResponse, DecodeEnvelope rejects anything else
		s.mu.Lock()
		pc := s.pending
		if pc != nil && pc.seq == env.Seq {
			s.pending = nil
			s.mu.Unlock()
			pc.resp <- env.Payload
			return nil
		}
		s.mu.Unlock()
		s.stats.StaleResponses.Add(1)
		return fmt.Errorf("stale response seq=%d", env.Seq)
	}
}
