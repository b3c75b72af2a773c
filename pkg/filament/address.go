// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import "fmt"

// Address identifies a logical service endpoint. (Network, Node) names a
// peer, Port names a service on that peer.
type Address struct {
	_       struct{} `cbor:",toarray"`
	Network uint8
	Node    uint8
	Port    uint8
}

// Addr constructs an address from its three components
func Addr(network, node, port uint8) Address {
	return Address{Network: network, Node: node, Port: port}
}

// HostAddr returns the host's address for the given service port
func HostAddr(port uint8) Address {
	return Addr(NetworkID, NodeHost, port)
}

// DeviceAddr returns the device's address for the given service port
func DeviceAddr(port uint8) Address {
	return Addr(NetworkID, NodeDevice, port)
}

// Peer reports whether two addresses name the same (network, node) pair,
// ignoring the port.
func (a Address) Peer(b Address) bool {
	return a.Network == b.Network && a.Node == b.Node
}

func (a Address) String() string {
	return fmt.Sprintf("%d.%d:%d", a.Network, a.Node, a.Port)
}
