package vrmsg

import "github.com/estuary/vr/go/vrid"

// Envelope is the unit the Driver routes between replicas and clients.
type Envelope struct {
	From    Address
	To      Address
	View    vrid.View
	Payload Payload
}
