package datalayer

import (
	"go.uber.org/fx"

	"github.com/outfield-ai/outfield/cdc"
)

// FXModule integrates the datalayer into an fx-based application.
//
// It provides the configuration and the New factory. A logger.Logger
// must be available in the container. When the cdc module provides a
// non-nil transport, it is attached so change events leave the
// process.
var FXModule = fx.Module("datalayer",
	fx.Provide(
		NewConfig,
		New,
	),
	fx.Invoke(AttachTransport),
)

// AttachTransportParams declares the datalayer's optional transport
// dependency.
type AttachTransportParams struct {
	fx.In

	Datalayer *Datalayer
	Transport cdc.Transport `optional:"true"`
}

// AttachTransport wires the CDC transport into the datalayer when one
// is configured.
func AttachTransport(p AttachTransportParams) {
	if p.Transport != nil {
		p.Datalayer.WithTransport(p.Transport)
	}
}
