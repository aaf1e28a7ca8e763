// Package cdc turns data changes into prediction work. A process-wide
// registry holds the active listeners keyed by identifier; insert and
// update events schedule predict jobs for the affected row ids on
// every listener watching the changed collection.
//
// In local mode the registry is fed directly by the datalayer. In
// remote mode change events and listener registrations travel over a
// message transport, either RabbitMQ or Kafka, selected by
// configuration.
package cdc
